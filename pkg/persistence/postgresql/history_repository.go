package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/caseflowhq/caseflow/pkg/models"
)

// HistoryRepository handles the append-only status history ledger.
type HistoryRepository struct {
	db *sql.DB
}

const historyColumns = `id, org_id, entity_id, from_stage_id, from_label, to_stage_id, to_label,
	actor_id, approver_id, reason, effective_at, recorded_at, is_undo, request_id`

func (r *HistoryRepository) Append(ctx context.Context, entry *models.StatusHistoryEntry) error {
	query := `
		INSERT INTO status_history (` + historyColumns + `)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.OrgID, entry.EntityID, entry.FromStageID, entry.FromLabel,
		entry.ToStageID, entry.ToLabel, entry.ActorID, entry.ApproverID, entry.Reason,
		entry.EffectiveAt, entry.RecordedAt, entry.IsUndo, entry.RequestID,
	)
	if err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}

	return nil
}

func (r *HistoryRepository) GetByEntity(ctx context.Context, entityID string) ([]*models.StatusHistoryEntry, error) {
	query := `
		SELECT id, org_id, entity_id, COALESCE(from_stage_id::text, ''), from_label,
			to_stage_id, to_label, actor_id, approver_id, reason,
			effective_at, recorded_at, is_undo, request_id
		FROM status_history
		WHERE entity_id = $1
		ORDER BY recorded_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []*models.StatusHistoryEntry

	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (r *HistoryRepository) Latest(ctx context.Context, entityID string) (*models.StatusHistoryEntry, error) {
	query := `
		SELECT id, org_id, entity_id, COALESCE(from_stage_id::text, ''), from_label,
			to_stage_id, to_label, actor_id, approver_id, reason,
			effective_at, recorded_at, is_undo, request_id
		FROM status_history
		WHERE entity_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	entry, err := scanHistoryEntry(r.db.QueryRowContext(ctx, query, entityID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan history entry: %w", err)
	}

	return entry, nil
}

func scanHistoryEntry(row rowScanner) (*models.StatusHistoryEntry, error) {
	entry := &models.StatusHistoryEntry{}

	err := row.Scan(
		&entry.ID, &entry.OrgID, &entry.EntityID, &entry.FromStageID, &entry.FromLabel,
		&entry.ToStageID, &entry.ToLabel, &entry.ActorID, &entry.ApproverID, &entry.Reason,
		&entry.EffectiveAt, &entry.RecordedAt, &entry.IsUndo, &entry.RequestID,
	)
	if err != nil {
		return nil, err
	}

	return entry, nil
}
