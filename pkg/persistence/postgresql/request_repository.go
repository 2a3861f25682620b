package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
)

// RequestRepository handles regression approval requests. The pending-request
// uniqueness invariant lives in the partial index uniq_pending_request, so
// concurrent Create calls for the same (entity, target stage) resolve at the
// database rather than with a read-then-write check.
type RequestRepository struct {
	db *sql.DB
}

const requestColumns = `id, org_id, entity_id, target_stage_id, reason, requester_id,
	status, requested_at, resolved_at, resolver_id, resolve_note`

func (r *RequestRepository) Create(ctx context.Context, req *models.StatusChangeRequest) error {
	query := `
		INSERT INTO status_change_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.OrgID, req.EntityID, req.TargetStageID, req.Reason, req.RequesterID,
		req.Status, req.RequestedAt, req.ResolvedAt, req.ResolverID, req.ResolveNote,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewStoreError("Create", req.EntityID, persistence.ErrDuplicatePendingRequest)
		}

		return fmt.Errorf("failed to create request: %w", err)
	}

	return nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.StatusChangeRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM status_change_requests WHERE id = $1`

	req, err := scanRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", id, persistence.ErrRequestNotFound)
		}

		return nil, fmt.Errorf("failed to scan request: %w", err)
	}

	return req, nil
}

func (r *RequestRepository) Update(ctx context.Context, req *models.StatusChangeRequest) error {
	query := `
		UPDATE status_change_requests
		SET status = $2, resolved_at = $3, resolver_id = $4, resolve_note = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		req.ID, req.Status, req.ResolvedAt, req.ResolverID, req.ResolveNote,
	)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewStoreError("Update", req.ID, persistence.ErrRequestNotFound)
	}

	return nil
}

func (r *RequestRepository) GetPendingByOrg(ctx context.Context, orgID string) ([]*models.StatusChangeRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM status_change_requests
		WHERE org_id = $1 AND status = 'pending'
		ORDER BY requested_at
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.StatusChangeRequest

	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}

		requests = append(requests, req)
	}

	return requests, rows.Err()
}

func scanRequest(row rowScanner) (*models.StatusChangeRequest, error) {
	req := &models.StatusChangeRequest{}

	err := row.Scan(
		&req.ID, &req.OrgID, &req.EntityID, &req.TargetStageID, &req.Reason, &req.RequesterID,
		&req.Status, &req.RequestedAt, &req.ResolvedAt, &req.ResolverID, &req.ResolveNote,
	)
	if err != nil {
		return nil, err
	}

	return req, nil
}
