package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
)

// OrganizationRepository handles organization rows.
type OrganizationRepository struct {
	db *sql.DB
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	query := `SELECT id, name, timezone, created_at FROM organizations WHERE id = $1`

	org := &models.Organization{}

	err := r.db.QueryRowContext(ctx, query, id).Scan(&org.ID, &org.Name, &org.Timezone, &org.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", id, persistence.ErrOrganizationNotFound)
		}

		return nil, fmt.Errorf("failed to scan organization: %w", err)
	}

	return org, nil
}

func (r *OrganizationRepository) Save(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (id, name, timezone, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			timezone = EXCLUDED.timezone
	`

	_, err := r.db.ExecContext(ctx, query, org.ID, org.Name, org.Timezone, org.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save organization: %w", err)
	}

	return nil
}

func (r *OrganizationRepository) GetAll(ctx context.Context) ([]*models.Organization, error) {
	query := `SELECT id, name, timezone, created_at FROM organizations ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization

	for rows.Next() {
		org := &models.Organization{}

		err := rows.Scan(&org.ID, &org.Name, &org.Timezone, &org.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}

		orgs = append(orgs, org)
	}

	return orgs, rows.Err()
}

// EntityRepository handles tracked entity rows.
type EntityRepository struct {
	db *sql.DB
}

const entityColumns = `id, org_id, pipeline_id, stage_id, stage_label, owner_id, fields,
	first_contacted_at, last_activity_at, created_at, updated_at`

func (r *EntityRepository) GetByID(ctx context.Context, id string) (*models.Case, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`

	entity, err := scanEntity(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", id, persistence.ErrEntityNotFound)
		}

		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}

	return entity, nil
}

func (r *EntityRepository) Save(ctx context.Context, entity *models.Case) error {
	fieldsJSON, err := json.Marshal(entity.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal entity fields: %w", err)
	}

	query := `
		INSERT INTO entities (` + entityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			stage_id = EXCLUDED.stage_id,
			stage_label = EXCLUDED.stage_label,
			owner_id = EXCLUDED.owner_id,
			fields = EXCLUDED.fields,
			first_contacted_at = EXCLUDED.first_contacted_at,
			last_activity_at = EXCLUDED.last_activity_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		entity.ID, entity.OrgID, entity.PipelineID, entity.StageID, entity.StageLabel,
		entity.OwnerID, fieldsJSON, entity.FirstContactedAt, entity.LastActivityAt,
		entity.CreatedAt, entity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}

	return nil
}

func (r *EntityRepository) GetByOrg(ctx context.Context, orgID string) ([]*models.Case, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE org_id = $1`

	return r.queryEntities(ctx, query, orgID)
}

func (r *EntityRepository) GetInactiveSince(ctx context.Context, orgID string, cutoff time.Time) ([]*models.Case, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE org_id = $1 AND last_activity_at < $2`

	return r.queryEntities(ctx, query, orgID, cutoff)
}

func (r *EntityRepository) queryEntities(ctx context.Context, query string, args ...any) ([]*models.Case, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []*models.Case

	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}

		entities = append(entities, entity)
	}

	return entities, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*models.Case, error) {
	entity := &models.Case{}

	var fieldsJSON []byte

	err := row.Scan(
		&entity.ID, &entity.OrgID, &entity.PipelineID, &entity.StageID, &entity.StageLabel,
		&entity.OwnerID, &fieldsJSON, &entity.FirstContactedAt, &entity.LastActivityAt,
		&entity.CreatedAt, &entity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(fieldsJSON) > 0 {
		err = json.Unmarshal(fieldsJSON, &entity.Fields)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal entity fields: %w", err)
		}
	}

	return entity, nil
}

// StageRepository handles pipeline stage rows.
type StageRepository struct {
	db *sql.DB
}

func (r *StageRepository) GetByID(ctx context.Context, id string) (*models.Stage, error) {
	query := `SELECT id, pipeline_id, label, stage_type, stage_order FROM stages WHERE id = $1`

	stage := &models.Stage{}

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&stage.ID, &stage.PipelineID, &stage.Label, &stage.Type, &stage.Order,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", id, persistence.ErrStageNotFound)
		}

		return nil, fmt.Errorf("failed to scan stage: %w", err)
	}

	return stage, nil
}

func (r *StageRepository) Save(ctx context.Context, stage *models.Stage) error {
	query := `
		INSERT INTO stages (id, pipeline_id, label, stage_type, stage_order)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label,
			stage_type = EXCLUDED.stage_type,
			stage_order = EXCLUDED.stage_order
	`

	_, err := r.db.ExecContext(ctx, query, stage.ID, stage.PipelineID, stage.Label, stage.Type, stage.Order)
	if err != nil {
		return fmt.Errorf("failed to save stage: %w", err)
	}

	return nil
}

func (r *StageRepository) GetByPipeline(ctx context.Context, pipelineID string) ([]*models.Stage, error) {
	query := `
		SELECT id, pipeline_id, label, stage_type, stage_order
		FROM stages
		WHERE pipeline_id = $1
		ORDER BY stage_order
	`

	rows, err := r.db.QueryContext(ctx, query, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stages: %w", err)
	}
	defer rows.Close()

	var stages []*models.Stage

	for rows.Next() {
		stage := &models.Stage{}

		err := rows.Scan(&stage.ID, &stage.PipelineID, &stage.Label, &stage.Type, &stage.Order)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}

		stages = append(stages, stage)
	}

	return stages, rows.Err()
}
