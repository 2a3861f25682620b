// Package postgresql provides the PostgreSQL persistence implementation.
// The race-sensitive writes (pending request creation, execution ledger
// insertion) rely on unique constraints, never on read-then-write.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/caseflowhq/caseflow/pkg/persistence"
	"github.com/caseflowhq/caseflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	organizationRepo *OrganizationRepository
	entityRepo       *EntityRepository
	stageRepo        *StageRepository
	historyRepo      *HistoryRepository
	requestRepo      *RequestRepository
	workflowRepo     *WorkflowRepository
	executionRepo    *ExecutionRepository
	resumeJobRepo    *ResumeJobRepository
}

// NewPersistence connects, runs migrations, and wires the repositories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:               database,
		logger:           logger,
		organizationRepo: &OrganizationRepository{db: database},
		entityRepo:       &EntityRepository{db: database},
		stageRepo:        &StageRepository{db: database},
		historyRepo:      &HistoryRepository{db: database},
		requestRepo:      &RequestRepository{db: database},
		workflowRepo:     &WorkflowRepository{db: database},
		executionRepo:    &ExecutionRepository{db: database},
		resumeJobRepo:    &ResumeJobRepository{db: database},
	}, nil
}

func (p *Persistence) OrganizationRepository() persistence.OrganizationRepository {
	return p.organizationRepo
}

func (p *Persistence) EntityRepository() persistence.EntityRepository { return p.entityRepo }

func (p *Persistence) StageRepository() persistence.StageRepository { return p.stageRepo }

func (p *Persistence) HistoryRepository() persistence.HistoryRepository { return p.historyRepo }

func (p *Persistence) RequestRepository() persistence.RequestRepository { return p.requestRepo }

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository { return p.workflowRepo }

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) ResumeJobRepository() persistence.ResumeJobRepository {
	return p.resumeJobRepo
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether the error is a PostgreSQL
// unique-constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
