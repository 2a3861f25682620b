// Package memory provides an in-memory persistence implementation for tests
// and local development. It enforces the same uniqueness semantics as the
// PostgreSQL implementation: duplicate pending requests, dedupe keys, and
// resume jobs surface the shared conflict sentinels from a single
// check-and-insert under the store lock.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
)

// Persistence implements persistence.Persistence with mutex-guarded maps.
type Persistence struct {
	mu sync.RWMutex

	organizations map[string]*models.Organization
	entities      map[string]*models.Case
	stages        map[string]*models.Stage
	history       []*models.StatusHistoryEntry
	requests      map[string]*models.StatusChangeRequest
	workflows     map[string]*models.Workflow
	executions    map[string]*models.WorkflowExecution
	dedupeKeys    map[string]string // dedupe key -> execution ID
	resumeJobs    map[string]*models.WorkflowResumeJob
	resumeByPair  map[string]string // executionID/taskID -> job ID
}

func NewPersistence() *Persistence {
	return &Persistence{
		organizations: make(map[string]*models.Organization),
		entities:      make(map[string]*models.Case),
		stages:        make(map[string]*models.Stage),
		requests:      make(map[string]*models.StatusChangeRequest),
		workflows:     make(map[string]*models.Workflow),
		executions:    make(map[string]*models.WorkflowExecution),
		dedupeKeys:    make(map[string]string),
		resumeJobs:    make(map[string]*models.WorkflowResumeJob),
		resumeByPair:  make(map[string]string),
	}
}

func (p *Persistence) OrganizationRepository() persistence.OrganizationRepository {
	return &organizationRepository{store: p}
}

func (p *Persistence) EntityRepository() persistence.EntityRepository {
	return &entityRepository{store: p}
}

func (p *Persistence) StageRepository() persistence.StageRepository {
	return &stageRepository{store: p}
}

func (p *Persistence) HistoryRepository() persistence.HistoryRepository {
	return &historyRepository{store: p}
}

func (p *Persistence) RequestRepository() persistence.RequestRepository {
	return &requestRepository{store: p}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return &workflowRepository{store: p}
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return &executionRepository{store: p}
}

func (p *Persistence) ResumeJobRepository() persistence.ResumeJobRepository {
	return &resumeJobRepository{store: p}
}

func (p *Persistence) HealthCheck(_ context.Context) error { return nil }

func (p *Persistence) Close(_ context.Context) error { return nil }

type organizationRepository struct {
	store *Persistence
}

func (r *organizationRepository) GetByID(_ context.Context, id string) (*models.Organization, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	org, ok := r.store.organizations[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", id, persistence.ErrOrganizationNotFound)
	}

	copied := *org

	return &copied, nil
}

func (r *organizationRepository) Save(_ context.Context, org *models.Organization) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	copied := *org
	r.store.organizations[org.ID] = &copied

	return nil
}

func (r *organizationRepository) GetAll(_ context.Context) ([]*models.Organization, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	orgs := make([]*models.Organization, 0, len(r.store.organizations))
	for _, org := range r.store.organizations {
		copied := *org
		orgs = append(orgs, &copied)
	}

	return orgs, nil
}

type entityRepository struct {
	store *Persistence
}

func (r *entityRepository) GetByID(_ context.Context, id string) (*models.Case, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entity, ok := r.store.entities[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", id, persistence.ErrEntityNotFound)
	}

	return copyCase(entity), nil
}

func (r *entityRepository) Save(_ context.Context, entity *models.Case) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.entities[entity.ID] = copyCase(entity)

	return nil
}

func (r *entityRepository) GetByOrg(_ context.Context, orgID string) ([]*models.Case, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var entities []*models.Case

	for _, entity := range r.store.entities {
		if entity.OrgID == orgID {
			entities = append(entities, copyCase(entity))
		}
	}

	return entities, nil
}

func (r *entityRepository) GetInactiveSince(_ context.Context, orgID string, cutoff time.Time) ([]*models.Case, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var entities []*models.Case

	for _, entity := range r.store.entities {
		if entity.OrgID == orgID && entity.LastActivityAt.Before(cutoff) {
			entities = append(entities, copyCase(entity))
		}
	}

	return entities, nil
}

type stageRepository struct {
	store *Persistence
}

func (r *stageRepository) GetByID(_ context.Context, id string) (*models.Stage, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stage, ok := r.store.stages[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", id, persistence.ErrStageNotFound)
	}

	copied := *stage

	return &copied, nil
}

func (r *stageRepository) Save(_ context.Context, stage *models.Stage) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	copied := *stage
	r.store.stages[stage.ID] = &copied

	return nil
}

func (r *stageRepository) GetByPipeline(_ context.Context, pipelineID string) ([]*models.Stage, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var stages []*models.Stage

	for _, stage := range r.store.stages {
		if stage.PipelineID == pipelineID {
			copied := *stage
			stages = append(stages, &copied)
		}
	}

	sortStages(stages)

	return stages, nil
}

func sortStages(stages []*models.Stage) {
	for i := 1; i < len(stages); i++ {
		for j := i; j > 0 && stages[j-1].Order > stages[j].Order; j-- {
			stages[j-1], stages[j] = stages[j], stages[j-1]
		}
	}
}

func copyCase(entity *models.Case) *models.Case {
	copied := *entity

	if entity.Fields != nil {
		copied.Fields = make(map[string]any, len(entity.Fields))
		for k, v := range entity.Fields {
			copied.Fields[k] = v
		}
	}

	return &copied
}
