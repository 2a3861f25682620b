// Package sweeper runs the periodic background passes that feed time-based
// workflow triggers: recurring scheduled sweeps and inactivity sweeps. It
// only emits events; the workflow engine's execution ledger deduplicates
// overlapping passes, so running several sweepers is safe.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
)

const (
	// DefaultInterval is how often the sweeper wakes up.
	DefaultInterval = time.Minute

	// DefaultIdleDays applies when an inactivity workflow does not configure
	// its own idle_days threshold.
	DefaultIdleDays = 30

	// windowLookback bounds how far back a recurring workflow's current
	// window is searched. Fire times older than this are considered missed.
	windowLookback = 7 * 24 * time.Hour

	maxWindowSteps = 10000
)

// EventSink receives the emitted sweep events. The workflow engine satisfies
// it directly; a bus-publishing adapter works for split deployments.
type EventSink interface {
	TriggerEvent(ctx context.Context, evt events.TriggerEvent) error
}

type Sweeper struct {
	persistence persistence.Persistence
	sink        EventSink
	logger      *slog.Logger
	interval    time.Duration
	now         func() time.Time

	ticker  *time.Ticker
	done    chan struct{}
	started bool
	mu      sync.Mutex
}

func NewSweeper(p persistence.Persistence, sink EventSink, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		persistence: p,
		sink:        sink,
		logger:      logger.With("module", "sweeper"),
		interval:    DefaultInterval,
		now:         time.Now,
	}
}

// WithInterval overrides the pass interval.
func (s *Sweeper) WithInterval(interval time.Duration) *Sweeper {
	s.interval = interval

	return s
}

// WithClock replaces the clock, for tests.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now

	return s
}

// Start launches the periodic pass loop.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info("Starting sweeper", "interval", s.interval)

	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan struct{})
	s.started = true

	go s.loop(ctx)

	return nil
}

// Stop shuts the pass loop down.
func (s *Sweeper) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info("Stopping sweeper")
	s.ticker.Stop()
	close(s.done)
	s.started = false

	return nil
}

func (s *Sweeper) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("Sweep pass failed", "error", err)
			}
		}
	}
}

// RunOnce executes a single sweep pass: the scheduled pass for recurring
// workflows, then the inactivity pass.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	if err := s.scheduledPass(ctx); err != nil {
		return err
	}

	return s.inactivityPass(ctx)
}

// scheduledPass emits one scheduled sweep event per (recurring workflow,
// entity) for the workflow's current recurrence window.
func (s *Sweeper) scheduledPass(ctx context.Context) error {
	workflows, err := s.persistence.WorkflowRepository().GetRecurring(ctx)
	if err != nil {
		return fmt.Errorf("load recurring workflows: %w", err)
	}

	now := s.now().UTC()

	for _, wf := range workflows {
		logger := s.logger.With("workflow_id", wf.ID)

		schedule, err := cron.ParseStandard(*wf.Recurrence)
		if err != nil {
			logger.Error("Invalid recurrence expression", "recurrence", *wf.Recurrence, "error", err)

			continue
		}

		window, ok := currentWindow(schedule, now)
		if !ok {
			continue
		}

		entities, err := s.persistence.EntityRepository().GetByOrg(ctx, wf.OrgID)
		if err != nil {
			logger.Error("Failed to load org entities", "error", err)

			continue
		}

		windowLabel := window.Format(time.RFC3339)

		for _, entity := range entities {
			evt := events.ScheduledSweep{
				BaseEvent:  s.systemEvent(events.ScheduledSweepEvent, wf.OrgID),
				WorkflowID: wf.ID,
				EntityID:   entity.ID,
				Window:     windowLabel,
			}

			if err := s.sink.TriggerEvent(ctx, evt); err != nil {
				logger.Error("Failed to deliver scheduled sweep", "entity_id", entity.ID, "error", err)
			}
		}
	}

	return nil
}

// inactivityPass emits inactivity sweep events for entities whose last
// activity predates each inactivity workflow's idle threshold. The window is
// the current date, so an idle entity fires at most once a day per workflow.
func (s *Sweeper) inactivityPass(ctx context.Context) error {
	orgs, err := s.persistence.OrganizationRepository().GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load organizations: %w", err)
	}

	now := s.now().UTC()

	for _, org := range orgs {
		workflows, err := s.persistence.WorkflowRepository().GetEnabledByTrigger(ctx, org.ID, models.TriggerInactivitySweep)
		if err != nil {
			s.logger.Error("Failed to load inactivity workflows", "org_id", org.ID, "error", err)

			continue
		}

		for _, wf := range workflows {
			idleDays := idleDaysFor(wf)
			cutoff := now.AddDate(0, 0, -idleDays)

			entities, err := s.persistence.EntityRepository().GetInactiveSince(ctx, org.ID, cutoff)
			if err != nil {
				s.logger.Error("Failed to load inactive entities", "org_id", org.ID, "error", err)

				continue
			}

			windowLabel := now.Format("2006-01-02")

			for _, entity := range entities {
				evt := events.InactivitySweep{
					BaseEvent:  s.systemEvent(events.InactivitySweepEvent, org.ID),
					WorkflowID: wf.ID,
					EntityID:   entity.ID,
					IdleDays:   idleDays,
					Window:     windowLabel,
				}

				if err := s.sink.TriggerEvent(ctx, evt); err != nil {
					s.logger.Error("Failed to deliver inactivity sweep",
						"workflow_id", wf.ID, "entity_id", entity.ID, "error", err)
				}
			}
		}
	}

	return nil
}

func (s *Sweeper) systemEvent(eventType events.EventType, orgID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, orgID)
	base.Source = models.EventSourceSystem
	base.Timestamp = s.now().UTC()

	return base
}

// idleDaysFor reads the workflow's idle_days trigger config. Stored JSON
// numbers arrive as float64.
func idleDaysFor(wf *models.Workflow) int {
	switch v := wf.TriggerConfig["idle_days"].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}

	return DefaultIdleDays
}

// currentWindow finds the most recent fire time of the schedule at or before
// now. It reports false when the schedule has not fired within the lookback.
func currentWindow(schedule cron.Schedule, now time.Time) (time.Time, bool) {
	t := now.Add(-windowLookback)

	var window time.Time

	for range maxWindowSteps {
		next := schedule.Next(t)
		if next.IsZero() || next.After(now) {
			break
		}

		window = next
		t = next
	}

	return window, !window.IsZero()
}
