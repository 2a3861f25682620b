package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/caseflowhq/caseflow/pkg/eventbus"
	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/otelhelper"
	"github.com/caseflowhq/caseflow/pkg/workflow"
)

// EngineManager wires the workflow engine to the event bus. Status changes
// produced in this process reach the engine synchronously through the
// transition engine's sink; the bus feeds it everything produced elsewhere.
type EngineManager struct {
	engine   *workflow.Engine
	eventBus eventbus.EventBus
	tracer   trace.Tracer
	logger   *slog.Logger
}

func NewEngineManager(
	ctx context.Context,
	engine *workflow.Engine,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) (*EngineManager, error) {
	tracer, err := otelhelper.NewTracer(ctx, "caseflow-engine")
	if err != nil {
		return nil, err
	}

	return &EngineManager{
		engine:   engine,
		eventBus: eventBus,
		tracer:   tracer,
		logger:   logger.With("module", "engine_manager"),
	}, nil
}

func (m *EngineManager) Start(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Starting engine manager")

	handlers := map[events.EventType]eventbus.EventHandler{
		events.EntityCreatedEvent:   m.handleEntityCreated,
		events.TaskDueEvent:         m.handleTaskDue,
		events.ScheduledSweepEvent:  m.handleScheduledSweep,
		events.InactivitySweepEvent: m.handleInactivitySweep,
		events.TaskCompletedEvent:   m.handleTaskCompleted,
	}
	for eventType, handler := range handlers {
		err := m.eventBus.Handle(eventType, handler)
		if err != nil {
			return err
		}
	}

	err := m.eventBus.Subscribe(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	m.logger.InfoContext(ctx, "Engine manager started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	m.logger.InfoContext(ctx, "Shutting down engine manager...")

	return nil
}

func (m *EngineManager) handleEntityCreated(ctx context.Context, event any) error {
	createdEvent, ok := event.(*events.EntityCreated)
	if !ok {
		m.logger.ErrorContext(ctx, "Invalid event type for EntityCreated")

		return nil
	}

	return m.dispatch(ctx, *createdEvent)
}

func (m *EngineManager) handleTaskDue(ctx context.Context, event any) error {
	dueEvent, ok := event.(*events.TaskDue)
	if !ok {
		m.logger.ErrorContext(ctx, "Invalid event type for TaskDue")

		return nil
	}

	return m.dispatch(ctx, *dueEvent)
}

func (m *EngineManager) handleScheduledSweep(ctx context.Context, event any) error {
	sweepEvent, ok := event.(*events.ScheduledSweep)
	if !ok {
		m.logger.ErrorContext(ctx, "Invalid event type for ScheduledSweep")

		return nil
	}

	return m.dispatch(ctx, *sweepEvent)
}

func (m *EngineManager) handleInactivitySweep(ctx context.Context, event any) error {
	sweepEvent, ok := event.(*events.InactivitySweep)
	if !ok {
		m.logger.ErrorContext(ctx, "Invalid event type for InactivitySweep")

		return nil
	}

	return m.dispatch(ctx, *sweepEvent)
}

// handleTaskCompleted resumes the paused execution gated on the completed
// task. Completions of ordinary tasks carry no execution ID and are ignored.
func (m *EngineManager) handleTaskCompleted(ctx context.Context, event any) error {
	completedEvent, ok := event.(*events.TaskCompleted)
	if !ok {
		m.logger.ErrorContext(ctx, "Invalid event type for TaskCompleted")

		return nil
	}

	if completedEvent.ExecutionID == "" {
		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "resume_workflow",
		attribute.String(otelhelper.ExecutionIDKey, completedEvent.ExecutionID),
		attribute.String(otelhelper.EventIDKey, completedEvent.ID),
		attribute.String(otelhelper.OrgIDKey, completedEvent.OrgID),
	)
	defer span.End()

	err := m.engine.ResumeWorkflow(ctx, completedEvent.ExecutionID, completedEvent.TaskID)
	if err != nil {
		otelhelper.SetError(span, err)
		m.logger.ErrorContext(ctx, "Failed to resume workflow execution",
			"execution_id", completedEvent.ExecutionID, "error", err)

		return err
	}

	return nil
}

func (m *EngineManager) dispatch(ctx context.Context, evt events.TriggerEvent) error {
	base := evt.GetBase()

	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "handle_trigger_event",
		attribute.String(otelhelper.EventIDKey, base.ID),
		attribute.String(otelhelper.EventTypeKey, string(evt.GetType())),
		attribute.String(otelhelper.TriggerTypeKey, string(evt.TriggerType())),
		attribute.String(otelhelper.EntityIDKey, evt.GetEntityID()),
		attribute.String(otelhelper.OrgIDKey, base.OrgID),
	)
	defer span.End()

	err := m.engine.HandleEvent(ctx, evt)
	if err != nil {
		otelhelper.SetError(span, err)
		m.logger.ErrorContext(ctx, "Failed to handle trigger event",
			"event_id", base.ID, "event_type", evt.GetType(), "error", err)

		return err
	}

	return nil
}
