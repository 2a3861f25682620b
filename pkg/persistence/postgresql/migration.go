package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE organizations (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE stages (
				id UUID PRIMARY KEY,
				pipeline_id UUID NOT NULL,
				label VARCHAR(255) NOT NULL,
				stage_type VARCHAR(50) NOT NULL,
				stage_order INTEGER NOT NULL
			);

			CREATE INDEX idx_stages_pipeline ON stages(pipeline_id, stage_order);

			CREATE TABLE entities (
				id UUID PRIMARY KEY,
				org_id UUID NOT NULL,
				pipeline_id UUID NOT NULL,
				stage_id UUID NOT NULL,
				stage_label VARCHAR(255) NOT NULL DEFAULT '',
				owner_id VARCHAR(255) NOT NULL DEFAULT '',
				fields JSONB,
				first_contacted_at TIMESTAMP WITH TIME ZONE,
				last_activity_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_entities_org ON entities(org_id);
			CREATE INDEX idx_entities_last_activity ON entities(org_id, last_activity_at);

			CREATE TABLE status_history (
				id UUID PRIMARY KEY,
				org_id UUID NOT NULL,
				entity_id UUID NOT NULL,
				from_stage_id UUID,
				from_label VARCHAR(255) NOT NULL DEFAULT '',
				to_stage_id UUID NOT NULL,
				to_label VARCHAR(255) NOT NULL DEFAULT '',
				actor_id VARCHAR(255) NOT NULL,
				approver_id VARCHAR(255),
				reason TEXT NOT NULL DEFAULT '',
				effective_at TIMESTAMP WITH TIME ZONE NOT NULL,
				recorded_at TIMESTAMP WITH TIME ZONE NOT NULL,
				is_undo BOOLEAN NOT NULL DEFAULT FALSE,
				request_id UUID
			);

			CREATE INDEX idx_status_history_entity ON status_history(entity_id, recorded_at DESC);

			CREATE TABLE status_change_requests (
				id UUID PRIMARY KEY,
				org_id UUID NOT NULL,
				entity_id UUID NOT NULL,
				target_stage_id UUID NOT NULL,
				reason TEXT NOT NULL,
				requester_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'approved', 'rejected', 'cancelled')),
				requested_at TIMESTAMP WITH TIME ZONE NOT NULL,
				resolved_at TIMESTAMP WITH TIME ZONE,
				resolver_id VARCHAR(255),
				resolve_note TEXT NOT NULL DEFAULT ''
			);

			-- At most one pending request per (entity, target stage). Races
			-- between concurrent requesters resolve on this index.
			CREATE UNIQUE INDEX uniq_pending_request
				ON status_change_requests(entity_id, target_stage_id)
				WHERE status = 'pending';

			CREATE INDEX idx_requests_org_status ON status_change_requests(org_id, status);

			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				org_id UUID NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				trigger_type VARCHAR(50) NOT NULL,
				trigger_config JSONB,
				condition_logic VARCHAR(10) NOT NULL DEFAULT 'and',
				conditions JSONB,
				actions JSONB NOT NULL,
				scope VARCHAR(20) NOT NULL CHECK (scope IN ('org', 'personal')),
				owner_id VARCHAR(255) NOT NULL DEFAULT '',
				recurrence VARCHAR(255),
				rate_limit_per_hour INTEGER NOT NULL DEFAULT 0,
				rate_limit_per_entity_per_day INTEGER NOT NULL DEFAULT 0,
				requires_review BOOLEAN NOT NULL DEFAULT FALSE,
				enabled BOOLEAN NOT NULL DEFAULT TRUE,
				last_run_at TIMESTAMP WITH TIME ZONE,
				last_error TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_org_trigger ON workflows(org_id, trigger_type) WHERE enabled;
			CREATE INDEX idx_workflows_recurrence ON workflows(recurrence) WHERE enabled AND recurrence IS NOT NULL;

			CREATE TABLE workflow_executions (
				id UUID PRIMARY KEY,
				org_id UUID NOT NULL,
				workflow_id UUID NOT NULL,
				entity_id UUID NOT NULL,
				event_id VARCHAR(255) NOT NULL,
				depth INTEGER NOT NULL DEFAULT 0,
				event_source VARCHAR(20) NOT NULL,
				dedupe_key VARCHAR(512),
				matched_conditions BOOLEAN NOT NULL DEFAULT FALSE,
				actions_executed JSONB,
				status VARCHAR(20) NOT NULL,
				paused_at_action_index INTEGER,
				paused_task_id VARCHAR(255),
				error_message TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			-- Dedupe key is NULL for non-recurring firings; the unique index
			-- only bites for scheduled windows.
			CREATE UNIQUE INDEX uniq_execution_dedupe_key ON workflow_executions(dedupe_key);

			CREATE INDEX idx_executions_workflow_started ON workflow_executions(workflow_id, started_at DESC);
			CREATE INDEX idx_executions_entity ON workflow_executions(entity_id, started_at DESC);

			CREATE TABLE workflow_resume_jobs (
				id UUID PRIMARY KEY,
				execution_id UUID NOT NULL,
				task_id VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				processed_at TIMESTAMP WITH TIME ZONE,
				CONSTRAINT uniq_resume_job UNIQUE (execution_id, task_id)
			);
		`,
	}
}
