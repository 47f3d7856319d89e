package postgresql

import "github.com/dukex/flowpilot/pkg/persistence/sqlbase"

func migrations() []sqlbase.Migration {
	return []sqlbase.Migration{
		{Version: 1, Name: "initial_schema", SQL: `
			-- Template catalog (authored externally, read by the engine)
			CREATE TABLE workflow_templates (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category VARCHAR(50) NOT NULL,
				structure TEXT NOT NULL,
				required_capabilities TEXT[] NOT NULL DEFAULT '{}',
				success_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
				active BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_workflow_templates_category ON workflow_templates(category, active, success_rate DESC);

			-- Running workflow instances
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				template_id VARCHAR(255),
				template_name VARCHAR(255) NOT NULL,
				category VARCHAR(50) NOT NULL,
				conversation_id VARCHAR(255) NOT NULL,
				user_id VARCHAR(255),
				status VARCHAR(50) NOT NULL CHECK (status IN ('planning', 'active', 'completed', 'failed', 'cancelled')),
				context JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_template_id ON workflows(template_id);
			CREATE INDEX idx_workflows_conversation_id ON workflows(conversation_id);
			CREATE INDEX idx_workflows_status ON workflows(status);

			-- Task nodes of the instantiated graph
			CREATE TABLE workflow_tasks (
				id UUID PRIMARY KEY,
				seq BIGSERIAL,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				parent_task_id UUID REFERENCES workflow_tasks(id),
				step_id VARCHAR(255) NOT NULL,
				kind VARCHAR(50) NOT NULL,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'active', 'completed', 'failed')),
				prerequisites TEXT[] NOT NULL DEFAULT '{}',
				validation_rules JSONB NOT NULL DEFAULT '{}',
				data_collected JSONB NOT NULL DEFAULT '{}',
				critical BOOLEAN NOT NULL DEFAULT false,
				retry_on_failure BOOLEAN NOT NULL DEFAULT false,
				action_type VARCHAR(255) NOT NULL DEFAULT '',
				timezone VARCHAR(100) NOT NULL DEFAULT '',
				language VARCHAR(50) NOT NULL DEFAULT '',
				attempts INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				duration_ms BIGINT
			);

			CREATE INDEX idx_workflow_tasks_workflow_status ON workflow_tasks(workflow_id, status, created_at);

			-- Dependency edges
			CREATE TABLE workflow_dependencies (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				task_id UUID NOT NULL REFERENCES workflow_tasks(id) ON DELETE CASCADE,
				depends_on_task_id UUID NOT NULL REFERENCES workflow_tasks(id) ON DELETE CASCADE,
				dependency_type VARCHAR(50) NOT NULL CHECK (dependency_type IN ('blocks', 'informs', 'optional', 'conditional')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				UNIQUE (task_id, depends_on_task_id)
			);

			CREATE INDEX idx_workflow_dependencies_task ON workflow_dependencies(task_id);
			CREATE INDEX idx_workflow_dependencies_workflow ON workflow_dependencies(workflow_id);

			-- Append-only execution log
			CREATE TABLE workflow_executions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				task_id UUID,
				action VARCHAR(100) NOT NULL,
				actor VARCHAR(50) NOT NULL,
				input_data JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_workflow_executions_workflow ON workflow_executions(workflow_id, created_at);
			CREATE INDEX idx_workflow_executions_action ON workflow_executions(action);

			-- Scored behavioural patterns
			CREATE TABLE workflow_learning (
				id UUID PRIMARY KEY,
				template_id VARCHAR(255) NOT NULL,
				pattern_type VARCHAR(100) NOT NULL,
				pattern_key TEXT NOT NULL,
				pattern_data JSONB NOT NULL DEFAULT '{}',
				confidence DOUBLE PRECISION NOT NULL CHECK (confidence >= 0 AND confidence <= 100),
				occurrence_count INT NOT NULL DEFAULT 1,
				success_count INT NOT NULL DEFAULT 0,
				first_observed TIMESTAMP WITH TIME ZONE NOT NULL,
				last_observed TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (template_id, pattern_type, pattern_key)
			);

			CREATE INDEX idx_workflow_learning_template ON workflow_learning(template_id, confidence DESC);
		`},
	}
}
