package kafka

// Topic definitions for workflow event streaming
const (
	// TopicWorkflowRequests carries asynchronous workflow run requests
	TopicWorkflowRequests = "workflows.requests"

	// TopicWorkflowCompleted carries every finished WorkflowResult
	TopicWorkflowCompleted = "workflows.completed"

	// TopicAgentHealth carries supervisor health transitions
	TopicAgentHealth = "agents.health"
)
