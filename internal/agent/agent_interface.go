package agent

import (
	"context"
)

// Backend is the remote assistant service.
// This interface is implemented by the OpenAI client.
type Backend interface {
	// CreateKnowledgeIndex uploads doc into a new index and waits for ingestion.
	CreateKnowledgeIndex(ctx context.Context, name string, doc KnowledgeDocument) (IndexResult, error)

	// CreateAssistant creates a durable assistant and returns its id.
	CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error)

	// AttachKnowledgeIndex makes indexID searchable by the assistant.
	AttachKnowledgeIndex(ctx context.Context, assistantID, indexID string) error

	// CreateThread creates an empty conversation thread.
	CreateThread(ctx context.Context) (string, error)

	// AddUserMessage appends a user-role message to a thread.
	AddUserMessage(ctx context.Context, threadID, text string) error

	// CreateRun starts the assistant on a thread.
	CreateRun(ctx context.Context, threadID, assistantID string) (Run, error)

	// GetRun retrieves the current state of a run.
	GetRun(ctx context.Context, threadID, runID string) (Run, error)

	// CancelRun asks the remote service to stop a run.
	CancelRun(ctx context.Context, threadID, runID string) error

	// LatestMessage returns the newest message on a thread, or nil if it has none.
	LatestMessage(ctx context.Context, threadID string) (*Message, error)
}

// Ensure OpenAIClient implements Backend.
var _ Backend = (*OpenAIClient)(nil)
