// Package agent implements the advising assistant: persona provisioning,
// conversation threads and the poll-based message exchange.
package agent

import (
	"io"
)

// RunStatus is the remote execution state of a Run.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusIncomplete     RunStatus = "incomplete"
	RunStatusExpired        RunStatus = "expired"
)

// IsTerminal returns true once the remote service will not change the status again.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired, RunStatusIncomplete:
		return true
	default:
		return false
	}
}

// Run is one execution of the assistant against a thread.
type Run struct {
	ID               string
	ThreadID         string
	Status           RunStatus
	LastErrorCode    string
	LastErrorMessage string
}

// Role identifies the author of a thread message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a thread entry reduced to its first content block.
type Message struct {
	ID   string
	Role Role
	// Text is empty when the first content block is not text.
	Text string
}

// AssistantSpec describes the assistant to create remotely.
type AssistantSpec struct {
	Name         string
	Instructions string
	Model        string
	// FileSearch enables the knowledge-retrieval tool.
	FileSearch bool
}

// KnowledgeDocument is a local file uploaded into a knowledge index.
type KnowledgeDocument struct {
	Filename string
	Body     io.Reader
}

// IndexResult reports the outcome of building a knowledge index.
type IndexResult struct {
	ID        string
	Total     int64
	Completed int64
	Failed    int64
}

// ChatRequest is the body of a chat exchange.
type ChatRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

// ChatResponse carries the assistant reply.
type ChatResponse struct {
	Response string `json:"response"`
}

// StartResponse carries a freshly created thread id.
type StartResponse struct {
	ThreadID string `json:"thread_id"`
}
