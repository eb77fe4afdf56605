package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrProvisioning marks a failed assistant creation, update or record write.
	ErrProvisioning = errors.New("assistant provisioning failed")
	// ErrKnowledgeIngestion marks a failed upload of an existing knowledge file.
	ErrKnowledgeIngestion = errors.New("knowledge ingestion failed")
	// ErrThreadCreation marks a failed conversation start.
	ErrThreadCreation = errors.New("thread creation failed")
	// ErrMessageExchange marks any failed message exchange.
	ErrMessageExchange = errors.New("message exchange failed")

	// ErrMissingThreadID is returned when no thread id was supplied.
	ErrMissingThreadID = errors.New("missing thread_id")
	// ErrPollTimeout is returned when a run does not finish in time.
	ErrPollTimeout = errors.New("timed out waiting for run")
	// ErrRequiresAction is returned for runs that request tool outputs.
	ErrRequiresAction = errors.New("run requires tool outputs, which are not supported")
	// ErrEmptyReply is returned when a completed run left no assistant text.
	ErrEmptyReply = errors.New("no assistant reply on thread")
	// ErrRemoteNotFound is returned when the remote service reports 404.
	ErrRemoteNotFound = errors.New("remote resource not found")
)

// RunError describes a run that ended in a non-completed terminal state.
type RunError struct {
	RunID   string
	Status  RunStatus
	Code    string
	Message string
}

func (e *RunError) Error() string {
	if e.Code == "" && e.Message == "" {
		return fmt.Sprintf("run %s ended with status %s", e.RunID, e.Status)
	}
	return fmt.Sprintf("run %s ended with status %s: %s: %s", e.RunID, e.Status, e.Code, e.Message)
}
