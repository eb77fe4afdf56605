package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// cancelTimeout bounds the best-effort cancel issued for abandoned runs.
const cancelTimeout = 5 * time.Second

// ServiceOptions configure the conversation service.
type ServiceOptions struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	Logger       *slog.Logger
}

// Service drives conversations against the provisioned assistant.
// It holds no per-conversation state and is safe for concurrent use.
type Service struct {
	backend     Backend
	assistantID string
	opts        ServiceOptions
}

// NewService creates a conversation service bound to assistantID.
func NewService(backend Backend, assistantID string, optFns ...func(o *ServiceOptions)) (*Service, error) {
	if backend == nil {
		return nil, errors.New("agent: nil backend")
	}
	if assistantID == "" {
		return nil, errors.New("agent: empty assistant id")
	}

	opts := ServiceOptions{
		PollInterval: time.Second,
		PollTimeout:  2 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.PollTimeout < opts.PollInterval {
		opts.PollTimeout = opts.PollInterval
	}

	return &Service{
		backend:     backend,
		assistantID: assistantID,
		opts:        opts,
	}, nil
}

// AssistantID returns the assistant this service talks to.
func (s *Service) AssistantID() string {
	return s.assistantID
}

// StartConversation creates a new remote thread and returns its id.
// The caller must resend the id with every message.
func (s *Service) StartConversation(ctx context.Context) (string, error) {
	threadID, err := s.backend.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrThreadCreation, err)
	}
	if threadID == "" {
		return "", fmt.Errorf("%w: remote returned empty thread id", ErrThreadCreation)
	}

	s.opts.Logger.Info("New thread created", "thread_id", threadID)
	return threadID, nil
}

// SendMessage appends text to the thread, runs the assistant and blocks until
// the run finishes. It returns the newest assistant reply.
func (s *Service) SendMessage(ctx context.Context, threadID, text string) (string, error) {
	if strings.TrimSpace(threadID) == "" {
		return "", fmt.Errorf("%w: %w", ErrMessageExchange, ErrMissingThreadID)
	}
	logger := s.opts.Logger.With("thread_id", threadID)

	if err := s.backend.AddUserMessage(ctx, threadID, text); err != nil {
		return "", fmt.Errorf("%w: add message: %w", ErrMessageExchange, err)
	}

	run, err := s.backend.CreateRun(ctx, threadID, s.assistantID)
	if err != nil {
		return "", fmt.Errorf("%w: create run: %w", ErrMessageExchange, err)
	}
	logger = logger.With("run_id", run.ID)
	logger.Debug("Run created", "status", run.Status)

	started := time.Now()
	run, err = s.waitForRun(ctx, threadID, run)
	if err != nil {
		if errors.Is(err, ErrPollTimeout) || ctx.Err() != nil {
			s.cancelRun(ctx, threadID, run.ID)
		}
		logger.Warn("Run did not complete", "status", run.Status, "elapsed", time.Since(started), "error", err)
		return "", fmt.Errorf("%w: %w", ErrMessageExchange, err)
	}

	switch run.Status {
	case RunStatusCompleted:
	case RunStatusRequiresAction:
		s.cancelRun(ctx, threadID, run.ID)
		return "", fmt.Errorf("%w: run %s: %w", ErrMessageExchange, run.ID, ErrRequiresAction)
	default:
		runErr := &RunError{
			RunID:   run.ID,
			Status:  run.Status,
			Code:    run.LastErrorCode,
			Message: run.LastErrorMessage,
		}
		logger.Warn("Run ended unsuccessfully", "status", run.Status, "code", run.LastErrorCode)
		return "", fmt.Errorf("%w: %w", ErrMessageExchange, runErr)
	}

	msg, err := s.backend.LatestMessage(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("%w: list messages: %w", ErrMessageExchange, err)
	}
	if msg == nil || msg.Role != RoleAssistant || msg.Text == "" {
		return "", fmt.Errorf("%w: %w", ErrMessageExchange, ErrEmptyReply)
	}

	logger.Info("Assistant replied", "elapsed", time.Since(started), "reply_length", len(msg.Text))
	return msg.Text, nil
}

// waitForRun polls the run until it is terminal or needs tool outputs.
// Every poll, including an in-flight GetRun, is bounded by PollTimeout;
// exhausting it returns ErrPollTimeout.
func (s *Service) waitForRun(ctx context.Context, threadID string, run Run) (Run, error) {
	if run.Status.IsTerminal() || run.Status == RunStatusRequiresAction {
		return run, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.opts.PollTimeout)
	defer cancel()
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			return run, s.waitErr(ctx, run)
		case <-ticker.C:
		}

		current, err := s.backend.GetRun(waitCtx, threadID, run.ID)
		if err != nil {
			if waitCtx.Err() != nil {
				return run, s.waitErr(ctx, run)
			}
			return run, fmt.Errorf("poll run %s: %w", run.ID, err)
		}
		run = current

		s.opts.Logger.Debug("Run status", "thread_id", threadID, "run_id", run.ID, "status", run.Status)
		if run.Status.IsTerminal() || run.Status == RunStatusRequiresAction {
			return run, nil
		}
	}
}

// waitErr reports why the wait ended: the caller's own cancellation, or the
// poll deadline.
func (s *Service) waitErr(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w %s after %s (last status %s)", ErrPollTimeout, run.ID, s.opts.PollTimeout, run.Status)
}

// cancelRun stops a run we no longer wait for. Failures are only logged.
func (s *Service) cancelRun(ctx context.Context, threadID, runID string) {
	if runID == "" {
		return
	}
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()

	if err := s.backend.CancelRun(cancelCtx, threadID, runID); err != nil {
		s.opts.Logger.Warn("failed to cancel run", "thread_id", threadID, "run_id", runID, "error", err)
	}
}
