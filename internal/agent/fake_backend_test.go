package agent

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"
)

var _ Backend = (*fakeBackend)(nil)

// fakeBackend is an in-memory Backend. Runs advance through runScript one
// step per GetRun call.
type fakeBackend struct {
	mu sync.Mutex

	threads    map[string][]Message
	runs       map[string]*fakeRun
	assistants map[string]AssistantSpec
	attached   map[string]string
	uploads    []string

	runScript   []Run
	reply       string
	indexResult IndexResult

	createAssistantErr error
	attachErr          error
	indexErr           error
	createThreadErr    error
	addMessageErr      error
	getRunErr          error

	// blockGetRun makes GetRun wait for ctx like a stalled request.
	blockGetRun bool
	// onCreateAssistant runs outside the lock before CreateAssistant proceeds.
	onCreateAssistant func()

	createAssistantCalls int
	indexCalls           int
	getRunCalls          int
	cancelCalls          int
}

type fakeRun struct {
	threadID string
	step     int
	status   RunStatus
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		threads:    make(map[string][]Message),
		runs:       make(map[string]*fakeRun),
		assistants: make(map[string]AssistantSpec),
		attached:   make(map[string]string),
		runScript: []Run{
			{Status: RunStatusInProgress},
			{Status: RunStatusCompleted},
		},
		reply: "Hi! I'm happy to help you find a college.",
	}
}

func (f *fakeBackend) CreateKnowledgeIndex(_ context.Context, _ string, doc KnowledgeDocument) (IndexResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexCalls++
	if f.indexErr != nil {
		return IndexResult{}, f.indexErr
	}
	data, err := io.ReadAll(doc.Body)
	if err != nil {
		return IndexResult{}, err
	}
	f.uploads = append(f.uploads, string(data))
	if f.indexResult.ID != "" {
		return f.indexResult, nil
	}
	return IndexResult{ID: "vs_" + uuid.NewString(), Total: 1, Completed: 1}, nil
}

func (f *fakeBackend) CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error) {
	if f.onCreateAssistant != nil {
		f.onCreateAssistant()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.createAssistantCalls++
	if f.createAssistantErr != nil {
		return "", f.createAssistantErr
	}
	id := "asst_" + uuid.NewString()
	f.assistants[id] = spec
	return id, nil
}

func (f *fakeBackend) AttachKnowledgeIndex(_ context.Context, assistantID, indexID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attachErr != nil {
		return f.attachErr
	}
	f.attached[assistantID] = indexID
	return nil
}

func (f *fakeBackend) CreateThread(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createThreadErr != nil {
		return "", f.createThreadErr
	}
	id := "thread_" + uuid.NewString()
	f.threads[id] = nil
	return id, nil
}

func (f *fakeBackend) AddUserMessage(_ context.Context, threadID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addMessageErr != nil {
		return f.addMessageErr
	}
	msgs, ok := f.threads[threadID]
	if !ok {
		return ErrRemoteNotFound
	}
	f.threads[threadID] = append(msgs, Message{ID: uuid.NewString(), Role: RoleUser, Text: text})
	return nil
}

func (f *fakeBackend) CreateRun(_ context.Context, threadID, _ string) (Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.threads[threadID]; !ok {
		return Run{}, ErrRemoteNotFound
	}
	id := "run_" + uuid.NewString()
	f.runs[id] = &fakeRun{threadID: threadID, status: RunStatusQueued}
	return Run{ID: id, ThreadID: threadID, Status: RunStatusQueued}, nil
}

func (f *fakeBackend) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	f.mu.Lock()
	f.getRunCalls++
	block := f.blockGetRun
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return Run{}, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getRunErr != nil {
		return Run{}, f.getRunErr
	}
	r, ok := f.runs[runID]
	if !ok || r.threadID != threadID {
		return Run{}, ErrRemoteNotFound
	}

	next := Run{Status: r.status}
	if r.step < len(f.runScript) {
		next = f.runScript[r.step]
		r.step++
	}
	r.status = next.Status
	next.ID = runID
	next.ThreadID = threadID

	if next.Status == RunStatusCompleted && f.reply != "" {
		f.threads[threadID] = append(f.threads[threadID], Message{ID: uuid.NewString(), Role: RoleAssistant, Text: f.reply})
	}
	return next, nil
}

func (f *fakeBackend) CancelRun(_ context.Context, _, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	if r, ok := f.runs[runID]; ok {
		r.status = RunStatusCancelled
	}
	return nil
}

func (f *fakeBackend) LatestMessage(_ context.Context, threadID string) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs, ok := f.threads[threadID]
	if !ok {
		return nil, ErrRemoteNotFound
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	m := msgs[len(msgs)-1]
	return &m, nil
}
