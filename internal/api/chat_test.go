//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ashureev/elenchus/internal/agent"
	"github.com/go-chi/chi/v5"
)

type fakeConversations struct {
	mu        sync.Mutex
	threads   int
	startErr  error
	reply     string
	sendErr   error
	lastID    string
	lastText  string
	sendCalls int
}

func (f *fakeConversations) StartConversation(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.threads++
	return fmt.Sprintf("thread_%d", f.threads), nil
}

func (f *fakeConversations) SendMessage(_ context.Context, threadID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	f.lastID = threadID
	f.lastText = text
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return f.reply, nil
}

func newChatRouter(conv Conversations) http.Handler {
	r := chi.NewRouter()
	NewChatHandler(conv, nil).RegisterRoutes(r)
	return r
}

func decodeBody(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return got
}

func TestHome(t *testing.T) {
	w := httptest.NewRecorder()
	newChatRouter(&fakeConversations{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var got string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got != Greeting {
		t.Errorf("Expected greeting, got %q", got)
	}
}

func TestStart(t *testing.T) {
	conv := &fakeConversations{}
	router := newChatRouter(conv)

	ids := make(map[string]bool)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/start", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		got := decodeBody(t, w.Result())
		if got["thread_id"] == "" {
			t.Fatalf("Expected thread_id, got %v", got)
		}
		ids[got["thread_id"]] = true
	}
	if len(ids) != 2 {
		t.Errorf("Expected distinct thread ids, got %v", ids)
	}
}

func TestStartFailure(t *testing.T) {
	conv := &fakeConversations{startErr: fmt.Errorf("%w: boom", agent.ErrThreadCreation)}

	w := httptest.NewRecorder()
	newChatRouter(conv).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/start", nil))

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", w.Code)
	}
}

func TestChat(t *testing.T) {
	conv := &fakeConversations{reply: "Nice to meet you, Blair!"}

	body := `{"thread_id": "thread_1", "message": "Hello! My name is Blair Vales."}`
	w := httptest.NewRecorder()
	newChatRouter(conv).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w.Result()); got["response"] != "Nice to meet you, Blair!" {
		t.Errorf("Unexpected response %v", got)
	}
	if conv.lastID != "thread_1" || conv.lastText != "Hello! My name is Blair Vales." {
		t.Errorf("Unexpected forwarded message %q/%q", conv.lastID, conv.lastText)
	}
}

func TestChatMissingThreadID(t *testing.T) {
	conv := &fakeConversations{}

	w := httptest.NewRecorder()
	newChatRouter(conv).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message": "hi"}`)))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}
	if got := decodeBody(t, w.Result()); got["error"] != "Missing thread_id" {
		t.Errorf("Unexpected error body %v", got)
	}
	if conv.sendCalls != 0 {
		t.Errorf("SendMessage must not be called without a thread id")
	}
}

func TestChatBadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"thread_id":`, http.StatusBadRequest},
		{"empty", ``, http.StatusBadRequest},
		{"too large", `{"thread_id": "t", "message": "` + strings.Repeat("a", maxChatBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newChatRouter(&fakeConversations{}).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tt.body)))
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestChatErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"timeout", fmt.Errorf("%w: %w", agent.ErrMessageExchange, agent.ErrPollTimeout), http.StatusGatewayTimeout},
		{"unknown thread", fmt.Errorf("%w: %w", agent.ErrMessageExchange, agent.ErrRemoteNotFound), http.StatusNotFound},
		{"run failed", fmt.Errorf("%w: %w", agent.ErrMessageExchange, &agent.RunError{RunID: "run_1", Status: agent.RunStatusFailed}), http.StatusBadGateway},
		{"requires action", fmt.Errorf("%w: %w", agent.ErrMessageExchange, agent.ErrRequiresAction), http.StatusBadGateway},
		{"other", errors.New("connection refused"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := &fakeConversations{sendErr: tt.err}
			w := httptest.NewRecorder()
			body := `{"thread_id": "thread_1", "message": "hi"}`
			newChatRouter(conv).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, w.Code)
			}
		})
	}
}
