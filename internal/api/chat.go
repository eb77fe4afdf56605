package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/elenchus/internal/agent"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// maxChatBodyBytes caps the /chat request body.
const maxChatBodyBytes = 1 << 20

// Greeting is the body of GET /.
const Greeting = "hello! Welcome to Elenchus"

// Conversations is the conversation surface the chat routes need.
type Conversations interface {
	StartConversation(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, threadID, text string) (string, error)
}

var _ Conversations = (*agent.Service)(nil)

// ChatHandler serves the conversation endpoints.
type ChatHandler struct {
	conv   Conversations
	logger *slog.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(conv Conversations, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{conv: conv, logger: logger}
}

// RegisterRoutes registers the conversation routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Home)
	r.Get("/start", h.Start)
	r.Post("/chat", h.Chat)
}

// Home returns the greeting.
func (h *ChatHandler) Home(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, Greeting)
}

// Start opens a new conversation thread.
func (h *ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	threadID, err := h.conv.StartConversation(r.Context())
	if err != nil {
		logger.Error("Failed to start conversation", "error", err)
		Error(w, http.StatusBadGateway, "failed to start conversation")
		return
	}

	logger.Info("Starting a new conversation", "thread_id", threadID)
	JSON(w, http.StatusOK, agent.StartResponse{ThreadID: threadID})
}

// Chat sends one user message and returns the assistant's reply.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	var req agent.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ThreadID == "" {
		logger.Warn("Error: Missing thread_id")
		Error(w, http.StatusBadRequest, "Missing thread_id")
		return
	}

	logger = logger.With("thread_id", req.ThreadID)
	logger.Info("Received message", "message_length", len(req.Message))

	reply, err := h.conv.SendMessage(r.Context(), req.ThreadID, req.Message)
	if err != nil {
		status, message := chatErrorStatus(err)
		logger.Error("Message exchange failed", "status", status, "error", err)
		Error(w, status, message)
		return
	}

	JSON(w, http.StatusOK, agent.ChatResponse{Response: reply})
}

// chatErrorStatus maps a SendMessage error to a status and client message.
func chatErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, agent.ErrMissingThreadID):
		return http.StatusBadRequest, "Missing thread_id"
	case errors.Is(err, agent.ErrRemoteNotFound):
		return http.StatusNotFound, "unknown thread_id"
	case errors.Is(err, agent.ErrPollTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "assistant did not reply in time"
	default:
		return http.StatusBadGateway, "assistant request failed"
	}
}

func (h *ChatHandler) requestLogger(r *http.Request) *slog.Logger {
	if reqID := chiMiddleware.GetReqID(r.Context()); reqID != "" {
		return h.logger.With("request_id", reqID)
	}
	return h.logger
}
