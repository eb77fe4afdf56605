package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/elenchus/internal/config"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements Backend on the OpenAI Assistants API.
type OpenAIClient struct {
	client *openai.Client
	logger *slog.Logger

	batchPollInterval time.Duration
}

// NewOpenAIClient creates a client from configuration. Extra request options
// are applied after the configured ones.
func NewOpenAIClient(cfg config.OpenAIConfig, logger *slog.Logger, opts ...option.RequestOption) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	client := openai.NewClient(reqOpts...)
	return NewOpenAIClientFromClient(&client, logger)
}

// NewOpenAIClientFromClient wraps an existing SDK client.
func NewOpenAIClientFromClient(client *openai.Client, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{client: client, logger: logger, batchPollInterval: time.Second}
}

// CreateKnowledgeIndex creates a vector store, uploads doc and adds it as a
// file batch, then polls the batch until it leaves in_progress.
func (c *OpenAIClient) CreateKnowledgeIndex(ctx context.Context, name string, doc KnowledgeDocument) (IndexResult, error) {
	vs, err := c.client.VectorStores.New(ctx, openai.VectorStoreNewParams{
		Name: openai.String(name),
	})
	if err != nil {
		return IndexResult{}, wrapAPIError("create vector store", err)
	}

	file, err := c.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(doc.Body, doc.Filename, "text/plain"),
		Purpose: openai.FilePurposeAssistants,
	})
	if err != nil {
		return IndexResult{ID: vs.ID}, wrapAPIError("upload knowledge file", err)
	}

	batch, err := c.client.VectorStores.FileBatches.New(ctx, vs.ID, openai.VectorStoreFileBatchNewParams{
		FileIDs: []string{file.ID},
	})
	if err != nil {
		return IndexResult{ID: vs.ID}, wrapAPIError("create file batch", err)
	}

	// FileBatches.PollStatus in the SDK swaps the path parameters, so poll here.
	ticker := time.NewTicker(c.batchPollInterval)
	defer ticker.Stop()
	for batch.Status == openai.VectorStoreFileBatchStatusInProgress {
		select {
		case <-ctx.Done():
			return IndexResult{ID: vs.ID}, ctx.Err()
		case <-ticker.C:
		}
		batch, err = c.client.VectorStores.FileBatches.Get(ctx, vs.ID, batch.ID)
		if err != nil {
			return IndexResult{ID: vs.ID}, wrapAPIError("retrieve file batch", err)
		}
	}

	c.logger.Debug("Vector store file batch finished",
		"vector_store_id", vs.ID,
		"file_id", file.ID,
		"batch_id", batch.ID,
		"status", batch.Status,
	)
	return IndexResult{
		ID:        vs.ID,
		Total:     batch.FileCounts.Total,
		Completed: batch.FileCounts.Completed,
		Failed:    batch.FileCounts.Failed + batch.FileCounts.Cancelled,
	}, nil
}

// CreateAssistant creates an assistant from spec.
func (c *OpenAIClient) CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error) {
	params := openai.BetaAssistantNewParams{
		Model:        openai.ChatModel(spec.Model),
		Name:         openai.String(spec.Name),
		Instructions: openai.String(spec.Instructions),
	}
	if spec.FileSearch {
		params.Tools = []openai.AssistantToolUnionParam{
			{OfFileSearch: &openai.FileSearchToolParam{}},
		}
	}

	asst, err := c.client.Beta.Assistants.New(ctx, params)
	if err != nil {
		return "", wrapAPIError("create assistant", err)
	}
	return asst.ID, nil
}

// AttachKnowledgeIndex sets indexID as the assistant's file_search vector store.
func (c *OpenAIClient) AttachKnowledgeIndex(ctx context.Context, assistantID, indexID string) error {
	_, err := c.client.Beta.Assistants.Update(ctx, assistantID, openai.BetaAssistantUpdateParams{
		ToolResources: openai.BetaAssistantUpdateParamsToolResources{
			FileSearch: openai.BetaAssistantUpdateParamsToolResourcesFileSearch{
				VectorStoreIDs: []string{indexID},
			},
		},
	})
	if err != nil {
		return wrapAPIError("update assistant", err)
	}
	return nil
}

// CreateThread creates an empty thread.
func (c *OpenAIClient) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", wrapAPIError("create thread", err)
	}
	return thread.ID, nil
}

// AddUserMessage appends text as a user message.
func (c *OpenAIClient) AddUserMessage(ctx context.Context, threadID, text string) error {
	_, err := c.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return wrapAPIError("create message", err)
	}
	return nil
}

// CreateRun starts the assistant on the thread.
func (c *OpenAIClient) CreateRun(ctx context.Context, threadID, assistantID string) (Run, error) {
	run, err := c.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	})
	if err != nil {
		return Run{}, wrapAPIError("create run", err)
	}
	return toRun(run), nil
}

// GetRun retrieves a run.
func (c *OpenAIClient) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	run, err := c.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return Run{}, wrapAPIError("retrieve run", err)
	}
	return toRun(run), nil
}

// CancelRun cancels a run.
func (c *OpenAIClient) CancelRun(ctx context.Context, threadID, runID string) error {
	if _, err := c.client.Beta.Threads.Runs.Cancel(ctx, threadID, runID); err != nil {
		return wrapAPIError("cancel run", err)
	}
	return nil
}

// LatestMessage lists the thread newest-first and returns the first entry.
func (c *OpenAIClient) LatestMessage(ctx context.Context, threadID string) (*Message, error) {
	page, err := c.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderDesc,
		Limit: openai.Int(1),
	})
	if err != nil {
		return nil, wrapAPIError("list messages", err)
	}
	if len(page.Data) == 0 {
		return nil, nil
	}

	m := page.Data[0]
	msg := &Message{ID: m.ID, Role: Role(m.Role)}
	if len(m.Content) > 0 && m.Content[0].Type == "text" {
		msg.Text = m.Content[0].Text.Value
	}
	return msg, nil
}

func toRun(run *openai.Run) Run {
	return Run{
		ID:               run.ID,
		ThreadID:         run.ThreadID,
		Status:           RunStatus(run.Status),
		LastErrorCode:    run.LastError.Code,
		LastErrorMessage: run.LastError.Message,
	}
}

// wrapAPIError annotates SDK errors with the operation and marks 404s.
func wrapAPIError(op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("openai %s: %w: %w", op, ErrRemoteNotFound, err)
	}
	return fmt.Errorf("openai %s: %w", op, err)
}
