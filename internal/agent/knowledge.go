package agent

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// DefaultIndexName names the knowledge index built from the persona corpus.
const DefaultIndexName = "Personas"

// KnowledgeStore turns the local persona corpus into a remote knowledge index.
type KnowledgeStore struct {
	backend   Backend
	path      string
	indexName string
	logger    *slog.Logger
}

// NewKnowledgeStore creates a store reading the corpus at path.
func NewKnowledgeStore(backend Backend, path string, logger *slog.Logger) *KnowledgeStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeStore{
		backend:   backend,
		path:      path,
		indexName: DefaultIndexName,
		logger:    logger,
	}
}

// Path returns the corpus location.
func (k *KnowledgeStore) Path() string {
	return k.path
}

// Corpus returns the corpus text, or "" when the file is absent.
func (k *KnowledgeStore) Corpus() (string, error) {
	ok, err := k.available()
	if err != nil || !ok {
		return "", err
	}
	data, err := os.ReadFile(k.path)
	if err != nil {
		return "", fmt.Errorf("read knowledge file: %w", err)
	}
	return string(data), nil
}

// Ingest uploads the corpus into a new index and returns the index id.
// It returns "" without error when there is no corpus to upload.
func (k *KnowledgeStore) Ingest(ctx context.Context) (string, error) {
	ok, err := k.available()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrKnowledgeIngestion, err)
	}
	if !ok {
		k.logger.Info("No personas file found, skipping knowledge index", "path", k.path)
		return "", nil
	}

	f, err := os.Open(k.path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrKnowledgeIngestion, k.path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			k.logger.Warn("failed to close knowledge file", "path", k.path, "error", closeErr)
		}
	}()

	res, err := k.backend.CreateKnowledgeIndex(ctx, k.indexName, KnowledgeDocument{
		Filename: filepath.Base(k.path),
		Body:     f,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrKnowledgeIngestion, err)
	}
	if res.ID == "" {
		return "", fmt.Errorf("%w: remote returned empty index id", ErrKnowledgeIngestion)
	}
	if res.Failed > 0 || res.Completed < res.Total {
		return "", fmt.Errorf("%w: index %s ingested %d/%d files (%d failed)",
			ErrKnowledgeIngestion, res.ID, res.Completed, res.Total, res.Failed)
	}

	k.logger.Info("Knowledge index ready",
		"index_id", res.ID,
		"files_total", res.Total,
		"files_completed", res.Completed,
	)
	return res.ID, nil
}

// available reports whether the corpus exists as a non-empty regular file.
func (k *KnowledgeStore) available() (bool, error) {
	if k.path == "" {
		return false, nil
	}
	info, err := os.Stat(k.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat knowledge file: %w", err)
	}
	if !info.Mode().IsRegular() {
		k.logger.Warn("Knowledge path is not a regular file, ignoring", "path", k.path)
		return false, nil
	}
	if info.Size() == 0 {
		k.logger.Warn("Knowledge file is empty, ignoring", "path", k.path)
		return false, nil
	}
	return true, nil
}
