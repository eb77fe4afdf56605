package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/elenchus/internal/domain"
)

// FileStore implements Repository with one JSON document per persona,
// stored as <dir>/<persona>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed repository rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the record file path for a persona.
func (s *FileStore) Path(personaName string) (string, error) {
	if err := validatePersona(personaName); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, personaName+".json"), nil
}

// GetAssistant reads and decodes the persona record.
func (s *FileStore) GetAssistant(_ context.Context, personaName string) (*domain.AssistantRecord, error) {
	path, err := s.Path(personaName)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read assistant record: %w", err)
	}

	var rec domain.AssistantRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode assistant record %s: %w", path, err)
	}
	if rec.AssistantID == "" {
		return nil, fmt.Errorf("assistant record %s has no assistant_id", path)
	}
	rec.PersonaName = personaName

	return &rec, nil
}

// SaveAssistant writes the record atomically (temp file + rename).
func (s *FileStore) SaveAssistant(_ context.Context, rec *domain.AssistantRecord) error {
	path, err := s.Path(rec.PersonaName)
	if err != nil {
		return err
	}
	if rec.AssistantID == "" {
		return fmt.Errorf("save assistant record: empty assistant id")
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode assistant record: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+rec.PersonaName+"-*.json")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp record: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename assistant record: %w", err)
	}
	return nil
}

// Ping checks that the store directory is still accessible.
func (s *FileStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat store directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store path %s is not a directory", s.dir)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }

func validatePersona(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPersona)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidPersona, name)
	}
	return nil
}
