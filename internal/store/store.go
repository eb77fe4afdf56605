// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/elenchus/internal/domain"
)

// ErrInvalidPersona is returned for persona names that cannot be used as keys.
var ErrInvalidPersona = errors.New("invalid persona name")

// Repository defines the interface for persisting provisioned assistant records.
type Repository interface {
	// GetAssistant retrieves the record for a persona.
	// Returns nil, nil when no record exists.
	GetAssistant(ctx context.Context, personaName string) (*domain.AssistantRecord, error)

	// SaveAssistant creates or replaces the record for rec.PersonaName.
	SaveAssistant(ctx context.Context, rec *domain.AssistantRecord) error

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases the backing storage.
	Close() error
}
