// Package domain contains core domain types for the Elenchus application.
package domain

import (
	"time"
)

// AssistantRecord is the durable mapping from a persona name to the remote
// assistant provisioned for it.
type AssistantRecord struct {
	PersonaName      string    `json:"-"`
	AssistantID      string    `json:"assistant_id"`
	KnowledgeIndexID string    `json:"knowledge_index_id,omitempty"`
	Model            string    `json:"model,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitzero"`
	UpdatedAt        time.Time `json:"updated_at,omitzero"`
}

// HasKnowledge returns true if a knowledge index was attached at provisioning.
func (r *AssistantRecord) HasKnowledge() bool {
	return r.KnowledgeIndexID != ""
}
