package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/elenchus/internal/domain"
	"github.com/ashureev/elenchus/internal/store"
	"golang.org/x/sync/singleflight"
)

// ProvisionerOptions configure assistant provisioning.
type ProvisionerOptions struct {
	Model            string
	InstructionsPath string
	// Timeout bounds one provisioning flight, independent of any caller.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Provisioner creates the persona's remote assistant once and reuses the
// stored id on every later startup.
type Provisioner struct {
	repo      store.Repository
	backend   Backend
	knowledge *KnowledgeStore
	opts      ProvisionerOptions
	group     singleflight.Group
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(repo store.Repository, backend Backend, knowledge *KnowledgeStore, optFns ...func(o *ProvisionerOptions)) *Provisioner {
	opts := ProvisionerOptions{
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if knowledge == nil {
		knowledge = NewKnowledgeStore(backend, "", opts.Logger)
	}
	return &Provisioner{
		repo:      repo,
		backend:   backend,
		knowledge: knowledge,
		opts:      opts,
	}
}

// Provision returns the assistant id for personaName, creating the assistant
// only when no record exists. Concurrent calls for one persona share a single
// creation. The shared flight is detached from every caller's cancellation, so
// a caller that gives up returns early without failing the others.
func (p *Provisioner) Provision(ctx context.Context, personaName string) (string, error) {
	if strings.TrimSpace(personaName) == "" {
		return "", fmt.Errorf("%w: empty persona name", ErrProvisioning)
	}

	ch := p.group.DoChan(personaName, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.Timeout)
		defer cancel()
		return p.provision(flightCtx, personaName)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrProvisioning, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			p.opts.Logger.Debug("Provisioning result shared", "persona", personaName)
		}
		return res.Val.(string), nil
	}
}

func (p *Provisioner) provision(ctx context.Context, personaName string) (string, error) {
	logger := p.opts.Logger.With("persona", personaName)

	rec, err := p.repo.GetAssistant(ctx, personaName)
	if err != nil {
		return "", fmt.Errorf("%w: load assistant record: %w", ErrProvisioning, err)
	}
	if rec != nil {
		logger.Info("Loaded existing assistant ID", "assistant_id", rec.AssistantID)
		return rec.AssistantID, nil
	}

	instructions, err := p.instructions(personaName)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProvisioning, err)
	}

	// Ingestion errors are already ErrKnowledgeIngestion and stay fatal.
	indexID, err := p.knowledge.Ingest(ctx)
	if err != nil {
		return "", err
	}

	assistantID, err := p.backend.CreateAssistant(ctx, AssistantSpec{
		Name:         personaName,
		Instructions: instructions,
		Model:        p.opts.Model,
		FileSearch:   true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: create assistant: %w", ErrProvisioning, err)
	}
	if assistantID == "" {
		return "", fmt.Errorf("%w: remote returned empty assistant id", ErrProvisioning)
	}
	logger = logger.With("assistant_id", assistantID)

	if indexID != "" {
		if err := p.backend.AttachKnowledgeIndex(ctx, assistantID, indexID); err != nil {
			return "", fmt.Errorf("%w: attach knowledge index %s: %w", ErrProvisioning, indexID, err)
		}
		logger.Info("Knowledge index attached", "index_id", indexID)
	}

	err = p.repo.SaveAssistant(ctx, &domain.AssistantRecord{
		PersonaName:      personaName,
		AssistantID:      assistantID,
		KnowledgeIndexID: indexID,
		Model:            p.opts.Model,
	})
	if err != nil {
		logger.Error("Assistant created but record could not be saved", "error", err)
		return "", fmt.Errorf("%w: save assistant record: %w", ErrProvisioning, err)
	}

	logger.Info("Created a new assistant and saved the ID")
	return assistantID, nil
}

func (p *Provisioner) instructions(personaName string) (string, error) {
	text, err := LoadInstructionTemplate(p.opts.InstructionsPath)
	if err != nil {
		return "", err
	}
	personas, err := p.knowledge.Corpus()
	if err != nil {
		return "", err
	}
	return RenderInstructions(text, InstructionData{Name: personaName, Personas: personas})
}
