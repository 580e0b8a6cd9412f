package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/repo"
	"gigline/internal/sowgen"
)

// SowGenerateOptions carry optional video-brief parameters on top of
// the project's own attributes.
type SowGenerateOptions struct {
	VideoDurationSeconds int
	VideoStyle           string
	VideoReferences      []string
	ActorID              string
}

// GenerateSOW drafts and persists the next statement-of-work version
// for a project. The provider call is bounded by the configured
// timeout; a failed call persists nothing, so version numbers have no
// gaps.
func (e Engine) GenerateSOW(ctx context.Context, projectID string, opts SowGenerateOptions) (domain.SOW, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.SOW{}, NotFoundError{Kind: "project", ID: projectID}
		}
		return domain.SOW{}, err
	}
	gen := e.Sow
	if gen == nil {
		gen = sowgen.Static{}
	}
	currency := ""
	timeout := 30
	if e.Config != nil {
		currency = e.Config.Marketplace.Currency
		timeout = e.Config.SowTimeoutSeconds()
	}
	brief := sowgen.Brief{
		Title:                p.Title,
		Description:          p.Description,
		Category:             p.Category,
		BudgetMin:            p.BudgetMin,
		BudgetMax:            p.BudgetMax,
		Currency:             currency,
		Deadline:             p.Deadline,
		VideoDurationSeconds: opts.VideoDurationSeconds,
		VideoStyle:           opts.VideoStyle,
		VideoReferences:      opts.VideoReferences,
	}
	genCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()
	content, err := gen.Generate(genCtx, brief)
	if err != nil {
		return domain.SOW{}, GenerationError{Provider: gen.Name(), Err: err}
	}
	if strings.TrimSpace(content) == "" {
		return domain.SOW{}, GenerationError{Provider: gen.Name(), Err: errors.New("empty document")}
	}

	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.SOW{}, err
	}
	defer tx.Rollback()

	// Version allocation happens inside the write transaction so failed
	// generations never consume a number.
	prev, err := e.Repo.MaxSOWVersionTx(ctx, tx, projectID)
	if err != nil {
		return domain.SOW{}, err
	}
	s := domain.SOW{
		ProjectID:   projectID,
		Version:     prev + 1,
		Content:     content,
		Provider:    gen.Name(),
		GeneratedAt: now,
	}
	if err := e.Repo.InsertSOWTx(ctx, tx, s); err != nil {
		return domain.SOW{}, err
	}
	if err := e.Events.Append(ctx, tx, "sow.generated", e.marketplaceID(), "sow", projectID, opts.ActorID, events.EventPayload{
		"version":  s.Version,
		"provider": s.Provider,
	}); err != nil {
		return domain.SOW{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.SOW{}, err
	}
	return s, nil
}
