package engine

import (
	"context"
	"errors"
	"time"

	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/repo"
)

// ServiceCreateOptions are parameters for a creator's catalog offering.
type ServiceCreateOptions struct {
	ID          string
	CreatorID   string
	Title       string
	Description string
	Category    string
	Price       int64
	ActorID     string
}

func (e Engine) CreateService(ctx context.Context, opts ServiceCreateOptions) (domain.Service, error) {
	if opts.CreatorID == "" {
		return domain.Service{}, ValidationError{Field: "creator_id", Reason: "required"}
	}
	if opts.Title == "" {
		return domain.Service{}, ValidationError{Field: "title", Reason: "required"}
	}
	if opts.Price <= 0 {
		return domain.Service{}, ValidationError{Field: "price", Reason: "must be positive"}
	}
	if opts.Category != "" && e.Config != nil && len(e.Config.Categories) > 0 {
		if _, ok := e.Config.Categories[opts.Category]; !ok {
			return domain.Service{}, ValidationError{Field: "category", Reason: "unknown category " + opts.Category}
		}
	}
	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = newID(opts.CreatorID, opts.Title, now)
	}
	s := domain.Service{
		ID:          id,
		CreatorID:   opts.CreatorID,
		Title:       opts.Title,
		Description: opts.Description,
		Category:    opts.Category,
		Price:       opts.Price,
		CreatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Service{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureActor(ctx, tx, s.CreatorID, now); err != nil {
		return domain.Service{}, err
	}
	if err := e.Repo.InsertServiceTx(ctx, tx, s); err != nil {
		return domain.Service{}, err
	}
	if err := e.Events.Append(ctx, tx, "service.created", e.marketplaceID(), "service", s.ID, opts.ActorID, events.EventPayload{
		"creator_id": s.CreatorID,
		"title":      s.Title,
	}); err != nil {
		return domain.Service{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Service{}, err
	}
	return s, nil
}

func (e Engine) SetServiceFeatured(ctx context.Context, serviceID string, featured bool, actorID string) (domain.Service, error) {
	s, err := e.Repo.GetService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Service{}, NotFoundError{Kind: "service", ID: serviceID}
		}
		return domain.Service{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Service{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.SetServiceFeaturedTx(ctx, tx, serviceID, featured); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Service{}, NotFoundError{Kind: "service", ID: serviceID}
		}
		return domain.Service{}, err
	}
	if err := e.Events.Append(ctx, tx, "service.featured", e.marketplaceID(), "service", serviceID, actorID, events.EventPayload{
		"featured": featured,
	}); err != nil {
		return domain.Service{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Service{}, err
	}
	s.Featured = featured
	return s, nil
}

// MessagePostOptions append to an order's message log.
type MessagePostOptions struct {
	ID       string
	OrderID  string
	SenderID string
	Body     string
	ActorID  string
}

func (e Engine) PostMessage(ctx context.Context, opts MessagePostOptions) (domain.Message, error) {
	if opts.SenderID == "" {
		return domain.Message{}, ValidationError{Field: "sender_id", Reason: "required"}
	}
	if opts.Body == "" {
		return domain.Message{}, ValidationError{Field: "body", Reason: "required"}
	}
	if _, err := e.Repo.GetOrder(ctx, opts.OrderID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Message{}, NotFoundError{Kind: "order", ID: opts.OrderID}
		}
		return domain.Message{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = newID(opts.OrderID, opts.SenderID, now, opts.Body)
	}
	m := domain.Message{
		ID:        id,
		OrderID:   opts.OrderID,
		SenderID:  opts.SenderID,
		Body:      opts.Body,
		CreatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Message{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureActor(ctx, tx, m.SenderID, now); err != nil {
		return domain.Message{}, err
	}
	if err := e.Repo.InsertMessageTx(ctx, tx, m); err != nil {
		return domain.Message{}, err
	}
	if err := e.Events.Append(ctx, tx, "message.posted", e.marketplaceID(), "message", m.ID, opts.ActorID, events.EventPayload{
		"order_id": m.OrderID,
	}); err != nil {
		return domain.Message{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Message{}, err
	}
	return m, nil
}

// PortfolioAddOptions publish a work sample on a creator profile.
type PortfolioAddOptions struct {
	ID          string
	CreatorID   string
	Title       string
	Description string
	URL         string
	ActorID     string
}

func (e Engine) AddPortfolioItem(ctx context.Context, opts PortfolioAddOptions) (domain.PortfolioItem, error) {
	if opts.CreatorID == "" {
		return domain.PortfolioItem{}, ValidationError{Field: "creator_id", Reason: "required"}
	}
	if opts.Title == "" {
		return domain.PortfolioItem{}, ValidationError{Field: "title", Reason: "required"}
	}
	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = newID(opts.CreatorID, opts.Title, now)
	}
	item := domain.PortfolioItem{
		ID:          id,
		CreatorID:   opts.CreatorID,
		Title:       opts.Title,
		Description: opts.Description,
		URL:         opts.URL,
		CreatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PortfolioItem{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureActor(ctx, tx, item.CreatorID, now); err != nil {
		return domain.PortfolioItem{}, err
	}
	if err := e.Repo.InsertPortfolioItemTx(ctx, tx, item); err != nil {
		return domain.PortfolioItem{}, err
	}
	if err := e.Events.Append(ctx, tx, "portfolio.added", e.marketplaceID(), "portfolio", item.ID, opts.ActorID, nil); err != nil {
		return domain.PortfolioItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.PortfolioItem{}, err
	}
	return item, nil
}
