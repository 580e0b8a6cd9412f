package engine

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"

	"gigline/internal/config"
	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/repo"
	"gigline/internal/sowgen"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Sow    sowgen.Generator
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	e := Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
	if cfg != nil {
		e.Sow = sowgen.Select(cfg.Sow.Provider, cfg.Sow.Endpoint, cfg.Sow.Model, os.Getenv("OPENAI_API_KEY"))
	} else {
		e.Sow = sowgen.Static{}
	}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) marketplaceID() string {
	if e.Config == nil {
		return ""
	}
	return e.Config.Marketplace.ID
}

func newID(parts ...string) string {
	joined := ""
	for _, p := range parts {
		joined += p + "|"
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(joined)).String()
}

// ProjectCreateOptions are parameters for posting a project.
type ProjectCreateOptions struct {
	ID          string
	BuyerID     string
	Title       string
	Description string
	Category    string
	BudgetMin   int64
	BudgetMax   int64
	Deadline    string
	ActorID     string
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if opts.Title == "" {
		return domain.Project{}, ValidationError{Field: "title", Reason: "required"}
	}
	if opts.BuyerID == "" {
		return domain.Project{}, ValidationError{Field: "buyer_id", Reason: "required"}
	}
	if opts.BudgetMin < 0 || opts.BudgetMax < 0 {
		return domain.Project{}, ValidationError{Field: "budget", Reason: "must be non-negative"}
	}
	if opts.BudgetMin > 0 && opts.BudgetMax > 0 && opts.BudgetMin > opts.BudgetMax {
		return domain.Project{}, ValidationError{Field: "budget", Reason: "min exceeds max"}
	}
	if opts.Category != "" && e.Config != nil && len(e.Config.Categories) > 0 {
		if _, ok := e.Config.Categories[opts.Category]; !ok {
			return domain.Project{}, ValidationError{Field: "category", Reason: "unknown category " + opts.Category}
		}
	}
	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = newID(opts.BuyerID, opts.Title, now)
	}
	p := domain.Project{
		ID:          id,
		BuyerID:     opts.BuyerID,
		Title:       opts.Title,
		Description: opts.Description,
		Category:    opts.Category,
		BudgetMin:   opts.BudgetMin,
		BudgetMax:   opts.BudgetMax,
		Deadline:    opts.Deadline,
		Status:      "open",
		CreatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureActor(ctx, tx, p.BuyerID, now); err != nil {
		return domain.Project{}, err
	}
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, "project.created", e.marketplaceID(), "project", p.ID, opts.ActorID, events.EventPayload{
		"title":    p.Title,
		"buyer_id": p.BuyerID,
	}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// CloseProject marks a project closed; closed projects accept no new
// proposals.
func (e Engine) CloseProject(ctx context.Context, id, actorID string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Project{}, NotFoundError{Kind: "project", ID: id}
		}
		return domain.Project{}, err
	}
	if p.Status == "closed" {
		return domain.Project{}, InvalidStateError{Kind: "project", ID: id, Status: p.Status, Op: "close"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateProjectStatus(ctx, tx, id, "closed"); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, "project.closed", e.marketplaceID(), "project", id, actorID, nil); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	p.Status = "closed"
	return p, nil
}

// ProposalSubmitOptions are parameters for a creator's bid on a project.
type ProposalSubmitOptions struct {
	ID            string
	ProjectID     string
	CreatorID     string
	ServiceID     string
	DeliveryDays  int
	MilestonePlan string
	RevisionScope string
	Price         int64
	ActorID       string
}

func (e Engine) SubmitProposal(ctx context.Context, opts ProposalSubmitOptions) (domain.Proposal, error) {
	if opts.CreatorID == "" {
		return domain.Proposal{}, ValidationError{Field: "creator_id", Reason: "required"}
	}
	if opts.DeliveryDays <= 0 {
		return domain.Proposal{}, ValidationError{Field: "delivery_days", Reason: "must be positive"}
	}
	if opts.Price <= 0 {
		return domain.Proposal{}, ValidationError{Field: "price", Reason: "must be positive"}
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Proposal{}, NotFoundError{Kind: "project", ID: opts.ProjectID}
		}
		return domain.Proposal{}, err
	}
	if p.Status != "open" {
		return domain.Proposal{}, InvalidStateError{Kind: "project", ID: p.ID, Status: p.Status, Op: "submit proposal"}
	}
	if opts.ServiceID != "" {
		if _, err := e.Repo.GetService(ctx, opts.ServiceID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return domain.Proposal{}, NotFoundError{Kind: "service", ID: opts.ServiceID}
			}
			return domain.Proposal{}, err
		}
	}
	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = newID(opts.ProjectID, opts.CreatorID, now)
	}
	prop := domain.Proposal{
		ID:            id,
		ProjectID:     opts.ProjectID,
		CreatorID:     opts.CreatorID,
		DeliveryDays:  opts.DeliveryDays,
		MilestonePlan: opts.MilestonePlan,
		RevisionScope: opts.RevisionScope,
		Price:         opts.Price,
		Status:        domain.ProposalPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if opts.ServiceID != "" {
		prop.ServiceID = &opts.ServiceID
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Proposal{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureActor(ctx, tx, prop.CreatorID, now); err != nil {
		return domain.Proposal{}, err
	}
	if err := e.Repo.InsertProposalTx(ctx, tx, prop); err != nil {
		return domain.Proposal{}, err
	}
	if err := e.Events.Append(ctx, tx, "proposal.submitted", e.marketplaceID(), "proposal", prop.ID, opts.ActorID, events.EventPayload{
		"project_id":    prop.ProjectID,
		"creator_id":    prop.CreatorID,
		"price":         prop.Price,
		"delivery_days": prop.DeliveryDays,
	}); err != nil {
		return domain.Proposal{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Proposal{}, err
	}
	return prop, nil
}

// DecideProposal accepts or rejects a pending proposal. Accepting
// creates the order in the same transaction, carrying the proposal's
// price and delivery terms. A proposal is decided exactly once; the
// conditional update serializes concurrent deciders.
func (e Engine) DecideProposal(ctx context.Context, proposalID, decision, actorID string) (domain.Proposal, *domain.Order, error) {
	if decision != domain.ProposalAccepted && decision != domain.ProposalRejected {
		return domain.Proposal{}, nil, ValidationError{Field: "decision", Reason: "must be accepted or rejected"}
	}
	prop, err := e.Repo.GetProposal(ctx, proposalID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Proposal{}, nil, NotFoundError{Kind: "proposal", ID: proposalID}
		}
		return domain.Proposal{}, nil, err
	}
	if prop.Status != domain.ProposalPending {
		return domain.Proposal{}, nil, InvalidStateError{Kind: "proposal", ID: proposalID, Status: prop.Status, Op: "decide"}
	}
	project, err := e.Repo.GetProject(ctx, prop.ProjectID)
	if err != nil {
		return domain.Proposal{}, nil, err
	}
	status := decision
	now := e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Proposal{}, nil, err
	}
	defer tx.Rollback()

	ok, err := e.Repo.DecideProposalTx(ctx, tx, proposalID, status, now)
	if err != nil {
		return domain.Proposal{}, nil, err
	}
	if !ok {
		// A concurrent decider won between our read and this update.
		return domain.Proposal{}, nil, InvalidStateError{Kind: "proposal", ID: proposalID, Status: "decided", Op: "decide"}
	}
	prop.Status = status
	prop.UpdatedAt = now

	var order *domain.Order
	if status == domain.ProposalAccepted {
		o := domain.Order{
			ID:           newID(prop.ID, "order"),
			ProjectID:    prop.ProjectID,
			ProposalID:   prop.ID,
			BuyerID:      project.BuyerID,
			CreatorID:    prop.CreatorID,
			ServiceID:    prop.ServiceID,
			Price:        prop.Price,
			DeliveryDays: prop.DeliveryDays,
			Status:       domain.OrderCreated,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := e.Repo.InsertOrderTx(ctx, tx, o); err != nil {
			return domain.Proposal{}, nil, err
		}
		if err := e.Events.Append(ctx, tx, "proposal.accepted", e.marketplaceID(), "proposal", prop.ID, actorID, events.EventPayload{
			"order_id": o.ID,
		}); err != nil {
			return domain.Proposal{}, nil, err
		}
		if err := e.Events.Append(ctx, tx, "order.created", e.marketplaceID(), "order", o.ID, actorID, events.EventPayload{
			"project_id":    o.ProjectID,
			"proposal_id":   o.ProposalID,
			"price":         o.Price,
			"delivery_days": o.DeliveryDays,
		}); err != nil {
			return domain.Proposal{}, nil, err
		}
		if e.Config != nil && e.Config.Proposals.AutoRejectSiblings {
			rejected, err := e.Repo.RejectSiblingProposalsTx(ctx, tx, prop.ProjectID, prop.ID, now)
			if err != nil {
				return domain.Proposal{}, nil, err
			}
			for _, siblingID := range rejected {
				if err := e.Events.Append(ctx, tx, "proposal.rejected", e.marketplaceID(), "proposal", siblingID, actorID, events.EventPayload{
					"reason": "sibling accepted",
				}); err != nil {
					return domain.Proposal{}, nil, err
				}
			}
		}
		order = &o
	} else {
		if err := e.Events.Append(ctx, tx, "proposal.rejected", e.marketplaceID(), "proposal", prop.ID, actorID, nil); err != nil {
			return domain.Proposal{}, nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Proposal{}, nil, err
	}
	return prop, order, nil
}

// ProposalTermsOptions patches price and terms on a pending proposal.
type ProposalTermsOptions struct {
	DeliveryDays  *int
	MilestonePlan *string
	RevisionScope *string
	Price         *int64
	ActorID       string
}

func (e Engine) UpdateProposalTerms(ctx context.Context, proposalID string, opts ProposalTermsOptions) (domain.Proposal, error) {
	if opts.DeliveryDays != nil && *opts.DeliveryDays <= 0 {
		return domain.Proposal{}, ValidationError{Field: "delivery_days", Reason: "must be positive"}
	}
	if opts.Price != nil && *opts.Price <= 0 {
		return domain.Proposal{}, ValidationError{Field: "price", Reason: "must be positive"}
	}
	if opts.DeliveryDays == nil && opts.MilestonePlan == nil && opts.RevisionScope == nil && opts.Price == nil {
		return domain.Proposal{}, ValidationError{Field: "patch", Reason: "no fields to update"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Proposal{}, err
	}
	defer tx.Rollback()

	prop, err := e.Repo.GetProposalTx(ctx, tx, proposalID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Proposal{}, NotFoundError{Kind: "proposal", ID: proposalID}
		}
		return domain.Proposal{}, err
	}
	if prop.Status != domain.ProposalPending {
		return domain.Proposal{}, InvalidStateError{Kind: "proposal", ID: proposalID, Status: prop.Status, Op: "update terms"}
	}
	now := e.now().UTC().Format(time.RFC3339)
	ok, err := e.Repo.UpdateProposalTermsTx(ctx, tx, proposalID, repo.ProposalTermsPatch{
		DeliveryDays:  opts.DeliveryDays,
		MilestonePlan: opts.MilestonePlan,
		RevisionScope: opts.RevisionScope,
		Price:         opts.Price,
	}, now)
	if err != nil {
		return domain.Proposal{}, err
	}
	if !ok {
		return domain.Proposal{}, InvalidStateError{Kind: "proposal", ID: proposalID, Status: "decided", Op: "update terms"}
	}
	if err := e.Events.Append(ctx, tx, "proposal.terms_updated", e.marketplaceID(), "proposal", proposalID, opts.ActorID, nil); err != nil {
		return domain.Proposal{}, err
	}
	updated, err := e.Repo.GetProposalTx(ctx, tx, proposalID)
	if err != nil {
		return domain.Proposal{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Proposal{}, err
	}
	return updated, nil
}

// UpdateOrderStatus moves an order along its forward-only lifecycle.
// Cancellation is the only escape and is unreachable from completed.
func (e Engine) UpdateOrderStatus(ctx context.Context, orderID, newStatus, actorID string) (domain.Order, error) {
	switch newStatus {
	case domain.OrderInProgress, domain.OrderCompleted, domain.OrderCancelled:
	default:
		return domain.Order{}, ValidationError{Field: "status", Reason: "unknown order status " + newStatus}
	}
	o, err := e.Repo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Order{}, NotFoundError{Kind: "order", ID: orderID}
		}
		return domain.Order{}, err
	}
	if err := ensureOrderTransition(o.Status, newStatus); err != nil {
		return domain.Order{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	var completedAt *string
	if newStatus == domain.OrderCompleted {
		completedAt = &now
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()

	ok, err := e.Repo.SetOrderStatusTx(ctx, tx, orderID, o.Status, newStatus, now, completedAt)
	if err != nil {
		return domain.Order{}, err
	}
	if !ok {
		return domain.Order{}, ConflictError{Kind: "order", ID: orderID}
	}
	if err := e.Events.Append(ctx, tx, "order.status", e.marketplaceID(), "order", orderID, actorID, events.EventPayload{
		"from": o.Status,
		"to":   newStatus,
	}); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Order{}, err
	}
	o.Status = newStatus
	o.UpdatedAt = now
	o.CompletedAt = completedAt
	return o, nil
}

func ensureOrderTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case domain.OrderCreated:
		if newStatus == domain.OrderInProgress || newStatus == domain.OrderCancelled {
			return nil
		}
	case domain.OrderInProgress:
		if newStatus == domain.OrderCompleted || newStatus == domain.OrderCancelled {
			return nil
		}
	}
	return InvalidTransitionError{Kind: "order", From: oldStatus, To: newStatus}
}
