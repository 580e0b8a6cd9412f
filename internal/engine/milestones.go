package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/repo"
)

// MilestoneCreateOptions are parameters for planning a checkpoint on an
// order.
type MilestoneCreateOptions struct {
	ID          string
	OrderID     string
	Title       string
	Description string
	DueDate     string
	ActorID     string
}

func (e Engine) CreateMilestone(ctx context.Context, opts MilestoneCreateOptions) (domain.Milestone, error) {
	if opts.Title == "" {
		return domain.Milestone{}, ValidationError{Field: "title", Reason: "required"}
	}
	o, err := e.Repo.GetOrder(ctx, opts.OrderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Milestone{}, NotFoundError{Kind: "order", ID: opts.OrderID}
		}
		return domain.Milestone{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = newID(opts.OrderID, opts.Title, now)
	}
	m := domain.Milestone{
		ID:          id,
		OrderID:     o.ID,
		ProjectID:   o.ProjectID,
		Title:       opts.Title,
		Description: opts.Description,
		State:       "planned",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if opts.DueDate != "" {
		m.DueDate = &opts.DueDate
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Milestone{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertMilestoneTx(ctx, tx, m); err != nil {
		return domain.Milestone{}, err
	}
	if err := e.Events.Append(ctx, tx, "milestone.created", e.marketplaceID(), "milestone", m.ID, opts.ActorID, events.EventPayload{
		"order_id": m.OrderID,
		"title":    m.Title,
	}); err != nil {
		return domain.Milestone{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Milestone{}, err
	}
	return m, nil
}

// MilestoneUpdateOptions patch planning data. Milestones are mutable
// plans, so no transition table applies here.
type MilestoneUpdateOptions struct {
	Title       *string
	Description *string
	DueDate     *string
	ClearDue    bool
	State       *string
	ActorID     string
}

func (e Engine) UpdateMilestone(ctx context.Context, milestoneID string, opts MilestoneUpdateOptions) (domain.Milestone, error) {
	if opts.Title != nil && *opts.Title == "" {
		return domain.Milestone{}, ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if _, err := e.Repo.GetMilestone(ctx, milestoneID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Milestone{}, NotFoundError{Kind: "milestone", ID: milestoneID}
		}
		return domain.Milestone{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Milestone{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateMilestoneTx(ctx, tx, milestoneID, repo.MilestonePatch{
		Title:        opts.Title,
		Description:  opts.Description,
		DueDate:      opts.DueDate,
		ClearDueDate: opts.ClearDue,
		State:        opts.State,
	}, now); err != nil {
		return domain.Milestone{}, err
	}
	if err := e.Events.Append(ctx, tx, "milestone.updated", e.marketplaceID(), "milestone", milestoneID, opts.ActorID, nil); err != nil {
		return domain.Milestone{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Milestone{}, err
	}
	return e.Repo.GetMilestone(ctx, milestoneID)
}

// DeliverySubmitOptions are parameters for a creator submission against
// a milestone.
type DeliverySubmitOptions struct {
	ID          string
	MilestoneID string
	CreatorID   string
	Note        string
	FileURL     string
	ActorID     string
}

// SubmitDelivery appends one more submission under the milestone.
// History is insert-only; resubmissions never replace earlier rows.
func (e Engine) SubmitDelivery(ctx context.Context, opts DeliverySubmitOptions) (domain.Delivery, error) {
	if opts.CreatorID == "" {
		return domain.Delivery{}, ValidationError{Field: "creator_id", Reason: "required"}
	}
	if _, err := e.Repo.GetMilestone(ctx, opts.MilestoneID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Delivery{}, NotFoundError{Kind: "milestone", ID: opts.MilestoneID}
		}
		return domain.Delivery{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	// Random IDs here: identical resubmissions must still be distinct rows.
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	d := domain.Delivery{
		ID:          id,
		MilestoneID: opts.MilestoneID,
		CreatorID:   opts.CreatorID,
		Note:        opts.Note,
		FileURL:     opts.FileURL,
		CreatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Delivery{}, err
	}
	defer tx.Rollback()

	seq, err := e.Repo.InsertDeliveryTx(ctx, tx, d)
	if err != nil {
		return domain.Delivery{}, err
	}
	d.Seq = seq
	if err := e.Events.Append(ctx, tx, "delivery.submitted", e.marketplaceID(), "delivery", d.ID, opts.ActorID, events.EventPayload{
		"milestone_id": d.MilestoneID,
		"seq":          d.Seq,
	}); err != nil {
		return domain.Delivery{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Delivery{}, err
	}
	return d, nil
}

// ListDeliveries returns submissions oldest first; the last element is
// the current delivery state.
func (e Engine) ListDeliveries(ctx context.Context, milestoneID string) ([]domain.Delivery, error) {
	if _, err := e.Repo.GetMilestone(ctx, milestoneID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NotFoundError{Kind: "milestone", ID: milestoneID}
		}
		return nil, err
	}
	return e.Repo.ListDeliveries(ctx, milestoneID)
}
