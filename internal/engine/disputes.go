package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/repo"
)

// ReviewCreateOptions are parameters for reviewing a completed order.
type ReviewCreateOptions struct {
	ID         string
	OrderID    string
	ReviewerID string
	RevieweeID string
	Rating     int
	Comment    string
	ActorID    string
}

func (e Engine) CreateReview(ctx context.Context, opts ReviewCreateOptions) (domain.Review, error) {
	if opts.ReviewerID == "" {
		return domain.Review{}, ValidationError{Field: "reviewer_id", Reason: "required"}
	}
	if opts.RevieweeID == "" {
		return domain.Review{}, ValidationError{Field: "reviewee_id", Reason: "required"}
	}
	if opts.ReviewerID == opts.RevieweeID {
		return domain.Review{}, ValidationError{Field: "reviewee_id", Reason: "must differ from reviewer"}
	}
	min, max := 1, 5
	if e.Config != nil {
		min, max = e.Config.RatingBounds()
	}
	if opts.Rating < min || opts.Rating > max {
		return domain.Review{}, ValidationError{Field: "rating", Reason: fmt.Sprintf("must be between %d and %d", min, max)}
	}
	o, err := e.Repo.GetOrder(ctx, opts.OrderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Review{}, NotFoundError{Kind: "order", ID: opts.OrderID}
		}
		return domain.Review{}, err
	}
	if o.Status != domain.OrderCompleted {
		return domain.Review{}, InvalidStateError{Kind: "order", ID: o.ID, Status: o.Status, Op: "create review"}
	}
	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = newID(o.ProjectID, opts.ReviewerID, opts.RevieweeID)
	}
	rv := domain.Review{
		ID:         id,
		ProjectID:  o.ProjectID,
		OrderID:    o.ID,
		ReviewerID: opts.ReviewerID,
		RevieweeID: opts.RevieweeID,
		Rating:     opts.Rating,
		Comment:    opts.Comment,
		CreatedAt:  now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Review{}, err
	}
	defer tx.Rollback()

	exists, err := e.Repo.ReviewExistsTx(ctx, tx, o.ProjectID, opts.ReviewerID, opts.RevieweeID)
	if err != nil {
		return domain.Review{}, err
	}
	if exists {
		return domain.Review{}, InvalidStateError{Kind: "review", ID: id, Status: "exists", Op: "create review"}
	}
	if err := e.Repo.InsertReviewTx(ctx, tx, rv); err != nil {
		return domain.Review{}, err
	}
	if err := e.Events.Append(ctx, tx, "review.created", e.marketplaceID(), "review", rv.ID, opts.ActorID, events.EventPayload{
		"order_id":    rv.OrderID,
		"reviewee_id": rv.RevieweeID,
		"rating":      rv.Rating,
	}); err != nil {
		return domain.Review{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Review{}, err
	}
	return rv, nil
}

// DisputeRaiseOptions open a contested branch on an order.
type DisputeRaiseOptions struct {
	ID       string
	OrderID  string
	RaisedBy string
	Reason   string
	Evidence []string
	ActorID  string
}

// RaiseDispute opens a dispute against an in-progress or completed
// order. A party who already filed a review on the project cannot then
// dispute it.
func (e Engine) RaiseDispute(ctx context.Context, opts DisputeRaiseOptions) (domain.Dispute, error) {
	if opts.RaisedBy == "" {
		return domain.Dispute{}, ValidationError{Field: "raised_by", Reason: "required"}
	}
	if opts.Reason == "" {
		return domain.Dispute{}, ValidationError{Field: "reason", Reason: "required"}
	}
	o, err := e.Repo.GetOrder(ctx, opts.OrderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Dispute{}, NotFoundError{Kind: "order", ID: opts.OrderID}
		}
		return domain.Dispute{}, err
	}
	if o.Status != domain.OrderInProgress && o.Status != domain.OrderCompleted {
		return domain.Dispute{}, InvalidStateError{Kind: "order", ID: o.ID, Status: o.Status, Op: "raise dispute"}
	}
	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = newID(o.ID, opts.RaisedBy, now)
	}
	d := domain.Dispute{
		ID:        id,
		ProjectID: o.ProjectID,
		OrderID:   o.ID,
		RaisedBy:  opts.RaisedBy,
		Reason:    opts.Reason,
		Evidence:  opts.Evidence,
		Status:    domain.DisputeOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Dispute{}, err
	}
	defer tx.Rollback()

	counterparty := o.CreatorID
	if opts.RaisedBy == o.CreatorID {
		counterparty = o.BuyerID
	}
	reviewed, err := e.Repo.ReviewExistsTx(ctx, tx, o.ProjectID, opts.RaisedBy, counterparty)
	if err != nil {
		return domain.Dispute{}, err
	}
	if reviewed {
		return domain.Dispute{}, InvalidStateError{Kind: "project", ID: o.ProjectID, Status: "reviewed", Op: "raise dispute"}
	}
	if err := e.Repo.InsertDisputeTx(ctx, tx, d); err != nil {
		return domain.Dispute{}, err
	}
	if err := e.Events.Append(ctx, tx, "dispute.raised", e.marketplaceID(), "dispute", d.ID, opts.ActorID, events.EventPayload{
		"order_id":  d.OrderID,
		"raised_by": d.RaisedBy,
	}); err != nil {
		return domain.Dispute{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Dispute{}, err
	}
	return d, nil
}

// AdvanceDisputeStatus moves a dispute one step forward. Skipping a
// step or moving backward fails.
func (e Engine) AdvanceDisputeStatus(ctx context.Context, disputeID, newStatus, actorID string) (domain.Dispute, error) {
	switch newStatus {
	case domain.DisputeInvestigating, domain.DisputeResolved, domain.DisputeClosed:
	default:
		return domain.Dispute{}, ValidationError{Field: "status", Reason: "unknown dispute status " + newStatus}
	}
	d, err := e.Repo.GetDispute(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Dispute{}, NotFoundError{Kind: "dispute", ID: disputeID}
		}
		return domain.Dispute{}, err
	}
	if err := ensureDisputeTransition(d.Status, newStatus); err != nil {
		return domain.Dispute{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Dispute{}, err
	}
	defer tx.Rollback()

	ok, err := e.Repo.SetDisputeStatusTx(ctx, tx, disputeID, d.Status, newStatus, now)
	if err != nil {
		return domain.Dispute{}, err
	}
	if !ok {
		return domain.Dispute{}, ConflictError{Kind: "dispute", ID: disputeID}
	}
	if err := e.Events.Append(ctx, tx, "dispute.status", e.marketplaceID(), "dispute", disputeID, actorID, events.EventPayload{
		"from": d.Status,
		"to":   newStatus,
	}); err != nil {
		return domain.Dispute{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Dispute{}, err
	}
	d.Status = newStatus
	d.UpdatedAt = now
	return d, nil
}

func ensureDisputeTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case domain.DisputeOpen:
		if newStatus == domain.DisputeInvestigating {
			return nil
		}
	case domain.DisputeInvestigating:
		if newStatus == domain.DisputeResolved {
			return nil
		}
	case domain.DisputeResolved:
		if newStatus == domain.DisputeClosed {
			return nil
		}
	}
	return InvalidTransitionError{Kind: "dispute", From: oldStatus, To: newStatus}
}
