package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/migrate"
	"gigline/internal/sowgen"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("mkt-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if err := eng.Repo.UpsertMarketplaceConfig(ctx, "mkt-1", cfg); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func acceptedOrder(t *testing.T, env testEnv) domain.Order {
	t.Helper()
	project, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{
		BuyerID: "buyer-1",
		Title:   "Product launch video",
		ActorID: "buyer-1",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	prop, err := env.Engine.SubmitProposal(env.Ctx, engine.ProposalSubmitOptions{
		ProjectID:    project.ID,
		CreatorID:    "creator-1",
		DeliveryDays: 7,
		Price:        50000,
		ActorID:      "creator-1",
	})
	if err != nil {
		t.Fatalf("submit proposal: %v", err)
	}
	_, order, err := env.Engine.DecideProposal(env.Ctx, prop.ID, domain.ProposalAccepted, "buyer-1")
	if err != nil {
		t.Fatalf("accept proposal: %v", err)
	}
	if order == nil {
		t.Fatalf("expected order on acceptance")
	}
	return *order
}

func TestAcceptCreatesOrderWithProposalTerms(t *testing.T) {
	env := newTestEnv(t)
	project, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{
		BuyerID: "buyer-1",
		Title:   "Explainer video",
		ActorID: "buyer-1",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	prop, err := env.Engine.SubmitProposal(env.Ctx, engine.ProposalSubmitOptions{
		ProjectID:    project.ID,
		CreatorID:    "creator-1",
		DeliveryDays: 10,
		Price:        75000,
		ActorID:      "creator-1",
	})
	if err != nil {
		t.Fatalf("submit proposal: %v", err)
	}
	sibling, err := env.Engine.SubmitProposal(env.Ctx, engine.ProposalSubmitOptions{
		ProjectID:    project.ID,
		CreatorID:    "creator-2",
		DeliveryDays: 5,
		Price:        60000,
		ActorID:      "creator-2",
	})
	if err != nil {
		t.Fatalf("submit sibling: %v", err)
	}

	decided, order, err := env.Engine.DecideProposal(env.Ctx, prop.ID, domain.ProposalAccepted, "buyer-1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if decided.Status != domain.ProposalAccepted {
		t.Fatalf("expected accepted, got %s", decided.Status)
	}
	if order == nil {
		t.Fatalf("expected order")
	}
	if order.Price != 75000 || order.DeliveryDays != 10 {
		t.Fatalf("order did not carry proposal terms: price=%d days=%d", order.Price, order.DeliveryDays)
	}
	if order.BuyerID != "buyer-1" || order.CreatorID != "creator-1" {
		t.Fatalf("unexpected order parties: %s / %s", order.BuyerID, order.CreatorID)
	}
	if order.Status != domain.OrderCreated {
		t.Fatalf("expected created order, got %s", order.Status)
	}

	// deciding twice fails
	_, _, err = env.Engine.DecideProposal(env.Ctx, prop.ID, domain.ProposalRejected, "buyer-1")
	var stateErr engine.InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected invalid state on second decide, got %v", err)
	}

	// sibling was auto-rejected with the acceptance
	got, err := env.Engine.Repo.GetProposal(env.Ctx, sibling.ID)
	if err != nil {
		t.Fatalf("get sibling: %v", err)
	}
	if got.Status != domain.ProposalRejected {
		t.Fatalf("expected sibling rejected, got %s", got.Status)
	}
}

func TestRejectCreatesNoOrder(t *testing.T) {
	env := newTestEnv(t)
	project, _ := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{
		BuyerID: "buyer-1", Title: "Logo animation", ActorID: "buyer-1",
	})
	prop, err := env.Engine.SubmitProposal(env.Ctx, engine.ProposalSubmitOptions{
		ProjectID: project.ID, CreatorID: "creator-1", DeliveryDays: 3, Price: 20000, ActorID: "creator-1",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	decided, order, err := env.Engine.DecideProposal(env.Ctx, prop.ID, domain.ProposalRejected, "buyer-1")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if order != nil {
		t.Fatalf("rejection must not create an order")
	}
	if decided.Status != domain.ProposalRejected {
		t.Fatalf("expected rejected, got %s", decided.Status)
	}
}

func TestClosedProjectRefusesProposals(t *testing.T) {
	env := newTestEnv(t)
	project, _ := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{
		BuyerID: "buyer-1", Title: "Short ad", ActorID: "buyer-1",
	})
	if _, err := env.Engine.CloseProject(env.Ctx, project.ID, "buyer-1"); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := env.Engine.SubmitProposal(env.Ctx, engine.ProposalSubmitOptions{
		ProjectID: project.ID, CreatorID: "creator-1", DeliveryDays: 3, Price: 10000, ActorID: "creator-1",
	})
	var stateErr engine.InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	order := acceptedOrder(t, env)

	// valid forward path
	o, err := env.Engine.UpdateOrderStatus(env.Ctx, order.ID, domain.OrderInProgress, "creator-1")
	if err != nil || o.Status != domain.OrderInProgress {
		t.Fatalf("to in_progress: %v", err)
	}
	o, err = env.Engine.UpdateOrderStatus(env.Ctx, order.ID, domain.OrderCompleted, "creator-1")
	if err != nil || o.Status != domain.OrderCompleted {
		t.Fatalf("to completed: %v", err)
	}
	if o.CompletedAt == nil {
		t.Fatalf("expected completed_at set")
	}

	// terminal states reject everything, including cancel
	var transErr engine.InvalidTransitionError
	if _, err := env.Engine.UpdateOrderStatus(env.Ctx, order.ID, domain.OrderInProgress, "creator-1"); !errors.As(err, &transErr) {
		t.Fatalf("expected transition error from completed, got %v", err)
	}
	if _, err := env.Engine.UpdateOrderStatus(env.Ctx, order.ID, domain.OrderCancelled, "buyer-1"); !errors.As(err, &transErr) {
		t.Fatalf("expected cancel unreachable from completed, got %v", err)
	}
}

func TestOrderSkipToCompletedFails(t *testing.T) {
	env := newTestEnv(t)
	order := acceptedOrder(t, env)
	var transErr engine.InvalidTransitionError
	if _, err := env.Engine.UpdateOrderStatus(env.Ctx, order.ID, domain.OrderCompleted, "creator-1"); !errors.As(err, &transErr) {
		t.Fatalf("expected created -> completed rejected, got %v", err)
	}
}

func TestDeliveriesAppendOnly(t *testing.T) {
	env := newTestEnv(t)
	order := acceptedOrder(t, env)
	ms, err := env.Engine.CreateMilestone(env.Ctx, engine.MilestoneCreateOptions{
		OrderID: order.ID, Title: "First cut", ActorID: "creator-1",
	})
	if err != nil {
		t.Fatalf("create milestone: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := env.Engine.SubmitDelivery(env.Ctx, engine.DeliverySubmitOptions{
			MilestoneID: ms.ID, CreatorID: "creator-1", Note: "take", ActorID: "creator-1",
		}); err != nil {
			t.Fatalf("submit delivery %d: %v", i, err)
		}
	}
	deliveries, err := env.Engine.ListDeliveries(env.Ctx, ms.ID)
	if err != nil {
		t.Fatalf("list deliveries: %v", err)
	}
	if len(deliveries) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(deliveries))
	}
	for i, d := range deliveries {
		if d.Seq != int64(i+1) {
			t.Fatalf("expected seq %d, got %d", i+1, d.Seq)
		}
	}
}

func TestReviewGatedOnCompletion(t *testing.T) {
	env := newTestEnv(t)
	order := acceptedOrder(t, env)

	_, err := env.Engine.CreateReview(env.Ctx, engine.ReviewCreateOptions{
		OrderID: order.ID, ReviewerID: "buyer-1", RevieweeID: "creator-1", Rating: 5, ActorID: "buyer-1",
	})
	var stateErr engine.InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected review blocked before completion, got %v", err)
	}

	_, _ = env.Engine.UpdateOrderStatus(env.Ctx, order.ID, domain.OrderInProgress, "creator-1")
	_, _ = env.Engine.UpdateOrderStatus(env.Ctx, order.ID, domain.OrderCompleted, "creator-1")

	rv, err := env.Engine.CreateReview(env.Ctx, engine.ReviewCreateOptions{
		OrderID: order.ID, ReviewerID: "buyer-1", RevieweeID: "creator-1", Rating: 5, ActorID: "buyer-1",
	})
	if err != nil {
		t.Fatalf("review after completion: %v", err)
	}
	if rv.Rating != 5 {
		t.Fatalf("unexpected rating %d", rv.Rating)
	}

	// one review per reviewer/reviewee pair on a project
	_, err = env.Engine.CreateReview(env.Ctx, engine.ReviewCreateOptions{
		OrderID: order.ID, ReviewerID: "buyer-1", RevieweeID: "creator-1", Rating: 3, ActorID: "buyer-1",
	})
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected duplicate review blocked, got %v", err)
	}
}

func TestReviewRatingBounds(t *testing.T) {
	env := newTestEnv(t)
	order := acceptedOrder(t, env)
	_, _ = env.Engine.UpdateOrderStatus(env.Ctx, order.ID, domain.OrderInProgress, "creator-1")
	_, _ = env.Engine.UpdateOrderStatus(env.Ctx, order.ID, domain.OrderCompleted, "creator-1")
	_, err := env.Engine.CreateReview(env.Ctx, engine.ReviewCreateOptions{
		OrderID: order.ID, ReviewerID: "buyer-1", RevieweeID: "creator-1", Rating: 6, ActorID: "buyer-1",
	})
	var valErr engine.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected rating validation, got %v", err)
	}
}

func TestDisputeAdvancesOneStep(t *testing.T) {
	env := newTestEnv(t)
	order := acceptedOrder(t, env)

	// disputes need an active or completed order
	_, err := env.Engine.RaiseDispute(env.Ctx, engine.DisputeRaiseOptions{
		OrderID: order.ID, RaisedBy: "buyer-1", Reason: "late", ActorID: "buyer-1",
	})
	var stateErr engine.InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected dispute blocked on created order, got %v", err)
	}

	_, _ = env.Engine.UpdateOrderStatus(env.Ctx, order.ID, domain.OrderInProgress, "creator-1")
	d, err := env.Engine.RaiseDispute(env.Ctx, engine.DisputeRaiseOptions{
		OrderID: order.ID, RaisedBy: "buyer-1", Reason: "late", Evidence: []string{"chat log"}, ActorID: "buyer-1",
	})
	if err != nil {
		t.Fatalf("raise dispute: %v", err)
	}
	if d.Status != domain.DisputeOpen {
		t.Fatalf("expected open, got %s", d.Status)
	}

	// skipping a step fails
	var transErr engine.InvalidTransitionError
	if _, err := env.Engine.AdvanceDisputeStatus(env.Ctx, d.ID, domain.DisputeResolved, "admin-1"); !errors.As(err, &transErr) {
		t.Fatalf("expected open -> resolved rejected, got %v", err)
	}

	for _, next := range []string{domain.DisputeInvestigating, domain.DisputeResolved, domain.DisputeClosed} {
		d2, err := env.Engine.AdvanceDisputeStatus(env.Ctx, d.ID, next, "admin-1")
		if err != nil || d2.Status != next {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}
	if _, err := env.Engine.AdvanceDisputeStatus(env.Ctx, d.ID, domain.DisputeInvestigating, "admin-1"); !errors.As(err, &transErr) {
		t.Fatalf("expected closed terminal, got %v", err)
	}
}

func TestReviewedPartyCannotDispute(t *testing.T) {
	env := newTestEnv(t)
	order := acceptedOrder(t, env)
	_, _ = env.Engine.UpdateOrderStatus(env.Ctx, order.ID, domain.OrderInProgress, "creator-1")
	_, _ = env.Engine.UpdateOrderStatus(env.Ctx, order.ID, domain.OrderCompleted, "creator-1")
	if _, err := env.Engine.CreateReview(env.Ctx, engine.ReviewCreateOptions{
		OrderID: order.ID, ReviewerID: "buyer-1", RevieweeID: "creator-1", Rating: 4, ActorID: "buyer-1",
	}); err != nil {
		t.Fatalf("review: %v", err)
	}
	_, err := env.Engine.RaiseDispute(env.Ctx, engine.DisputeRaiseOptions{
		OrderID: order.ID, RaisedBy: "buyer-1", Reason: "changed my mind", ActorID: "buyer-1",
	})
	var stateErr engine.InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected dispute blocked after review, got %v", err)
	}
}

type failingGenerator struct{}

func (failingGenerator) Name() string { return "failing" }
func (failingGenerator) Generate(context.Context, sowgen.Brief) (string, error) {
	return "", errors.New("provider down")
}

func TestSowVersioning(t *testing.T) {
	env := newTestEnv(t)
	project, _ := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{
		BuyerID: "buyer-1", Title: "Brand film", Description: "90s brand film", ActorID: "buyer-1",
	})

	s1, err := env.Engine.GenerateSOW(env.Ctx, project.ID, engine.SowGenerateOptions{ActorID: "buyer-1"})
	if err != nil {
		t.Fatalf("generate v1: %v", err)
	}
	if s1.Version != 1 {
		t.Fatalf("expected version 1, got %d", s1.Version)
	}
	s2, err := env.Engine.GenerateSOW(env.Ctx, project.ID, engine.SowGenerateOptions{ActorID: "buyer-1"})
	if err != nil {
		t.Fatalf("generate v2: %v", err)
	}
	if s2.Version != 2 {
		t.Fatalf("expected version 2, got %d", s2.Version)
	}

	// a failed generation consumes no version number
	broken := env.Engine
	broken.Sow = failingGenerator{}
	_, err = broken.GenerateSOW(env.Ctx, project.ID, engine.SowGenerateOptions{ActorID: "buyer-1"})
	var genErr engine.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected generation error, got %v", err)
	}
	s3, err := env.Engine.GenerateSOW(env.Ctx, project.ID, engine.SowGenerateOptions{ActorID: "buyer-1"})
	if err != nil {
		t.Fatalf("generate v3: %v", err)
	}
	if s3.Version != 3 {
		t.Fatalf("expected version 3 after failed attempt, got %d", s3.Version)
	}

	latest, err := env.Engine.Repo.GetLatestSOW(env.Ctx, project.ID)
	if err != nil || latest.Version != 3 {
		t.Fatalf("latest: v=%d err=%v", latest.Version, err)
	}
	versions, err := env.Engine.Repo.ListSOWVersions(env.Ctx, project.ID)
	if err != nil || len(versions) != 3 {
		t.Fatalf("expected 3 versions, got %d err=%v", len(versions), err)
	}
}

func TestEventAppendOnStateChanges(t *testing.T) {
	env := newTestEnv(t)
	order := acceptedOrder(t, env)
	_, _ = env.Engine.UpdateOrderStatus(env.Ctx, order.ID, domain.OrderInProgress, "creator-1")
	_, _ = env.Engine.UpdateOrderStatus(env.Ctx, order.ID, domain.OrderCompleted, "creator-1")
	rows, err := env.Engine.DB.QueryContext(env.Ctx, `SELECT type FROM events WHERE entity_id=?`, order.ID)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		count++
	}
	if count < 3 {
		t.Fatalf("expected multiple events, got %d", count)
	}
}
