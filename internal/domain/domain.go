package domain

// Proposal statuses. A proposal is decided exactly once.
const (
	ProposalPending  = "pending"
	ProposalAccepted = "accepted"
	ProposalRejected = "rejected"
)

// Order statuses. Forward-only: created -> in_progress -> completed,
// with cancelled reachable from any non-terminal status.
const (
	OrderCreated    = "created"
	OrderInProgress = "in_progress"
	OrderCompleted  = "completed"
	OrderCancelled  = "cancelled"
)

// Dispute statuses. Forward-only, one step at a time.
const (
	DisputeOpen          = "open"
	DisputeInvestigating = "investigating"
	DisputeResolved      = "resolved"
	DisputeClosed        = "closed"
)

type Project struct {
	ID          string `json:"id"`
	BuyerID     string `json:"buyer_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	BudgetMin   int64  `json:"budget_min,omitempty"`
	BudgetMax   int64  `json:"budget_max,omitempty"`
	Deadline    string `json:"deadline,omitempty" format:"date-time"`
	Status      string `json:"status" enum:"open,closed"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Proposal struct {
	ID            string  `json:"id"`
	ProjectID     string  `json:"project_id"`
	CreatorID     string  `json:"creator_id"`
	ServiceID     *string `json:"service_id,omitempty"`
	DeliveryDays  int     `json:"delivery_days"`
	MilestonePlan string  `json:"milestone_plan,omitempty"`
	RevisionScope string  `json:"revision_scope,omitempty"`
	Price         int64   `json:"price"`
	Status        string  `json:"status" enum:"pending,accepted,rejected"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	UpdatedAt     string  `json:"updated_at" format:"date-time"`
}

type Order struct {
	ID           string  `json:"id"`
	ProjectID    string  `json:"project_id"`
	ProposalID   string  `json:"proposal_id"`
	BuyerID      string  `json:"buyer_id"`
	CreatorID    string  `json:"creator_id"`
	ServiceID    *string `json:"service_id,omitempty"`
	Price        int64   `json:"price"`
	DeliveryDays int     `json:"delivery_days"`
	Status       string  `json:"status" enum:"created,in_progress,completed,cancelled"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`
	CompletedAt  *string `json:"completed_at,omitempty" format:"date-time"`
}

// Milestone is a mutable planning record, not a transactional one.
type Milestone struct {
	ID          string  `json:"id"`
	OrderID     string  `json:"order_id"`
	ProjectID   string  `json:"project_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	State       string  `json:"state,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

// Delivery rows are append-only: resubmissions add rows, nothing is
// ever updated or deleted.
type Delivery struct {
	ID          string `json:"id"`
	MilestoneID string `json:"milestone_id"`
	CreatorID   string `json:"creator_id"`
	Note        string `json:"note,omitempty"`
	FileURL     string `json:"file_url,omitempty"`
	Seq         int64  `json:"seq"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Review struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	OrderID    string `json:"order_id"`
	ReviewerID string `json:"reviewer_id"`
	RevieweeID string `json:"reviewee_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment,omitempty"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type Dispute struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	OrderID   string   `json:"order_id"`
	RaisedBy  string   `json:"raised_by"`
	Reason    string   `json:"reason"`
	Evidence  []string `json:"evidence,omitempty"`
	Status    string   `json:"status" enum:"open,investigating,resolved,closed"`
	CreatedAt string   `json:"created_at" format:"date-time"`
	UpdatedAt string   `json:"updated_at" format:"date-time"`
}

// SOW is one version of the AI-drafted statement of work for a project.
// Versions start at 1 and only grow; rows are never rewritten.
type SOW struct {
	ProjectID   string `json:"project_id"`
	Version     int    `json:"version"`
	Content     string `json:"content"`
	Provider    string `json:"provider,omitempty"`
	GeneratedAt string `json:"generated_at" format:"date-time"`
}

type Service struct {
	ID          string `json:"id"`
	CreatorID   string `json:"creator_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Price       int64  `json:"price"`
	Featured    bool   `json:"featured"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Message struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	SenderID  string `json:"sender_id"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type PortfolioItem struct {
	ID          string `json:"id"`
	CreatorID   string `json:"creator_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID            int64  `json:"id"`
	TS            string `json:"ts" format:"date-time"`
	Type          string `json:"type"`
	MarketplaceID string `json:"marketplace_id,omitempty"`
	EntityKind    string `json:"entity_kind"`
	EntityID      string `json:"entity_id,omitempty"`
	ActorID       string `json:"actor_id"`
	Payload       string `json:"payload_json"`
}

// OrderTerminal reports whether an order status admits no further
// transitions.
func OrderTerminal(status string) bool {
	return status == OrderCompleted || status == OrderCancelled
}
