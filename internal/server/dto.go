package server

import (
	"encoding/json"
	"sort"

	"gigline/internal/config"
	"gigline/internal/domain"
)

// Request payloads

type CreateProjectRequest struct {
	ID          *string `json:"id,omitempty"`
	BuyerID     string  `json:"buyer_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	BudgetMin   *int64  `json:"budget_min,omitempty"`
	BudgetMax   *int64  `json:"budget_max,omitempty"`
	Deadline    *string `json:"deadline,omitempty" format:"date-time"`
}

type SubmitProposalRequest struct {
	ID            *string `json:"id,omitempty"`
	CreatorID     string  `json:"creator_id"`
	ServiceID     *string `json:"service_id,omitempty"`
	DeliveryDays  int     `json:"delivery_days"`
	MilestonePlan *string `json:"milestone_plan,omitempty"`
	RevisionScope *string `json:"revision_scope,omitempty"`
	Price         int64   `json:"price"`
}

type DecideProposalRequest struct {
	Decision string `json:"decision" enum:"accepted,rejected"`
}

type UpdateProposalRequest struct {
	DeliveryDays  *int    `json:"delivery_days,omitempty"`
	MilestonePlan *string `json:"milestone_plan,omitempty"`
	RevisionScope *string `json:"revision_scope,omitempty"`
	Price         *int64  `json:"price,omitempty"`
}

type SetOrderStatusRequest struct {
	Status string `json:"status" enum:"in_progress,completed,cancelled"`
}

type CreateMilestoneRequest struct {
	ID          *string `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
}

type UpdateMilestoneRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	ClearDue    bool    `json:"clear_due,omitempty"`
	State       *string `json:"state,omitempty"`
}

type SubmitDeliveryRequest struct {
	ID        *string `json:"id,omitempty"`
	CreatorID string  `json:"creator_id"`
	Note      *string `json:"note,omitempty"`
	FileURL   *string `json:"file_url,omitempty"`
}

type CreateReviewRequest struct {
	ID         *string `json:"id,omitempty"`
	ReviewerID string  `json:"reviewer_id"`
	RevieweeID string  `json:"reviewee_id"`
	Rating     int     `json:"rating"`
	Comment    *string `json:"comment,omitempty"`
}

type RaiseDisputeRequest struct {
	ID       *string  `json:"id,omitempty"`
	RaisedBy string   `json:"raised_by"`
	Reason   string   `json:"reason"`
	Evidence []string `json:"evidence,omitempty"`
}

type SetDisputeStatusRequest struct {
	Status string `json:"status" enum:"investigating,resolved,closed"`
}

type GenerateSowRequest struct {
	VideoDurationSeconds int      `json:"video_duration_seconds,omitempty"`
	VideoStyle           string   `json:"video_style,omitempty"`
	VideoReferences      []string `json:"video_references,omitempty"`
}

type CreateServiceRequest struct {
	ID          *string `json:"id,omitempty"`
	CreatorID   string  `json:"creator_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	Price       int64   `json:"price"`
}

type FeatureServiceRequest struct {
	Featured bool `json:"featured"`
}

type PostMessageRequest struct {
	ID       *string `json:"id,omitempty"`
	SenderID string  `json:"sender_id"`
	Body     string  `json:"body"`
}

type AddPortfolioItemRequest struct {
	ID          *string `json:"id,omitempty"`
	CreatorID   string  `json:"creator_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	URL         *string `json:"url,omitempty"`
}

type RoleChangeRequest struct {
	ActorID string `json:"actor_id"`
	RoleID  string `json:"role_id"`
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string   `json:"actor_id"`
	Roles   []string `json:"roles,omitempty"`
	Scopes  []string `json:"scopes,omitempty"`
}

// Response payloads

type ProjectResponse struct {
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

type ProposalResponse struct {
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

type OrderResponse struct {
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

type DecisionResponse struct {
	Proposal ProposalResponse `json:"proposal"`
	Order    *OrderResponse   `json:"order,omitempty"`
}

type MilestoneResponse struct {
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

type DeliveryResponse struct {
	ID          string `json:"id"`
	MilestoneID string `json:"milestone_id"`
	CreatorID   string `json:"creator_id"`
	Note        string `json:"note,omitempty"`
	FileURL     string `json:"file_url,omitempty"`
	Seq         int64  `json:"seq"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type ReviewResponse struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	OrderID    string `json:"order_id"`
	ReviewerID string `json:"reviewer_id"`
	RevieweeID string `json:"reviewee_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment,omitempty"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type DisputeResponse struct {
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

type SowResponse struct {
	ProjectID   string `json:"project_id"`
	Version     int    `json:"version"`
	Content     string `json:"content"`
	Provider    string `json:"provider,omitempty"`
	GeneratedAt string `json:"generated_at" format:"date-time"`
}

type ServiceResponse struct {
	ID          string `json:"id"`
	CreatorID   string `json:"creator_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Price       int64  `json:"price"`
	Featured    bool   `json:"featured"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type MessageResponse struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	SenderID  string `json:"sender_id"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type PortfolioItemResponse struct {
	ID          string `json:"id"`
	CreatorID   string `json:"creator_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type EventResponse struct {
	ID            int64          `json:"id"`
	TS            string         `json:"ts" format:"date-time"`
	Type          string         `json:"type"`
	MarketplaceID string         `json:"marketplace_id,omitempty"`
	EntityKind    string         `json:"entity_kind"`
	EntityID      string         `json:"entity_id,omitempty"`
	ActorID       string         `json:"actor_id"`
	Payload       map[string]any `json:"payload"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type APIKeyCreatedResponse struct {
	APIKeyResponse
	// Key is the plaintext secret. Shown once, only the hash is stored.
	Key string `json:"key"`
}

type WhoAmIResponse struct {
	ActorID     string   `json:"actor_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	Source      string   `json:"source,omitempty"`
}

type CategoryResponse struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type MarketplaceConfigResponse struct {
	Marketplace marketplaceConfigSection `json:"marketplace"`
	Proposals   proposalsConfigSection   `json:"proposals"`
	Reviews     reviewsConfigSection     `json:"reviews"`
	Sow         sowConfigSection         `json:"sow"`
	Categories  []CategoryResponse       `json:"categories"`
}

type marketplaceConfigSection struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type proposalsConfigSection struct {
	AutoRejectSiblings bool `json:"auto_reject_siblings"`
}

type reviewsConfigSection struct {
	MinRating int `json:"min_rating"`
	MaxRating int `json:"max_rating"`
}

type sowConfigSection struct {
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse(p)
}

func proposalResponse(p domain.Proposal) ProposalResponse {
	return ProposalResponse(p)
}

func orderResponse(o domain.Order) OrderResponse {
	return OrderResponse(o)
}

func milestoneResponse(m domain.Milestone) MilestoneResponse {
	return MilestoneResponse(m)
}

func deliveryResponse(d domain.Delivery) DeliveryResponse {
	return DeliveryResponse(d)
}

func reviewResponse(rv domain.Review) ReviewResponse {
	return ReviewResponse(rv)
}

func disputeResponse(d domain.Dispute) DisputeResponse {
	return DisputeResponse(d)
}

func sowResponse(s domain.SOW) SowResponse {
	return SowResponse(s)
}

func serviceResponse(s domain.Service) ServiceResponse {
	return ServiceResponse(s)
}

func messageResponse(m domain.Message) MessageResponse {
	return MessageResponse(m)
}

func portfolioItemResponse(p domain.PortfolioItem) PortfolioItemResponse {
	return PortfolioItemResponse(p)
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:        k.ID,
		ActorID:   k.ActorID,
		Name:      k.Name,
		CreatedAt: k.CreatedAt,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:            e.ID,
		TS:            e.TS,
		Type:          e.Type,
		MarketplaceID: e.MarketplaceID,
		EntityKind:    e.EntityKind,
		EntityID:      e.EntityID,
		ActorID:       e.ActorID,
		Payload:       decodeJSONMap(strPtr(e.Payload)),
	}
}

func configResponse(cfg *config.Config) MarketplaceConfigResponse {
	res := MarketplaceConfigResponse{
		Marketplace: marketplaceConfigSection{
			ID:       cfg.Marketplace.ID,
			Name:     cfg.Marketplace.Name,
			Currency: cfg.Marketplace.Currency,
		},
		Proposals: proposalsConfigSection{
			AutoRejectSiblings: cfg.Proposals.AutoRejectSiblings,
		},
		Reviews: reviewsConfigSection{
			MinRating: cfg.Reviews.MinRating,
			MaxRating: cfg.Reviews.MaxRating,
		},
		Sow: sowConfigSection{
			Provider:       cfg.Sow.Provider,
			Model:          cfg.Sow.Model,
			TimeoutSeconds: cfg.SowTimeoutSeconds(),
		},
		Categories: []CategoryResponse{},
	}
	ids := make([]string, 0, len(cfg.Categories))
	for id := range cfg.Categories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		res.Categories = append(res.Categories, CategoryResponse{ID: id, Label: cfg.Categories[id].Label})
	}
	return res
}

// JSON helpers

func decodeJSONMap(raw *string) map[string]any {
	if raw == nil || *raw == "" {
		return nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(*raw), &tmp); err != nil {
		return nil
	}
	if obj, ok := tmp.(map[string]any); ok {
		return obj
	}
	return nil
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func strPtr(in string) *string {
	return &in
}

func strPtrValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func int64PtrValue(ptr *int64) int64 {
	if ptr == nil {
		return 0
	}
	return *ptr
}
