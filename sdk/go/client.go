package giglinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Gigline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	ActorID     string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Project represents the API project model (partial).
type Project struct {
	ID       string `json:"id"`
	BuyerID  string `json:"buyer_id"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	Status   string `json:"status"`
}

// Proposal represents a creator's offer on a project.
type Proposal struct {
	ID           string `json:"id"`
	ProjectID    string `json:"project_id"`
	CreatorID    string `json:"creator_id"`
	DeliveryDays int    `json:"delivery_days"`
	Price        int64  `json:"price"`
	Status       string `json:"status"`
}

// Order represents an engagement created from an accepted proposal.
type Order struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	ProposalID string `json:"proposal_id"`
	BuyerID    string `json:"buyer_id"`
	CreatorID  string `json:"creator_id"`
	Price      int64  `json:"price"`
	Status     string `json:"status"`
}

// Decision is the result of accepting or rejecting a proposal. Order
// is set only on acceptance.
type Decision struct {
	Proposal Proposal `json:"proposal"`
	Order    *Order   `json:"order,omitempty"`
}

// Delivery represents one submission under a milestone.
type Delivery struct {
	ID          string `json:"id"`
	MilestoneID string `json:"milestone_id"`
	CreatorID   string `json:"creator_id"`
	Seq         int64  `json:"seq"`
	Note        string `json:"note,omitempty"`
	FileURL     string `json:"file_url,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// SOW represents a generated statement-of-work version.
type SOW struct {
	ProjectID   string `json:"project_id"`
	Version     int    `json:"version"`
	Content     string `json:"content"`
	Provider    string `json:"provider"`
	GeneratedAt string `json:"generated_at"`
}

// Event represents a log entry.
type Event struct {
	ID            int64          `json:"id"`
	TS            string         `json:"ts"`
	Type          string         `json:"type"`
	MarketplaceID string         `json:"marketplace_id"`
	EntityID      string         `json:"entity_id"`
	EntityKind    string         `json:"entity_kind"`
	Payload       map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateProject posts a project brief.
func (c *Client) CreateProject(ctx context.Context, buyerID, title, category string) (Project, error) {
	body := map[string]any{
		"buyer_id": buyerID,
		"title":    title,
		"category": category,
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "v0/projects", body, &resp)
	return resp, err
}

// GetProject fetches a project by id.
func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, "v0/projects/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// SubmitProposal offers terms on an open project.
func (c *Client) SubmitProposal(ctx context.Context, projectID, creatorID string, deliveryDays int, price int64) (Proposal, error) {
	body := map[string]any{
		"creator_id":    creatorID,
		"delivery_days": deliveryDays,
		"price":         price,
	}
	var resp Proposal
	endpoint := fmt.Sprintf("v0/projects/%s/proposals", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// DecideProposal accepts or rejects a pending proposal.
func (c *Client) DecideProposal(ctx context.Context, proposalID, decision string) (Decision, error) {
	body := map[string]any{"decision": decision}
	var resp Decision
	endpoint := fmt.Sprintf("v0/proposals/%s/decision", url.PathEscape(proposalID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// SetOrderStatus advances an order.
func (c *Client) SetOrderStatus(ctx context.Context, orderID, status string) (Order, error) {
	body := map[string]any{"status": status}
	var resp Order
	endpoint := fmt.Sprintf("v0/orders/%s/status", url.PathEscape(orderID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// SubmitDelivery appends a delivery under a milestone.
func (c *Client) SubmitDelivery(ctx context.Context, milestoneID, creatorID, note, fileURL string) (Delivery, error) {
	body := map[string]any{
		"creator_id": creatorID,
		"note":       note,
		"file_url":   fileURL,
	}
	var resp Delivery
	endpoint := fmt.Sprintf("v0/milestones/%s/deliveries", url.PathEscape(milestoneID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// GenerateSOW requests the next statement-of-work version for a project.
func (c *Client) GenerateSOW(ctx context.Context, projectID string) (SOW, error) {
	var resp SOW
	endpoint := fmt.Sprintf("v0/projects/%s/sow", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{}, &resp)
	return resp, err
}

// GetLatestSOW fetches the current statement of work.
func (c *Client) GetLatestSOW(ctx context.Context, projectID string) (SOW, error) {
	var resp SOW
	endpoint := fmt.Sprintf("v0/projects/%s/sow", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "v0/events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
