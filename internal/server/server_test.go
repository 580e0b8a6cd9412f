package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("mkt-1")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if err := e.Repo.UpsertMarketplaceConfig(context.Background(), "mkt-1", cfg); err != nil {
		t.Fatalf("seed marketplace config: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createProject(t *testing.T, srv *testServer) domain.Project {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"buyer_id": "buyer-1",
		"title":    "Product video",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project status %d: %s", res.StatusCode, string(data))
	}
	var p domain.Project
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	return p
}

func TestProposalDecisionFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	project := createProject(t, srv)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/proposals", map[string]any{
		"creator_id":    "creator-1",
		"delivery_days": 7,
		"price":         50000,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("submit proposal status %d: %s", res.StatusCode, string(data))
	}
	var prop domain.Proposal
	_ = json.Unmarshal(data, &prop)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/proposals/"+prop.ID+"/decision", map[string]any{
		"decision": "accepted",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("decide status %d: %s", res.StatusCode, string(data))
	}
	var decision struct {
		Proposal domain.Proposal `json:"proposal"`
		Order    *domain.Order   `json:"order"`
	}
	if err := json.Unmarshal(data, &decision); err != nil {
		t.Fatalf("unmarshal decision: %v", err)
	}
	if decision.Proposal.Status != "accepted" {
		t.Fatalf("expected accepted proposal, got %s", decision.Proposal.Status)
	}
	if decision.Order == nil {
		t.Fatalf("expected order in decision response")
	}
	if decision.Order.Price != 50000 || decision.Order.DeliveryDays != 7 {
		t.Fatalf("order terms mismatch: %+v", decision.Order)
	}

	// second decision conflicts
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/proposals/"+prop.ID+"/decision", map[string]any{
		"decision": "rejected",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on second decision, got %d: %s", res.StatusCode, string(data))
	}
}

func TestOrderLifecycleAndReview(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	project := createProject(t, srv)

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/proposals", map[string]any{
		"creator_id": "creator-1", "delivery_days": 7, "price": 50000,
	}, nil)
	var prop domain.Proposal
	_ = json.Unmarshal(data, &prop)
	_, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/proposals/"+prop.ID+"/decision", map[string]any{
		"decision": "accepted",
	}, nil)
	var decision struct {
		Order *domain.Order `json:"order"`
	}
	_ = json.Unmarshal(data, &decision)
	orderID := decision.Order.ID

	// review before completion is blocked
	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders/"+orderID+"/reviews", map[string]any{
		"reviewer_id": "buyer-1", "reviewee_id": "creator-1", "rating": 5,
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 before completion, got %d: %s", res.StatusCode, string(body))
	}

	for _, status := range []string{"in_progress", "completed"} {
		res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders/"+orderID+"/status", map[string]any{
			"status": status,
		}, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("set %s status %d: %s", status, res.StatusCode, string(body))
		}
	}

	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders/"+orderID+"/reviews", map[string]any{
		"reviewer_id": "buyer-1", "reviewee_id": "creator-1", "rating": 5, "comment": "great work",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create review status %d: %s", res.StatusCode, string(body))
	}

	// skipping backward is an invalid transition
	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders/"+orderID+"/status", map[string]any{
		"status": "in_progress",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on backward transition, got %d: %s", res.StatusCode, string(body))
	}
}

func TestSowGeneration(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	project := createProject(t, srv)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.ID+"/sow", map[string]any{
		"video_duration_seconds": 60,
		"video_style":            "cinematic",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("generate sow status %d: %s", res.StatusCode, string(data))
	}
	var sow domain.SOW
	_ = json.Unmarshal(data, &sow)
	if sow.Version != 1 {
		t.Fatalf("expected version 1, got %d", sow.Version)
	}
	if sow.Provider != "static" {
		t.Fatalf("expected static provider, got %s", sow.Provider)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+project.ID+"/sow", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get latest sow status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/missing/sow", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing project, got %d: %s", res.StatusCode, string(data))
	}
}

func TestUnknownProjectReturns404(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/nope", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(data, &body)
	if body.Error.Code != "not_found" {
		t.Fatalf("expected not_found code, got %q", body.Error.Code)
	}
}

func TestEventsListing(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	createProject(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list events status %d: %s", res.StatusCode, string(data))
	}
	var page struct {
		Items []struct {
			Type string `json:"type"`
		} `json:"items"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(page.Items) == 0 {
		t.Fatalf("expected events after project creation")
	}
}

func TestServiceFeaturedFilter(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	var ids []string
	for _, title := range []string{"Editing", "Color grading"} {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/services", map[string]any{
			"creator_id": "creator-1",
			"title":      title,
			"price":      25000,
		}, nil)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("create service status %d: %s", res.StatusCode, string(data))
		}
		var s domain.Service
		_ = json.Unmarshal(data, &s)
		ids = append(ids, s.ID)
	}
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/services/"+ids[0]+"/feature", map[string]any{
		"featured": true,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("feature service status %d: %s", res.StatusCode, string(data))
	}

	var listed []domain.Service
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/services?featured=true", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list featured status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &listed); err != nil {
		t.Fatalf("unmarshal services: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != ids[0] {
		t.Fatalf("expected only the featured service, got %+v", listed)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/services?featured=false", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list unfeatured status %d: %s", res.StatusCode, string(data))
	}
	listed = nil
	_ = json.Unmarshal(data, &listed)
	if len(listed) != 1 || listed[0].ID != ids[1] {
		t.Fatalf("expected only the unfeatured service, got %+v", listed)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/services?featured=maybe", nil, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad featured value, got %d: %s", res.StatusCode, string(data))
	}
}

func TestDevModeActorHeader(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Actor-Id": "alice"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var me WhoAmIResponse
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if me.ActorID != "alice" {
		t.Fatalf("expected alice, got %s", me.ActorID)
	}
	if me.Source != "dev" {
		t.Fatalf("expected dev source, got %s", me.Source)
	}
}
