package giglinesdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSubmitDeliveryDecodesSeq(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/milestones/ms-1/deliveries" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"d-1","milestone_id":"ms-1","creator_id":"creator-1","seq":3,"note":"final cut","created_at":"2024-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	d, err := c.SubmitDelivery(context.Background(), "ms-1", "creator-1", "final cut", "")
	if err != nil {
		t.Fatalf("submit delivery: %v", err)
	}
	if d.Seq != 3 {
		t.Fatalf("expected seq 3, got %d", d.Seq)
	}
	if d.CreatedAt == "" {
		t.Fatalf("expected created_at populated")
	}
}

func TestAPIErrorSurfacesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"not_found","message":"project nope not found"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetProject(context.Background(), "nope")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", apiErr.StatusCode)
	}
}
