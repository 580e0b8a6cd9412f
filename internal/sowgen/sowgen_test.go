package sowgen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStaticDeterministic(t *testing.T) {
	brief := Brief{
		Title:                "Launch video",
		Description:          "60 second product launch video",
		Category:             "video_production",
		BudgetMin:            50000,
		BudgetMax:            100000,
		Currency:             "USD",
		VideoDurationSeconds: 60,
		VideoStyle:           "cinematic",
		VideoReferences:      []string{"https://example.com/ref"},
	}
	first, err := Static{}.Generate(context.Background(), brief)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := Static{}.Generate(context.Background(), brief)
	if err != nil {
		t.Fatalf("generate again: %v", err)
	}
	if first != second {
		t.Fatalf("static generator must be deterministic")
	}
	for _, want := range []string{"Launch video", "60 second product launch video", "Duration: 60s", "cinematic", "https://example.com/ref"} {
		if !strings.Contains(first, want) {
			t.Fatalf("document missing %q:\n%s", want, first)
		}
	}
}

func TestSelectFallsBackWithoutCredential(t *testing.T) {
	if g := Select("openai", "", "gpt-4o-mini", ""); g.Name() != "static" {
		t.Fatalf("expected static without credential, got %s", g.Name())
	}
	if g := Select("static", "", "", "sk-test"); g.Name() != "static" {
		t.Fatalf("expected static provider honored, got %s", g.Name())
	}
	if g := Select("openai", "", "gpt-4o-mini", "sk-test"); g.Name() != "openai" {
		t.Fatalf("expected openai with credential, got %s", g.Name())
	}
}

func TestOpenAIGenerate(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"output":[{"content":[{"type":"output_text","text":"# SOW\nScope here."}]}]}`))
	}))
	defer srv.Close()

	gen := NewOpenAI(srv.URL, "gpt-4o-mini", "sk-test")
	content, err := gen.Generate(context.Background(), Brief{Title: "Edit reel"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(content, "Scope here.") {
		t.Fatalf("unexpected content: %s", content)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("expected bearer credential, got %q", gotAuth)
	}
}

func TestOpenAIGenerateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	gen := NewOpenAI(srv.URL, "gpt-4o-mini", "sk-test")
	_, err := gen.Generate(context.Background(), Brief{Title: "Edit reel"})
	if err == nil {
		t.Fatalf("expected error on non-2xx status")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestOpenAIGenerateMissingOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"output":[]}`))
	}))
	defer srv.Close()

	gen := NewOpenAI(srv.URL, "gpt-4o-mini", "sk-test")
	_, err := gen.Generate(context.Background(), Brief{Title: "Edit reel"})
	if err == nil {
		t.Fatalf("expected error on empty output")
	}
}
