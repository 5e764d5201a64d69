package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const processedFixture = `{
  "proposals": [
    {"id":"13","title":"Older","status":"Activated","track":"Standards","tags":["Staking"],"complexity":"High","readingTime":5},
    {"id":"42","title":"Newer","status":"Proposed","track":"Standards","tags":["Fees"],"complexity":"Medium","readingTime":3},
    {"id":"7","title":"Oldest","status":"Proposed","track":"Meta","tags":["Governance"],"complexity":"Low","readingTime":1}
  ],
  "stats": {"total": 3}
}`

func newTestProposalService(t *testing.T) *ProposalService {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/static/processed-acps.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(processedFixture))
	})
	mux.HandleFunc("/raw/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# Proposal\n\nHello **world**\n"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := NewFetchClient()
	fc := NewFetchCache(1*time.Minute, testRetryConfig(), testLedger(), nil)
	api := NewAPIClient(client, fc, nil, server.URL, "", "")
	return NewProposalService(api, client, nil, server.URL+"/raw/%s.md")
}

func TestProposalService_ListSortsNewestFirst(t *testing.T) {
	svc := newTestProposalService(t)

	proposals, _, err := svc.List(context.Background(), ProposalFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(proposals) != 3 {
		t.Fatalf("Expected 3 proposals, got %d", len(proposals))
	}
	if proposals[0].ID != "42" || proposals[1].ID != "13" || proposals[2].ID != "7" {
		t.Errorf("Unexpected order: %s, %s, %s", proposals[0].ID, proposals[1].ID, proposals[2].ID)
	}
}

func TestProposalService_Filters(t *testing.T) {
	svc := newTestProposalService(t)

	byStatus, _, err := svc.List(context.Background(), ProposalFilter{Status: "proposed"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(byStatus) != 2 {
		t.Errorf("Expected 2 proposed proposals, got %d", len(byStatus))
	}

	byTrack, _, _ := svc.List(context.Background(), ProposalFilter{Track: "Meta"})
	if len(byTrack) != 1 || byTrack[0].ID != "7" {
		t.Errorf("Unexpected track filter result: %+v", byTrack)
	}

	byTag, _, _ := svc.List(context.Background(), ProposalFilter{Tag: "staking"})
	if len(byTag) != 1 || byTag[0].ID != "13" {
		t.Errorf("Unexpected tag filter result: %+v", byTag)
	}
}

func TestProposalService_Get(t *testing.T) {
	svc := newTestProposalService(t)

	proposal, _, err := svc.Get(context.Background(), "42")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if proposal == nil || proposal.Title != "Newer" {
		t.Errorf("Unexpected proposal: %+v", proposal)
	}

	missing, _, _ := svc.Get(context.Background(), "999")
	if missing != nil {
		t.Errorf("Expected nil for unknown id, got %+v", missing)
	}
}

func TestProposalService_StatsRecomputed(t *testing.T) {
	svc := newTestProposalService(t)

	stats, _, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Expected total 3, got %d", stats.Total)
	}
	if stats.ByStatus["Proposed"] != 2 || stats.ByStatus["Activated"] != 1 {
		t.Errorf("Unexpected status counts: %v", stats.ByStatus)
	}
	if stats.ByTrack["Standards"] != 2 || stats.ByTrack["Meta"] != 1 {
		t.Errorf("Unexpected track counts: %v", stats.ByTrack)
	}
	if stats.ByComplexity["High"] != 1 || stats.ByComplexity["Medium"] != 1 || stats.ByComplexity["Low"] != 1 {
		t.Errorf("Unexpected complexity counts: %v", stats.ByComplexity)
	}
}

func TestProposalService_ParseAllSkipsFailures(t *testing.T) {
	svc := newTestProposalService(t)

	docs := map[string]string{
		"1": "| **Title** | Good Document |\n\nA paragraph long enough to become the abstract of this document.\n",
		"2": "   ",
	}

	proposals := svc.ParseAll(docs)
	if len(proposals) != 1 {
		t.Fatalf("Expected 1 parsed proposal, got %d", len(proposals))
	}
	if proposals[0].Title != "Good Document" {
		t.Errorf("Unexpected title: %q", proposals[0].Title)
	}
}

func TestProposalService_RenderHTML(t *testing.T) {
	svc := newTestProposalService(t)

	html, err := svc.RenderHTML(context.Background(), "42")
	if err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}
	if !strings.Contains(html, "<strong>world</strong>") {
		t.Errorf("Expected rendered markdown, got %q", html)
	}

	// Second render comes from the cache and must match
	again, err := svc.RenderHTML(context.Background(), "42")
	if err != nil {
		t.Fatalf("Cached RenderHTML failed: %v", err)
	}
	if again != html {
		t.Error("Cached render differs from first render")
	}
}

func TestProposalService_RenderHTMLWithoutSource(t *testing.T) {
	client := NewFetchClient()
	fc := NewFetchCache(1*time.Minute, testRetryConfig(), testLedger(), nil)
	api := NewAPIClient(client, fc, nil, "http://localhost:1", "", "")
	svc := NewProposalService(api, client, nil, "")

	if _, err := svc.RenderHTML(context.Background(), "1"); err == nil {
		t.Fatal("Expected error when raw source is not configured")
	}
}
