package services

import (
	"bytes"
	"chainboard/internal/models"
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ProposalFilter narrows a proposal listing. Empty fields match everything.
type ProposalFilter struct {
	Status string
	Track  string
	Tag    string
}

// ProposalService serves parsed proposal documents: the processed list from
// upstream, filtering and aggregate counts, plus raw-document parsing and
// HTML rendering for the reader surface.
type ProposalService struct {
	api      *APIClient
	parser   *ProposalParser
	metrics  *Metrics
	client   *FetchClient
	rawURL   string // pattern with one %s for the proposal id
	md       goldmark.Markdown
	rendered *cache.Cache
}

// NewProposalService creates a proposal service. rawURL is the pattern used
// to fetch one raw proposal document, with %s substituted by the id; empty
// disables the reader surface. metrics may be nil.
func NewProposalService(api *APIClient, client *FetchClient, metrics *Metrics, rawURL string) *ProposalService {
	return &ProposalService{
		api:     api,
		parser:  NewProposalParser(),
		metrics: metrics,
		client:  client,
		rawURL:  rawURL,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
		rendered: cache.New(30*time.Minute, 10*time.Minute),
	}
}

// List returns proposals matching the filter, newest first.
func (s *ProposalService) List(ctx context.Context, filter ProposalFilter) ([]models.ProposalDocument, FetchSource, error) {
	processed, source, err := s.api.Proposals(ctx)

	proposals := make([]models.ProposalDocument, 0, len(processed.Proposals))
	for _, p := range processed.Proposals {
		if matchesFilter(p, filter) {
			proposals = append(proposals, p)
		}
	}
	sortProposals(proposals)
	return proposals, source, err
}

// Get returns one proposal by id, or nil when the id is unknown.
func (s *ProposalService) Get(ctx context.Context, id string) (*models.ProposalDocument, FetchSource, error) {
	processed, source, err := s.api.Proposals(ctx)
	for i := range processed.Proposals {
		if processed.Proposals[i].ID == id {
			return &processed.Proposals[i], source, err
		}
	}
	return nil, source, err
}

// Stats aggregates the proposal list by status, track and complexity.
// Counts are always recomputed from the list rather than trusted from the
// upstream document, so filters and stats can never disagree.
func (s *ProposalService) Stats(ctx context.Context) (models.ProposalStats, FetchSource, error) {
	processed, source, err := s.api.Proposals(ctx)
	return ComputeStats(processed.Proposals), source, err
}

// ComputeStats builds aggregate counts for a proposal list.
func ComputeStats(proposals []models.ProposalDocument) models.ProposalStats {
	stats := models.ProposalStats{
		Total:        len(proposals),
		ByStatus:     make(map[string]int),
		ByTrack:      make(map[string]int),
		ByComplexity: make(map[string]int),
	}
	for _, p := range proposals {
		stats.ByStatus[p.Status]++
		stats.ByTrack[p.Track]++
		stats.ByComplexity[p.Complexity]++
	}
	return stats
}

// ParseAll parses a batch of raw documents keyed by proposal id. Documents
// that fail to parse are logged and skipped; the batch always completes.
func (s *ProposalService) ParseAll(docs map[string]string) []models.ProposalDocument {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	proposals := make([]models.ProposalDocument, 0, len(docs))
	for _, id := range ids {
		doc, err := s.parser.Parse(id, docs[id])
		if err != nil {
			log.Printf("⚠️  [PROPOSALS] Skipping document %s: %v", id, err)
			if s.metrics != nil {
				s.metrics.RecordParseFailure()
			}
			continue
		}
		proposals = append(proposals, *doc)
	}
	sortProposals(proposals)
	return proposals
}

// RenderHTML fetches the raw document for id and renders its markdown body to
// HTML. Rendered output is cached for the reader surface.
func (s *ProposalService) RenderHTML(ctx context.Context, id string) (string, error) {
	if s.rawURL == "" {
		return "", fmt.Errorf("raw proposal source not configured")
	}

	if cached, found := s.rendered.Get(id); found {
		return cached.(string), nil
	}

	raw, err := s.fetchRaw(ctx, id)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := s.md.Convert([]byte(raw), &buf); err != nil {
		return "", fmt.Errorf("markdown render failed: %w", err)
	}

	html := buf.String()
	s.rendered.Set(id, html, cache.DefaultExpiration)
	return html, nil
}

// fetchRaw retrieves one raw proposal document. Raw markdown bypasses the
// JSON fetch cache; rendered output is cached instead.
func (s *ProposalService) fetchRaw(ctx context.Context, id string) (string, error) {
	resp, err := s.client.Get(ctx, fmt.Sprintf(s.rawURL, id))
	if err != nil {
		return "", fmt.Errorf("failed to fetch proposal %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("HTTP error %d fetching proposal %s", resp.StatusCode, id)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProposalSize))
	if err != nil {
		return "", fmt.Errorf("failed to read proposal %s: %w", id, err)
	}
	return string(body), nil
}

func matchesFilter(p models.ProposalDocument, f ProposalFilter) bool {
	if f.Status != "" && !strings.EqualFold(p.Status, f.Status) {
		return false
	}
	if f.Track != "" && !strings.EqualFold(p.Track, f.Track) {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, tag := range p.Tags {
			if strings.EqualFold(tag, f.Tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// sortProposals orders by numeric id descending, so the newest proposal
// comes first. Non-numeric ids sort after numeric ones.
func sortProposals(proposals []models.ProposalDocument) {
	sort.SliceStable(proposals, func(i, j int) bool {
		a, aerr := strconv.Atoi(proposals[i].ID)
		b, berr := strconv.Atoi(proposals[j].ID)
		if aerr == nil && berr == nil {
			return a > b
		}
		if aerr == nil {
			return true
		}
		if berr == nil {
			return false
		}
		return proposals[i].ID > proposals[j].ID
	})
}
