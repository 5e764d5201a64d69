package services

import (
	"chainboard/internal/logging"
	"chainboard/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Cache freshness overrides per endpoint class.
const (
	healthWindow    = 15 * time.Second
	blogWindow      = 5 * time.Minute
	proposalsWindow = 10 * time.Minute
)

// APIClient exposes the upstream dashboard endpoints as typed methods over the
// fetch cache. Every method returns its typed value, where the data came from,
// and the fetch error if any; fallback results carry the endpoint's typed
// zero value so callers can render "no data" without nil checks.
type APIClient struct {
	client       *FetchClient
	cache        *FetchCache
	metrics      *Metrics
	baseURL      string
	blogURL      string
	proposalsURL string
}

// NewAPIClient creates a typed client for the given upstream hosts.
// blogURL and proposalsURL fall back to baseURL-derived defaults when empty.
func NewAPIClient(client *FetchClient, cache *FetchCache, metrics *Metrics, baseURL, blogURL, proposalsURL string) *APIClient {
	baseURL = strings.TrimRight(baseURL, "/")
	if blogURL == "" {
		blogURL = baseURL
	}
	if proposalsURL == "" {
		proposalsURL = baseURL + "/static/processed-acps.json"
	}
	return &APIClient{
		client:       client,
		cache:        cache,
		metrics:      metrics,
		baseURL:      baseURL,
		blogURL:      strings.TrimRight(blogURL, "/"),
		proposalsURL: proposalsURL,
	}
}

// endpoint builds the FetchFunc for one URL, mapping HTTP status codes onto
// the fetch layer's error kinds. key is the cache key the fetch runs under,
// carried into the structured fetch logs.
func (a *APIClient) endpoint(key, rawURL string) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		start := time.Now()
		resp, err := a.client.Get(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("network failure: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == 429:
			return nil, fmt.Errorf("%w (HTTP 429)", ErrUpstreamRateLimit)
		case resp.StatusCode == 504:
			return nil, fmt.Errorf("%w (HTTP 504)", ErrGatewayTimeout)
		case resp.StatusCode != 200:
			return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, resp.Status)
		}

		contentType := resp.Header.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "application/json") {
			return nil, fmt.Errorf("%w: %s", ErrContentType, contentType)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if a.metrics != nil {
			a.metrics.RecordFetchLatency(time.Since(start).Seconds())
		}
		logger := logging.WithEndpoint(logging.WithFetch(uuid.New().String(), key), rawURL)
		logger.Debug("upstream fetch complete",
			"status", resp.StatusCode,
			"bytes", len(body),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return body, nil
	}
}

// decodeResult unmarshals a fetch result into T, substituting the typed
// fallback when there is no data or the payload does not decode.
func decodeResult[T any](res FetchResult, fallback T) (T, FetchSource, error) {
	if res.Data == nil {
		return fallback, SourceFallback, res.Err
	}
	var value T
	if err := json.Unmarshal(res.Data, &value); err != nil {
		return fallback, SourceFallback, fmt.Errorf("decode failed: %w", err)
	}
	return value, res.Source, res.Err
}

// Chains returns the tracked chain list.
func (a *APIClient) Chains(ctx context.Context) ([]models.ChainInfo, FetchSource, error) {
	res := a.cache.Fetch(ctx, "chains", a.endpoint("chains", a.baseURL+"/v2/chains"))
	return decodeResult(res, []models.ChainInfo{})
}

// ChainTPSHistory returns the TPS history series for one chain.
func (a *APIClient) ChainTPSHistory(ctx context.Context, chainID string) ([]models.TPSPoint, FetchSource, error) {
	endpoint := fmt.Sprintf("%s/v2/chains/%s/tps/history", a.baseURL, url.PathEscape(chainID))
	res := a.cache.Fetch(ctx, "tps:"+chainID, a.endpoint("tps:"+chainID, endpoint))
	return decodeResult(res, []models.TPSPoint{})
}

// NetworkTPS returns the network-wide TPS summary.
func (a *APIClient) NetworkTPS(ctx context.Context) (models.NetworkTPS, FetchSource, error) {
	res := a.cache.Fetch(ctx, "network-tps", a.endpoint("network-tps", a.baseURL+"/v2/tps/network"))
	return decodeResult(res, models.NetworkTPS{})
}

// Health returns the upstream API health report. Cached only briefly so the
// dashboard's status indicator stays honest.
func (a *APIClient) Health(ctx context.Context) (models.HealthStatus, FetchSource, error) {
	res := a.cache.Fetch(ctx, "health", a.endpoint("health", a.baseURL+"/v2/health"), healthWindow)
	return decodeResult(res, models.HealthStatus{Status: "unknown"})
}

// MessageStats returns cross-chain message statistics.
func (a *APIClient) MessageStats(ctx context.Context) (models.MessageStats, FetchSource, error) {
	res := a.cache.Fetch(ctx, "message-stats", a.endpoint("message-stats", a.baseURL+"/v2/icm/messages/stats"))
	return decodeResult(res, models.MessageStats{})
}

// BlogPosts returns the ecosystem blog feed.
func (a *APIClient) BlogPosts(ctx context.Context) ([]models.BlogPost, FetchSource, error) {
	res := a.cache.Fetch(ctx, "blog:posts", a.endpoint("blog:posts", a.blogURL+"/api/posts"), blogWindow)
	return decodeResult(res, []models.BlogPost{})
}

// BlogTags returns the blog tag taxonomy.
func (a *APIClient) BlogTags(ctx context.Context) ([]models.BlogTag, FetchSource, error) {
	res := a.cache.Fetch(ctx, "blog:tags", a.endpoint("blog:tags", a.blogURL+"/api/tags"), blogWindow)
	return decodeResult(res, []models.BlogTag{})
}

// Proposals returns the pre-built processed proposals document.
func (a *APIClient) Proposals(ctx context.Context) (models.ProcessedProposals, FetchSource, error) {
	res := a.cache.Fetch(ctx, "proposals", a.endpoint("proposals", a.proposalsURL), proposalsWindow)
	return decodeResult(res, models.ProcessedProposals{Proposals: []models.ProposalDocument{}})
}
