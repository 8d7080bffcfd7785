// Package nomadapi is the HTTP client for the upstream recommendation
// backend (auth, retrieval, preference persistence, premium advice).
package nomadapi

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"nomad_match/internal/adapters/observability"
	"nomad_match/internal/domain"
)

type Client struct {
	base string
	hc   *http.Client
	rl   *rate.Limiter
}

// New builds a client with client-side rate limiting and a bounded request
// timeout. A hung backend call fails after the timeout instead of leaving
// the caller waiting indefinitely.
func New(base string, rps int, timeout time.Duration) *Client {
	if rps <= 0 {
		rps = 5
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: timeout},
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// ---- Health ----

func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", "", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// ---- Search ----

func (c *Client) Search(ctx context.Context, query string, numResults int) ([]domain.SearchHit, error) {
	req := map[string]any{"query": query, "num_results": numResults}
	var out struct {
		Results []searchResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/query", "", req, &out); err != nil {
		return nil, err
	}
	return toHits(out.Results), nil
}

// searchResult tolerates both relevance fields the backend has shipped:
// similarity_score (0..1) and score_pct (already a percentage).
type searchResult struct {
	Metadata        map[string]any `json:"metadata"`
	SimilarityScore *float64       `json:"similarity_score"`
	ScorePct        *float64       `json:"score_pct"`
}

func toHits(results []searchResult) []domain.SearchHit {
	hits := make([]domain.SearchHit, 0, len(results))
	for _, r := range results {
		h := domain.SearchHit{Metadata: r.Metadata}
		switch {
		case r.SimilarityScore != nil:
			h.Similarity = r.SimilarityScore
		case r.ScorePct != nil:
			h.Similarity = r.ScorePct
		}
		hits = append(hits, h)
	}
	return hits
}

// ---- Auth ----

func (c *Client) Register(ctx context.Context, email, password string) (domain.AuthToken, error) {
	return c.auth(ctx, "/auth/register", email, password)
}

func (c *Client) Login(ctx context.Context, email, password string) (domain.AuthToken, error) {
	return c.auth(ctx, "/auth/login", email, password)
}

func (c *Client) auth(ctx context.Context, path, email, password string) (domain.AuthToken, error) {
	req := map[string]string{"email": email, "password": password}
	var out domain.AuthToken
	if err := c.do(ctx, http.MethodPost, path, "", req, &out); err != nil {
		return domain.AuthToken{}, err
	}
	return out, nil
}

func (c *Client) Me(ctx context.Context, token string) (domain.UserInfo, error) {
	var out domain.UserInfo
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &out); err != nil {
		return domain.UserInfo{}, err
	}
	return out, nil
}

func (c *Client) Upgrade(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/upgrade", token, nil, nil)
}

// ---- Preferences ----

// preferencesResponse covers both list shapes observed in the wild:
// {preferences:[{city_name,action}]} and {likes:[...], dislikes:[...]}.
type preferencesResponse struct {
	Preferences []domain.PreferenceEntry `json:"preferences"`
	Likes       []string                 `json:"likes"`
	Dislikes    []string                 `json:"dislikes"`
}

func (c *Client) ListPreferences(ctx context.Context, token string) ([]domain.PreferenceEntry, error) {
	var out preferencesResponse
	if err := c.do(ctx, http.MethodGet, "/preferences/cities", token, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Preferences) > 0 {
		return out.Preferences, nil
	}
	entries := make([]domain.PreferenceEntry, 0, len(out.Likes)+len(out.Dislikes))
	for _, name := range out.Likes {
		entries = append(entries, domain.PreferenceEntry{CityName: name, Action: domain.ActionLike})
	}
	for _, name := range out.Dislikes {
		entries = append(entries, domain.PreferenceEntry{CityName: name, Action: domain.ActionDislike})
	}
	return entries, nil
}

func (c *Client) PutPreference(ctx context.Context, token, cityName string, action domain.PreferenceAction) error {
	req := map[string]string{"city_name": cityName, "action": string(action)}
	return c.do(ctx, http.MethodPost, "/preferences/city", token, req, nil)
}

func (c *Client) DeletePreference(ctx context.Context, token, cityName string) error {
	return c.do(ctx, http.MethodDelete, "/preferences/city/"+url.PathEscape(cityName), token, nil, nil)
}

// ---- Premium ----

func (c *Client) Advice(ctx context.Context, token, query string, numResults int) (domain.AdviceResult, error) {
	req := map[string]any{"query": query, "num_results": numResults}
	var out struct {
		Results []searchResult `json:"results"`
		Advice  string         `json:"advice"`
	}
	if err := c.do(ctx, http.MethodPost, "/premium/advice", token, req, &out); err != nil {
		return domain.AdviceResult{}, err
	}
	return domain.AdviceResult{Hits: toHits(out.Results), Advice: out.Advice}, nil
}

// ---- Internals ----

// do performs one call with client-side rate limiting, retries on 429 and
// transient 5xx (honoring Retry-After), and JSON decode into out.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		// fresh request each attempt: the body reader is consumed
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "nomad-match/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err == nil {
			observability.ObserveExternal("nomadapi", endpointLabel(path), resp.StatusCode, time.Since(start))
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			if out == nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				return nil
			}
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return domain.ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return domain.ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return domain.ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// endpointLabel collapses per-city paths so the metric label set stays bounded.
func endpointLabel(path string) string {
	if strings.HasPrefix(path, "/preferences/city/") {
		return "/preferences/city/{name}"
	}
	return path
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns exponential delay (200ms, 400ms, 800ms...) with up to
// +50% jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
