// Package api implements the Homebrew JSON API client (C4): fetching the
// full formula/cask index and single-item lookups, fronted by the C3
// metadata cache.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/bru-dev/bru/internal/brerrors"
	"github.com/bru-dev/bru/internal/buildinfo"
	"github.com/bru-dev/bru/internal/cache"
	"github.com/bru-dev/bru/internal/config"
	"github.com/bru-dev/bru/internal/formula"
	"github.com/bru-dev/bru/internal/httputil"
)

// maxIndexResponseSize caps the full formula/cask index download: the real
// indexes are a few MB, this is generous headroom against a misbehaving or
// malicious endpoint.
const maxIndexResponseSize = 64 * 1024 * 1024

// maxItemResponseSize caps a single formula/cask lookup response.
const maxItemResponseSize = 1 * 1024 * 1024

const defaultBaseURL = "https://formulae.brew.sh"

// Client is the Homebrew JSON API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
	userAgent  string
}

// New builds a Client using the config's API timeout and the shared
// SSRF-hardened transport every bru network caller uses.
func New(cfg *config.Config, c *cache.Cache) *Client {
	opts := httputil.DefaultOptions()
	opts.Timeout = config.GetAPITimeout()

	baseURL := defaultBaseURL
	if override := config.GetAPIBaseURL(); override != "" {
		baseURL = override
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httputil.NewSecureClient(opts),
		cache:      c,
		userAgent:  fmt.Sprintf("bru/%s", buildinfo.Version()),
	}
}

func (c *Client) get(ctx context.Context, path string, limit int64) ([]byte, int, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid API base URL: %w", err)
	}
	u = u.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, brerrors.WrapNetworkError(err, path, "request to formulae.brew.sh failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, resp.StatusCode, brerrors.WrapNetworkError(err, path, "failed to read response body")
	}
	return body, resp.StatusCode, nil
}

// FetchAllFormulae returns the full formula index, serving from the
// persistent cache when fresh (spec §4.3).
func (c *Client) FetchAllFormulae(ctx context.Context) ([]formula.Formula, error) {
	if items, ok := c.cache.ReadFormulaeIndex(); ok && cache.FreshIndex(c.cache.FormulaeIndexPath(), config.GetCacheTTL()) {
		return items, nil
	}

	body, status, err := c.get(ctx, "/api/formula.json", maxIndexResponseSize)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError("formula index", status)
	}

	var items []formula.Formula
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, brerrors.JSONParseError("formula index", err)
	}

	c.cache.WriteFormulaeIndex(body)
	return items, nil
}

// FetchAllCasks returns the full cask index, serving from the persistent
// cache when fresh.
func (c *Client) FetchAllCasks(ctx context.Context) ([]formula.Cask, error) {
	if items, ok := c.cache.ReadCasksIndex(); ok && cache.FreshIndex(c.cache.CasksIndexPath(), config.GetCacheTTL()) {
		return items, nil
	}

	body, status, err := c.get(ctx, "/api/cask.json", maxIndexResponseSize)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError("cask index", status)
	}

	var items []formula.Cask
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, brerrors.JSONParseError("cask index", err)
	}

	c.cache.WriteCasksIndex(body)
	return items, nil
}

// FetchFormula returns a single formula by name, checking the in-memory
// cache first.
func (c *Client) FetchFormula(ctx context.Context, name string) (*formula.Formula, error) {
	if f, ok := c.cache.GetFormula(name); ok {
		return f, nil
	}

	body, status, err := c.get(ctx, "/api/formula/"+name+".json", maxItemResponseSize)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, brerrors.FormulaNotFound(name)
	}
	if status != http.StatusOK {
		return nil, apiError(name, status)
	}

	var f formula.Formula
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, brerrors.JSONParseError(name, err)
	}

	c.cache.PutFormula(&f)
	return &f, nil
}

// FetchCask returns a single cask by token, checking the in-memory cache
// first.
func (c *Client) FetchCask(ctx context.Context, token string) (*formula.Cask, error) {
	if ck, ok := c.cache.GetCask(token); ok {
		return ck, nil
	}

	body, status, err := c.get(ctx, "/api/cask/"+token+".json", maxItemResponseSize)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, brerrors.CaskNotFound(token)
	}
	if status != http.StatusOK {
		return nil, apiError(token, status)
	}

	var ck formula.Cask
	if err := json.Unmarshal(body, &ck); err != nil {
		return nil, brerrors.JSONParseError(token, err)
	}

	c.cache.PutCask(&ck)
	return &ck, nil
}

// SearchResult is one hit from Search, covering both formulae and casks.
type SearchResult struct {
	Formula *formula.Formula
	Cask    *formula.Cask
}

// Search fetches both indexes in parallel, then filters each concurrently
// on its own worker, per spec §4.3: a case-insensitive substring match
// over name/desc (and, for casks, the name array and token).
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	lowerQuery := strings.ToLower(query)

	var (
		wg         sync.WaitGroup
		formulae   []formula.Formula
		casks      []formula.Cask
		formulaErr error
		caskErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		formulae, formulaErr = c.FetchAllFormulae(ctx)
	}()
	go func() {
		defer wg.Done()
		casks, caskErr = c.FetchAllCasks(ctx)
	}()
	wg.Wait()

	if formulaErr != nil {
		return nil, formulaErr
	}
	if caskErr != nil {
		return nil, caskErr
	}

	var (
		results   []SearchResult
		resultsMu sync.Mutex
		filterWg  sync.WaitGroup
	)

	filterWg.Add(2)
	go func() {
		defer filterWg.Done()
		var matched []SearchResult
		for i := range formulae {
			if formulae[i].MatchesQuery(lowerQuery) {
				matched = append(matched, SearchResult{Formula: &formulae[i]})
			}
		}
		resultsMu.Lock()
		results = append(results, matched...)
		resultsMu.Unlock()
	}()
	go func() {
		defer filterWg.Done()
		var matched []SearchResult
		for i := range casks {
			if casks[i].MatchesQuery(lowerQuery) {
				matched = append(matched, SearchResult{Cask: &casks[i]})
			}
		}
		resultsMu.Lock()
		results = append(results, matched...)
		resultsMu.Unlock()
	}()
	filterWg.Wait()

	return results, nil
}

// ClearCaches removes the persistent index cache files, per spec §4.3;
// invoked at the start of `bru update`.
func (c *Client) ClearCaches() error {
	return c.cache.Clear()
}

func apiError(subject string, status int) error {
	if brerrors.IsRateLimitStatus(status) {
		return &brerrors.Error{Kind: brerrors.KindRateLimit, Subject: subject, Message: "Homebrew API rate limit exceeded"}
	}
	return &brerrors.Error{Kind: brerrors.KindNetwork, Subject: subject, Message: fmt.Sprintf("unexpected status %d from formulae.brew.sh", status)}
}
