package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/newsreel-cli/internal/core/domain"
	"github.com/custodia-labs/newsreel-cli/internal/core/ports/driven"
	"github.com/custodia-labs/newsreel-cli/internal/logger"
)

// API endpoints.
const (
	authPath     = "/authenticate"
	syncPath     = "/articles/sync"
	articlesPath = "/articles/"
)

// Ensure Client implements the interface.
var _ driven.RemoteClient = (*Client)(nil)

// Client talks to the news API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	monitor *Monitor

	tokenMu sync.Mutex
	ts      oauth2.TokenSource

	cooldownMu    sync.Mutex
	cooldownUntil time.Time

	deviceID string
}

// NewClient creates a client. monitor may be nil, in which case the
// network is always considered reachable.
func NewClient(cfg domain.RemoteConfig, monitor *Monitor) *Client {
	rps := cfg.ThrottleRPS
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		monitor:  monitor,
		deviceID: cfg.DeviceID,
	}
}

// Authenticate exchanges the device credential for a bearer token and
// caches it for subsequent calls.
func (c *Client) Authenticate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.tokenSource().Token()
	return err
}

// SyncDelta sends the seen-locator set and returns the unseen delta.
// A 404 means the delta endpoint is unavailable on this server; that
// degrades to an empty result rather than propagating.
func (c *Client) SyncDelta(ctx context.Context, seen []string) ([]string, error) {
	req := syncRequest{SeenArticles: seen}
	if req.SeenArticles == nil {
		req.SeenArticles = []string{}
	}

	var resp syncResponse
	found, err := c.do(ctx, http.MethodPost, syncPath, req, &resp)
	if err != nil {
		return nil, err
	}
	if !found {
		logger.Debug("remote: delta endpoint missing, treating as empty")
		return nil, nil
	}
	return resp.UnseenArticles, nil
}

// FetchArticle fetches and decodes one article resource.
func (c *Client) FetchArticle(ctx context.Context, locator string, bestEffort bool) (*domain.Article, error) {
	if locator == "" {
		return nil, fmt.Errorf("%w: empty locator", domain.ErrInvalidInput)
	}

	var doc articleDocument
	found, err := c.do(ctx, http.MethodGet, articlesPath+strings.TrimPrefix(locator, "/"), nil, &doc)
	if err != nil {
		return nil, err
	}
	if !found {
		if bestEffort {
			return nil, nil
		}
		return nil, domain.ErrArticleNotFound
	}
	return doc.toArticle(locator), nil
}

// IsReachable is the non-blocking reachability query.
func (c *Client) IsReachable() bool {
	if c.monitor == nil {
		return true
	}
	return c.monitor.IsReachable()
}

// do performs one authenticated request with the shared auth-retry rule:
// a 401 resets the cached token, re-authenticates once and replays the
// request; a second 401 surfaces domain.ErrAuthRequired.
// Returns found=false for a 404 so callers apply their own semantics.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) (bool, error) {
	if err := c.waitCooldown(ctx); err != nil {
		return false, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return false, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	}

	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return false, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		logger.Debug("remote: 401 on %s, re-authenticating", path)
		c.resetToken()
		resp, err = c.send(ctx, method, path, body)
		if err != nil {
			return false, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			return false, domain.ErrAuthRequired
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return false, &domain.DecodeError{Detail: err.Error()}
			}
		}
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, c.statusError(resp)
	}
}

// send issues one HTTP request with a fresh bearer token.
func (c *Client) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	token, err := c.tokenSource().Token()
	if err != nil {
		return nil, err
	}

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	return resp, nil
}

// statusError maps a non-2xx, non-401, non-404 response to the error
// taxonomy. Consumes the response body.
func (c *Client) statusError(resp *http.Response) error {
	var serverMsg struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&serverMsg)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.setCooldown(retryAfter)
		return &domain.RateLimitError{RetryAfter: retryAfter}
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode >= 500:
		return &domain.ServerError{Status: resp.StatusCode, Message: serverMsg.Message}
	default:
		return fmt.Errorf("%w: unexpected status %d", domain.ErrInvalidResponse, resp.StatusCode)
	}
}

// tokenSource lazily builds the cached token source.
func (c *Client) tokenSource() oauth2.TokenSource {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.ts == nil {
		c.ts = oauth2.ReuseTokenSource(nil, &deviceTokenSource{
			endpoint: c.baseURL + authPath,
			deviceID: c.deviceID,
			http:     c.http,
		})
	}
	return c.ts
}

// resetToken discards the cached token so the next call re-authenticates.
func (c *Client) resetToken() {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	c.ts = nil
}

// setCooldown records a Retry-After window honoured before any further
// request.
func (c *Client) setCooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	c.cooldownMu.Lock()
	defer c.cooldownMu.Unlock()
	until := time.Now().Add(d)
	if until.After(c.cooldownUntil) {
		c.cooldownUntil = until
	}
}

// waitCooldown blocks until any rate-limit cooldown has passed.
func (c *Client) waitCooldown(ctx context.Context) error {
	c.cooldownMu.Lock()
	until := c.cooldownUntil
	c.cooldownMu.Unlock()

	wait := time.Until(until)
	if wait <= 0 {
		return nil
	}
	logger.Debug("remote: rate-limit cooldown %s", wait)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// transportError maps transport failures to the error taxonomy.
func transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
}

// parseRetryAfter parses a Retry-After header in seconds.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// drain discards and closes a response body so the connection can be
// reused.
func drain(resp *http.Response) {
	_ = resp.Body.Close()
}

// ==================== Wire types ====================

type syncRequest struct {
	SeenArticles []string `json:"seen_articles"`
}

type syncResponse struct {
	UnseenArticles []string `json:"unseen_articles"`
}

// articleDocument is the wire form of one article resource.
type articleDocument struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Topic            string    `json:"topic"`
	PublishedAt      time.Time `json:"published_at"`
	Body             string    `json:"body"`
	Summary          string    `json:"summary"`
	CriticalAnalysis string    `json:"critical_analysis"`
	SourceAnalysis   string    `json:"source_analysis"`
}

func (d *articleDocument) toArticle(locator string) *domain.Article {
	id := d.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	return &domain.Article{
		ID:               id,
		Locator:          locator,
		Title:            d.Title,
		Topic:            d.Topic,
		PublishedAt:      d.PublishedAt,
		Body:             d.Body,
		Summary:          d.Summary,
		CriticalAnalysis: d.CriticalAnalysis,
		SourceAnalysis:   d.SourceAnalysis,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// deviceTokenSource implements oauth2.TokenSource by exchanging the
// stored device credential at POST /authenticate. Wrapped in
// oauth2.ReuseTokenSource by the client, so the exchange happens once
// per token lifetime.
type deviceTokenSource struct {
	endpoint string
	deviceID string
	http     *http.Client
}

type authRequest struct {
	DeviceID string `json:"device_id"`
}

type authResponse struct {
	Token string `json:"token"`
}

// Token performs the device-credential exchange.
func (s *deviceTokenSource) Token() (*oauth2.Token, error) {
	body, err := json.Marshal(authRequest{DeviceID: s.deviceID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	req, err := http.NewRequest(http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, transportError(context.Background(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: authenticate returned %d", domain.ErrAuthRequired, resp.StatusCode)
	}

	var ar authResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, &domain.DecodeError{Detail: err.Error()}
	}
	if ar.Token == "" {
		return nil, fmt.Errorf("%w: empty token", domain.ErrInvalidResponse)
	}

	return &oauth2.Token{AccessToken: ar.Token, TokenType: "Bearer"}, nil
}
