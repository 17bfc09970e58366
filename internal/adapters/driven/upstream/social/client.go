// Package social implements the upstream port against the social platform's
// HTTP API. It normalises the platform's shape-varying payloads into
// domain.RawItem and classifies call failures for the rotation layer.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
	"github.com/storefront-labs/shopmirror/internal/core/ports/driven"
)

const (
	// DefaultBaseURL is the production API endpoint.
	DefaultBaseURL = "https://api.shoplat.example.com/v1"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of an error response body is read.
	maxErrorBody = 4 << 10
)

// Client talks to the social platform API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

var _ driven.Upstream = (*Client)(nil)

// NewClient creates a platform API client. An empty baseURL selects the
// production endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		rateLimiter: NewRateLimiter(),
	}
}

// ListItems fetches a page of top-level posts for the account.
func (c *Client) ListItems(ctx context.Context, req driven.PageRequest) (*driven.Page, error) {
	endpoint := c.baseURL + "/posts"
	return c.listPage(ctx, endpoint, req, domain.ItemPost)
}

// ListChildren fetches a page of comments under req.ParentKey.
func (c *Client) ListChildren(ctx context.Context, req driven.PageRequest) (*driven.Page, error) {
	if req.ParentKey == "" {
		return nil, fmt.Errorf("%w: parent key required", domain.ErrInvalidInput)
	}
	endpoint := c.baseURL + "/posts/" + url.PathEscape(req.ParentKey) + "/comments"
	return c.listPage(ctx, endpoint, req, domain.ItemComment)
}

func (c *Client) listPage(ctx context.Context, endpoint string, req driven.PageRequest, kind domain.ItemKind) (*driven.Page, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	query := url.Values{}
	if req.Cursor != "" {
		query.Set("cursor", req.Cursor)
	}
	if req.PageSize > 0 {
		query.Set("limit", strconv.Itoa(req.PageSize))
	}
	fullURL := endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	token := &oauth2.Token{AccessToken: req.Credential.AccessToken}
	token.SetAuthHeader(httpReq)
	if req.Credential.ScopeKey != "" {
		httpReq.Header.Set("X-Scope-Key", req.Credential.ScopeKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling platform: %w", err)
	}
	defer resp.Body.Close()

	if rlErr := c.rateLimiter.CheckRateLimit(resp); rlErr != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck
		return nil, rlErr
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse(resp, fullURL)
	}

	var page apiPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyResponse
		}
		return nil, fmt.Errorf("decoding page: %w", err)
	}

	items := make([]domain.RawItem, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, item.toRawItem(kind))
	}

	return &driven.Page{Items: items, NextCursor: page.NextCursor}, nil
}

// errorFromResponse converts a non-200 response into an APIError, pulling
// the message out of the platform's error envelope when present.
func (c *Client) errorFromResponse(resp *http.Response, requestURL string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := http.StatusText(resp.StatusCode)
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			message = envelope.Message
		} else if envelope.Error != "" {
			message = envelope.Error
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		URL:        requestURL,
	}
}
