package services

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
	"github.com/storefront-labs/shopmirror/internal/core/ports/driven"
	"github.com/storefront-labs/shopmirror/internal/logger"
	"github.com/storefront-labs/shopmirror/internal/metrics"
)

const (
	// DefaultPageLimit is the upstream page size cap.
	DefaultPageLimit = 50

	// DefaultPageRate is the courtesy inter-page rate (requests per second).
	// This keeps polling under the platform's implicit limits; it is not a
	// correctness requirement.
	DefaultPageRate = 2.0

	// DefaultChildWindow is how many recent children a direct comment
	// refresh asks for when no explicit window is given.
	DefaultChildWindow = 25
)

// Collector drives cursor-based pagination through the rotation client and
// normalises heterogeneous upstream items into a flat record list.
type Collector struct {
	rotation    *RotationClient
	upstream    driven.Upstream
	limiter     *rate.Limiter
	pageLimit   int
	childWindow int
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithPageLimit overrides the upstream page size cap.
func WithPageLimit(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.pageLimit = n
		}
	}
}

// WithChildWindow overrides how many recent children a direct comment
// refresh asks for.
func WithChildWindow(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.childWindow = n
		}
	}
}

// WithPageRate overrides the courtesy inter-page rate.
func WithPageRate(rps float64) CollectorOption {
	return func(c *Collector) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewCollector creates a collector bound to one account's rotation client.
func NewCollector(rotation *RotationClient, upstream driven.Upstream, opts ...CollectorOption) *Collector {
	c := &Collector{
		rotation:    rotation,
		upstream:    upstream,
		limiter:     rate.NewLimiter(rate.Limit(DefaultPageRate), 1),
		pageLimit:   DefaultPageLimit,
		childWindow: DefaultChildWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect fetches up to wanted top-level items (zero means unbounded),
// following continuation cursors until the upstream is exhausted. Embedded
// child previews are flattened into independent items with synthetic keys.
//
// A page-level failure does not abort the whole collection: pagination stops
// and the items collected so far are returned. Only credential exhaustion is
// surfaced to the caller; the next full run re-polls and merge semantics
// catch up on anything missed.
func (c *Collector) Collect(ctx context.Context, wanted int) ([]domain.RawItem, error) {
	var collected []domain.RawItem
	cursor := ""
	topLevel := 0

	for {
		size := c.pageLimit
		if wanted > 0 && wanted-topLevel < size {
			size = wanted - topLevel
		}

		req := driven.PageRequest{Cursor: cursor, PageSize: size}
		page, err := c.rotation.Call(ctx, "get_collection", func(ctx context.Context, cred domain.Credential) (*driven.Page, error) {
			req.Credential = cred
			return c.upstream.ListItems(ctx, req)
		})
		if err != nil {
			if errors.Is(err, domain.ErrCredentialExhausted) || len(collected) == 0 {
				return collected, err
			}
			// Partial collection: keep what we have, next poll retries.
			logger.Warn("Pagination stopped early after %d items: %v", len(collected), err)
			return collected, nil
		}

		metrics.PagesCollected.WithLabelValues("get_collection").Inc()
		topLevel += len(page.Items)
		collected = append(collected, flatten(page.Items)...)

		if page.NextCursor == "" || (wanted > 0 && topLevel >= wanted) {
			break
		}
		cursor = page.NextCursor

		if err := c.limiter.Wait(ctx); err != nil {
			return collected, err
		}
	}

	metrics.ItemsCollected.Add(float64(len(collected)))
	logger.Debug("Collected %d items (%d top-level)", len(collected), topLevel)
	return collected, nil
}

// CollectChildren fetches the most recent window of child items under one
// parent. Used by deletion detection, which needs a fresh bounded view of
// the comment list.
func (c *Collector) CollectChildren(ctx context.Context, parentKey string, window int) ([]domain.RawItem, error) {
	if window <= 0 {
		window = c.childWindow
	}
	req := driven.PageRequest{ParentKey: parentKey, PageSize: window}
	page, err := c.rotation.Call(ctx, "get_children", func(ctx context.Context, cred domain.Credential) (*driven.Page, error) {
		req.Credential = cred
		return c.upstream.ListChildren(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	metrics.PagesCollected.WithLabelValues("get_children").Inc()
	return flatten(page.Items), nil
}

// flatten normalises a page of items: parents come through as-is, embedded
// children become independent items carrying a synthetic composite key and
// a copy-forward of the parent-author linkage.
func flatten(items []domain.RawItem) []domain.RawItem {
	out := make([]domain.RawItem, 0, len(items))
	for _, item := range items {
		children := item.Children
		item.Children = nil
		out = append(out, item)

		for _, child := range children {
			child.Kind = domain.ItemComment
			child.ParentKey = item.Key
			child.ParentAuthor = item.AuthorKey
			if child.Key == "" {
				child.Key = domain.ChildKey(item.Key, child.PostedAt)
			}
			child.Children = nil
			out = append(out, child)
		}
	}
	return out
}
