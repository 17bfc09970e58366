// Package extractor provides stand-in implementations of the product
// extraction port. The real extraction backend plugs in behind the same
// interface.
package extractor

import (
	"context"
	"time"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
	"github.com/storefront-labs/shopmirror/internal/core/ports/driven"
)

// Noop is an extractor that finds nothing. The orchestrator treats empty
// extraction results as a normal outcome, so wiring this keeps the sync
// path fully functional without an extraction backend.
type Noop struct{}

var _ driven.Extractor = (*Noop)(nil)

// NewNoop creates a Noop extractor.
func NewNoop() *Noop {
	return &Noop{}
}

// Extract returns no records.
func (*Noop) Extract(_ context.Context, _ string, _ time.Time) ([]domain.Record, error) {
	return nil, nil
}
