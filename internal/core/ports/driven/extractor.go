package driven

import (
	"context"
	"time"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
)

// Extractor turns raw post text into structured product records. It is an
// external collaborator: possibly slow, always fallible. Callers treat a
// failure as "no structured record produced" and never propagate it.
type Extractor interface {
	// Extract parses rawText posted at postedAt into zero or more product
	// records. An empty slice is a valid result.
	Extract(ctx context.Context, rawText string, postedAt time.Time) ([]domain.Record, error)
}
