package driven

import (
	"context"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
)

// PageRequest parameterises one paginated upstream call.
type PageRequest struct {
	// Credential is the token to authenticate with.
	Credential domain.Credential

	// ParentKey scopes a children listing to one parent item. Empty for
	// top-level listings.
	ParentKey string

	// Cursor is the opaque continuation token from the previous page.
	// Empty requests the first page.
	Cursor string

	// PageSize caps the number of items returned.
	PageSize int
}

// Page is one page of normalised upstream items.
type Page struct {
	Items []domain.RawItem

	// NextCursor is the continuation token for the following page.
	// Empty means the listing is exhausted.
	NextCursor string
}

// Upstream is the social-platform API boundary. Implementations normalise
// the platform's shape-varying payloads into domain.RawItem before returning.
type Upstream interface {
	// ListItems fetches a page of top-level items for the account.
	ListItems(ctx context.Context, req PageRequest) (*Page, error)

	// ListChildren fetches a page of child items under req.ParentKey.
	ListChildren(ctx context.Context, req PageRequest) (*Page, error)
}
