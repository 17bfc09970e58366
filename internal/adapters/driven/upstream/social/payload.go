package social

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
)

// The platform's payload shapes drift between API versions and item types.
// Media arrives as a bare URL string, a list of strings, or a list of
// objects; timestamps arrive as RFC3339 strings or Unix seconds. The types
// below absorb every observed shape so the rest of the codebase only ever
// sees domain.RawItem.

// apiPage is the wire shape of one listing response.
type apiPage struct {
	Items      []apiItem `json:"items"`
	NextCursor string    `json:"next_cursor"`
}

// apiItem is the wire shape of one post or comment.
type apiItem struct {
	ID         string    `json:"id"`
	ParentID   string    `json:"parent_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Text       string    `json:"text"`
	Media      mediaList `json:"media"`
	PostedAt   flexTime  `json:"posted_at"`
	Comments   []apiItem `json:"recent_comments"`
}

// mediaList normalises the platform's media field variants to []string.
type mediaList []string

func (m *mediaList) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*m = nil
		return nil
	}

	// Bare URL string
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			*m = mediaList{single}
		}
		return nil
	}

	// List of URL strings
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*m = mediaList(list)
		return nil
	}

	// List of attachment objects
	var objects []struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &objects); err == nil {
		urls := make([]string, 0, len(objects))
		for _, o := range objects {
			if o.URL != "" {
				urls = append(urls, o.URL)
			}
		}
		*m = mediaList(urls)
		return nil
	}

	return fmt.Errorf("social: unrecognised media shape: %s", data)
}

// flexTime accepts RFC3339 strings and Unix second timestamps.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("social: unrecognised timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}

	seconds, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("social: unrecognised timestamp shape: %s", data)
	}
	t.Time = time.Unix(seconds, 0).UTC()
	return nil
}

// toRawItem converts a wire item to the canonical domain shape.
func (item apiItem) toRawItem(kind domain.ItemKind) domain.RawItem {
	raw := domain.RawItem{
		Key:        item.ID,
		Kind:       kind,
		ParentKey:  item.ParentID,
		AuthorKey:  item.AuthorID,
		AuthorName: item.AuthorName,
		Text:       item.Text,
		Media:      []string(item.Media),
		PostedAt:   item.PostedAt.Time.UTC(),
	}

	for _, child := range item.Comments {
		raw.Children = append(raw.Children, child.toRawItem(domain.ItemComment))
	}

	return raw
}
