package social

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
)

// ErrEmptyResponse indicates the platform returned a 200 with no body.
var ErrEmptyResponse = errors.New("social: empty response body")

// RateLimitError represents a rate limit exceeded error with reset time.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
	Limit     int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("social: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// APIError represents a platform API error response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("social: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
	}
	return false
}

// quotaPhrases are message fragments the platform uses for quota rejections.
// The API has no typed error taxonomy, so classification leans on these.
var quotaPhrases = []string{
	"quota",
	"rate limit",
	"too many requests",
	"limit exceeded",
}

// Classify maps an upstream call error to a failure kind for the rotation
// layer. Quota and credential failures are rotatable; network failures and
// everything unrecognised abort the call.
func Classify(err error) domain.FailureKind {
	if err == nil {
		return domain.FailureUnknown
	}

	if IsRateLimited(err) {
		return domain.FailureQuotaExceeded
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return domain.FailureInvalidCredential
		case 429:
			return domain.FailureQuotaExceeded
		}
		msg := strings.ToLower(apiErr.Message)
		for _, phrase := range quotaPhrases {
			if strings.Contains(msg, phrase) {
				return domain.FailureQuotaExceeded
			}
		}
		return domain.FailureUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FailureNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.FailureNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return domain.FailureNetwork
	}

	return domain.FailureUnknown
}
