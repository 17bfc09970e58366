package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/shopmirror/internal/adapters/driven/storage/memory"
	"github.com/storefront-labs/shopmirror/internal/core/domain"
	"github.com/storefront-labs/shopmirror/internal/core/ports/driven"
)

var (
	errQuota   = errors.New("quota exceeded")
	errBadCred = errors.New("token rejected")
	errNetwork = errors.New("connection refused")
)

// testClassifier maps the sentinel errors above to failure kinds.
func testClassifier(err error) domain.FailureKind {
	switch {
	case errors.Is(err, errQuota):
		return domain.FailureQuotaExceeded
	case errors.Is(err, errBadCred):
		return domain.FailureInvalidCredential
	case errors.Is(err, errNetwork):
		return domain.FailureNetwork
	default:
		return domain.FailureUnknown
	}
}

func seedCredentials(t *testing.T, store *memory.CredentialStore, accountID string, n, activeIndex int) {
	t.Helper()
	set := domain.CredentialSet{AccountID: accountID, ActiveIndex: activeIndex}
	for i := 0; i < n; i++ {
		set.Credentials = append(set.Credentials, domain.Credential{AccessToken: string(rune('a' + i))})
	}
	require.NoError(t, store.SaveSet(context.Background(), set))
}

func TestRotationClient_Call(t *testing.T) {
	ctx := context.Background()

	t.Run("success on active credential rotates nothing", func(t *testing.T) {
		store := memory.NewCredentialStore()
		seedCredentials(t, store, "acct", 3, 0)
		client := NewRotationClient("acct", store, testClassifier, nil)

		var used []string
		page, err := client.Call(ctx, "get_collection", func(_ context.Context, cred domain.Credential) (*driven.Page, error) {
			used = append(used, cred.AccessToken)
			return &driven.Page{Items: []domain.RawItem{{Key: "p1"}}}, nil
		})

		require.NoError(t, err)
		assert.Len(t, page.Items, 1)
		assert.Equal(t, []string{"a"}, used)

		set, err := store.GetSet(ctx, "acct")
		require.NoError(t, err)
		assert.Equal(t, 0, set.ActiveIndex)
	})

	t.Run("quota failure rotates and persists the working index", func(t *testing.T) {
		store := memory.NewCredentialStore()
		seedCredentials(t, store, "acct", 3, 0)
		client := NewRotationClient("acct", store, testClassifier, nil)

		var failovers []domain.Failover
		client.onFailover = func(f domain.Failover) { failovers = append(failovers, f) }

		var used []string
		_, err := client.Call(ctx, "get_collection", func(_ context.Context, cred domain.Credential) (*driven.Page, error) {
			used = append(used, cred.AccessToken)
			if cred.AccessToken == "a" {
				return nil, errQuota
			}
			return &driven.Page{}, nil
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, used)
		require.Len(t, failovers, 1)
		assert.Equal(t, 0, failovers[0].FromIndex)
		assert.Equal(t, 1, failovers[0].ToIndex)
		assert.Equal(t, domain.FailureQuotaExceeded, failovers[0].Kind)

		set, err := store.GetSet(ctx, "acct")
		require.NoError(t, err)
		assert.Equal(t, 1, set.ActiveIndex)
	})

	t.Run("attempt order wraps from the persisted index", func(t *testing.T) {
		store := memory.NewCredentialStore()
		seedCredentials(t, store, "acct", 3, 2)
		client := NewRotationClient("acct", store, testClassifier, nil)

		var used []string
		_, err := client.Call(ctx, "get_collection", func(_ context.Context, cred domain.Credential) (*driven.Page, error) {
			used = append(used, cred.AccessToken)
			return nil, errQuota
		})

		require.ErrorIs(t, err, domain.ErrCredentialExhausted)
		assert.Equal(t, []string{"c", "a", "b"}, used)
	})

	t.Run("primary success heals a prior rotation", func(t *testing.T) {
		store := memory.NewCredentialStore()
		seedCredentials(t, store, "acct", 3, 2)
		client := NewRotationClient("acct", store, testClassifier, nil)

		_, err := client.Call(ctx, "get_collection", func(_ context.Context, cred domain.Credential) (*driven.Page, error) {
			if cred.AccessToken != "a" {
				return nil, errQuota
			}
			return &driven.Page{}, nil
		})

		require.NoError(t, err)
		set, err := store.GetSet(ctx, "acct")
		require.NoError(t, err)
		assert.Equal(t, 0, set.ActiveIndex)
	})

	t.Run("network failure aborts without rotating", func(t *testing.T) {
		store := memory.NewCredentialStore()
		seedCredentials(t, store, "acct", 3, 0)
		client := NewRotationClient("acct", store, testClassifier, nil)

		calls := 0
		_, err := client.Call(ctx, "get_collection", func(_ context.Context, _ domain.Credential) (*driven.Page, error) {
			calls++
			return nil, errNetwork
		})

		require.ErrorIs(t, err, errNetwork)
		assert.NotErrorIs(t, err, domain.ErrCredentialExhausted)
		assert.Equal(t, 1, calls)

		set, getErr := store.GetSet(ctx, "acct")
		require.NoError(t, getErr)
		assert.Equal(t, 0, set.ActiveIndex, "active index unchanged on abort")
	})

	t.Run("each credential is tried exactly once before exhaustion", func(t *testing.T) {
		store := memory.NewCredentialStore()
		seedCredentials(t, store, "acct", 4, 1)
		client := NewRotationClient("acct", store, testClassifier, nil)

		calls := 0
		_, err := client.Call(ctx, "get_collection", func(_ context.Context, _ domain.Credential) (*driven.Page, error) {
			calls++
			return nil, errBadCred
		})

		require.ErrorIs(t, err, domain.ErrCredentialExhausted)
		assert.ErrorIs(t, err, errBadCred)
		assert.Equal(t, 4, calls)
	})

	t.Run("no credentials configured", func(t *testing.T) {
		store := memory.NewCredentialStore()
		client := NewRotationClient("acct", store, testClassifier, nil)

		_, err := client.Call(ctx, "get_collection", func(_ context.Context, _ domain.Credential) (*driven.Page, error) {
			t.Fatal("call should not run without credentials")
			return nil, nil
		})

		assert.ErrorIs(t, err, domain.ErrNoCredentials)
	})

	t.Run("out of range persisted index falls back to primary", func(t *testing.T) {
		store := memory.NewCredentialStore()
		seedCredentials(t, store, "acct", 2, 9)
		client := NewRotationClient("acct", store, testClassifier, nil)

		var used []string
		_, err := client.Call(ctx, "get_collection", func(_ context.Context, cred domain.Credential) (*driven.Page, error) {
			used = append(used, cred.AccessToken)
			return &driven.Page{}, nil
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, used)
	})

	t.Run("usage entries record every attempt", func(t *testing.T) {
		store := memory.NewCredentialStore()
		seedCredentials(t, store, "acct", 2, 0)
		client := NewRotationClient("acct", store, testClassifier, nil)

		_, err := client.Call(ctx, "get_collection", func(_ context.Context, cred domain.Credential) (*driven.Page, error) {
			if cred.AccessToken == "a" {
				return nil, errQuota
			}
			return &driven.Page{Items: []domain.RawItem{{Key: "p1"}, {Key: "p2"}}}, nil
		})
		require.NoError(t, err)

		usage := store.Usage()
		require.Len(t, usage, 2)
		assert.False(t, usage[0].OK)
		assert.Equal(t, 0, usage[0].CredentialIndex)
		assert.True(t, usage[1].OK)
		assert.Equal(t, 1, usage[1].CredentialIndex)
		assert.Equal(t, 2, usage[1].ItemCount)
	})
}

func TestRotationClient_Session(t *testing.T) {
	ctx := context.Background()

	t.Run("session aggregates calls and attempts", func(t *testing.T) {
		store := memory.NewCredentialStore()
		seedCredentials(t, store, "acct", 3, 0)
		client := NewRotationClient("acct", store, testClassifier, nil)

		client.StartSession()
		_, err := client.Call(ctx, "get_collection", func(_ context.Context, cred domain.Credential) (*driven.Page, error) {
			if cred.AccessToken == "a" {
				return nil, errQuota
			}
			return &driven.Page{Items: []domain.RawItem{{Key: "p1"}}}, nil
		})
		require.NoError(t, err)
		client.EndSession(ctx, false)

		sessions := store.Sessions()
		require.Len(t, sessions, 1)
		assert.Equal(t, 1, sessions[0].Calls)
		assert.Equal(t, 2, sessions[0].CredentialsUsed)
		assert.Equal(t, 1, sessions[0].Items)
		assert.False(t, sessions[0].Failed)
	})

	t.Run("failed run is marked", func(t *testing.T) {
		store := memory.NewCredentialStore()
		seedCredentials(t, store, "acct", 1, 0)
		client := NewRotationClient("acct", store, testClassifier, nil)

		client.StartSession()
		client.EndSession(ctx, true)

		sessions := store.Sessions()
		require.Len(t, sessions, 1)
		assert.True(t, sessions[0].Failed)
	})
}
