package domain

import "time"

// Credential is one upstream access token. Each account owns an ordered list:
// index 0 is the primary, higher indices are backups used after rotation.
type Credential struct {
	// AccessToken is the bearer token for upstream API access.
	AccessToken string `json:"access_token"`

	// ScopeKey identifies the token's grant scope at the upstream platform.
	ScopeKey string `json:"scope_key,omitempty"`
}

// CredentialSet is the ordered credential list for one account plus the
// persisted rotation state. ActiveIndex survives process restarts so a new
// process resumes from the last-known-good credential instead of burning
// quota on a primary that already failed.
type CredentialSet struct {
	AccountID   string
	Credentials []Credential
	ActiveIndex int
	UpdatedAt   time.Time
}

// FailureKind classifies an upstream call failure. The upstream API has no
// typed error taxonomy, so kinds are derived from status and message
// heuristics at the adapter boundary.
type FailureKind string

const (
	// FailureQuotaExceeded means the credential hit its rate or usage quota.
	// Eligible for rotation to the next credential.
	FailureQuotaExceeded FailureKind = "quota_exceeded"

	// FailureInvalidCredential means the token was rejected outright.
	// Eligible for rotation to the next credential.
	FailureInvalidCredential FailureKind = "invalid_credential"

	// FailureNetwork means the call never reached the upstream API.
	// Rotation would not help; the call aborts.
	FailureNetwork FailureKind = "network_error"

	// FailureUnknown covers everything else. The call aborts.
	FailureUnknown FailureKind = "unknown"
)

// Rotatable reports whether a failure of this kind justifies trying the
// next credential.
func (k FailureKind) Rotatable() bool {
	return k == FailureQuotaExceeded || k == FailureInvalidCredential
}

// Failover describes one rotation step, passed to the failover callback
// before the next credential is attempted.
type Failover struct {
	FromIndex int
	ToIndex   int
	Kind      FailureKind
}

// UsageEntry records one upstream call for observability.
type UsageEntry struct {
	AccountID       string
	Action          string
	CredentialIndex int
	ItemCount       int
	OK              bool
	At              time.Time
}

// SyncSession aggregates counts over one collection run.
type SyncSession struct {
	ID              string
	AccountID       string
	StartedAt       time.Time
	EndedAt         time.Time
	Calls           int
	Items           int
	CredentialsUsed int
	Failed          bool
}
