// Package domain defines the core business entities for shopmirror.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Record: A mirrored upstream item (post, product or order)
//   - ChangeLog: Per-record edit/deletion history across polls
//   - Credential: An upstream access token with rotation metadata
//   - QueueItem: A locally applied mutation awaiting backend confirmation
//   - Snapshot: A point-in-time backup marker
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
