// Package cli implements the shopmirror command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/storefront-labs/shopmirror/internal/core/ports/driven"
	"github.com/storefront-labs/shopmirror/internal/core/ports/driving"
	"github.com/storefront-labs/shopmirror/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services wired in by the composition root before Execute.
var (
	mirrorOrchestrator driving.MirrorOrchestrator
	flushCoordinator   driving.FlushCoordinator
	outboxStore        driven.OutboxStore
	snapshotStore      driven.SnapshotStore
	credentialStore    driven.CredentialStore
	configStore        driven.ConfigStore
)

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "shopmirror",
	Short: "Mirror shop content from the social platform",
	Long: `shopmirror pulls a shop account's posts and comments from the social
platform, extracts product records, and keeps a local replica in sync with
the central system of record. Writes made while the backend is unreachable
are queued and flushed once connectivity returns.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(
		&verboseFlag, "verbose", "v", false, "Enable verbose logging")
}

// Deps holds everything the CLI needs from the composition root.
type Deps struct {
	Mirror      driving.MirrorOrchestrator
	Flush       driving.FlushCoordinator
	Outbox      driven.OutboxStore
	Snapshots   driven.SnapshotStore
	Credentials driven.CredentialStore
	Config      driven.ConfigStore
}

// Wire injects the services the commands depend on.
func Wire(deps Deps) {
	mirrorOrchestrator = deps.Mirror
	flushCoordinator = deps.Flush
	outboxStore = deps.Outbox
	snapshotStore = deps.Snapshots
	credentialStore = deps.Credentials
	configStore = deps.Config
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion overrides the displayed version string.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}
