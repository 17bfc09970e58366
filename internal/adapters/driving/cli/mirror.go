package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/storefront-labs/shopmirror/internal/core/ports/driving"
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror <account-id>",
	Short: "Mirror an account's shop content",
	Long: `Pulls posts and their comment previews for the account, extracts
product records, diffs everything against the local replica and writes the
results through to the system of record. When the backend is unreachable the
writes are queued locally and flushed later.`,
	Args: cobra.ExactArgs(1),
	RunE: runMirror,
}

var hydrateCmd = &cobra.Command{
	Use:   "hydrate <account-id>",
	Short: "Pull recent backend changes into the local replica",
	Long: `Fetches records modified since the last sync from the system of
record and merges them into the local replica. Run after reconnecting to
catch up on writes made by other producers.`,
	Args: cobra.ExactArgs(1),
	RunE: runHydrate,
}

var mirrorCount int

func init() {
	mirrorCmd.Flags().IntVar(
		&mirrorCount, "count", 0, "Maximum top-level posts to collect (0 = no cap)")

	rootCmd.AddCommand(mirrorCmd)
	rootCmd.AddCommand(hydrateCmd)
}

func runMirror(cmd *cobra.Command, args []string) error {
	if mirrorOrchestrator == nil {
		return errors.New("mirror service not configured")
	}

	ctx := context.Background()
	accountID := args[0]

	cmd.Printf("Mirroring account: %s...\n", accountID)

	if err := mirrorWithProgress(ctx, cmd, mirrorOrchestrator, accountID); err != nil {
		return fmt.Errorf("mirror failed: %w", err)
	}

	cmd.Printf("Account %s mirrored successfully.\n", accountID)
	return nil
}

func runHydrate(cmd *cobra.Command, args []string) error {
	if mirrorOrchestrator == nil {
		return errors.New("mirror service not configured")
	}

	accountID := args[0]
	cmd.Printf("Hydrating local replica for %s...\n", accountID)

	if err := mirrorOrchestrator.Hydrate(context.Background(), accountID); err != nil {
		return fmt.Errorf("hydrate failed: %w", err)
	}

	cmd.Println("Local replica is up to date.")
	return nil
}

// mirrorWithProgress runs the mirror while displaying progress updates.
func mirrorWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	orch driving.MirrorOrchestrator,
	accountID string,
) error {
	// Run the mirror in a goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- orch.Mirror(ctx, accountID, mirrorCount)
	}()

	// Poll status every 500ms
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastCount := 0
	for {
		select {
		case err := <-errCh:
			// Print final status (ignore status error - best effort)
			status, statusErr := orch.Status(ctx, accountID)
			if statusErr == nil && status != nil && status.RecordsWritten > 0 {
				cmd.Printf("\rWrote %d records, queued %d (%d errors)\n",
					status.RecordsWritten, status.Queued, status.ErrorCount)
			}
			return err
		case <-ticker.C:
			// Check progress (ignore status error - best effort)
			status, statusErr := orch.Status(ctx, accountID)
			if statusErr == nil && status != nil && status.ItemsCollected > lastCount {
				cmd.Printf("\rCollecting... %d items", status.ItemsCollected)
				lastCount = status.ItemsCollected
			}
		}
	}
}
