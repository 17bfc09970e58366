package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Flush queued mutations to the system of record",
	Long: `Drains the outbox now, regardless of the background reachability
state. Items the backend acknowledges are removed; everything else stays
queued for the next attempt.`,
	RunE: runFlush,
}

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "List queued mutations awaiting backend confirmation",
	RunE:  runOutboxList,
}

var outboxOwner string

func init() {
	outboxCmd.Flags().StringVar(
		&outboxOwner, "account", "", "Limit to one account's queued items")

	rootCmd.AddCommand(flushCmd)
	rootCmd.AddCommand(outboxCmd)
}

func runFlush(cmd *cobra.Command, _ []string) error {
	if flushCoordinator == nil {
		return errors.New("flush service not configured")
	}

	cmd.Printf("Backend reachability: %s\n", flushCoordinator.Reachability())
	cmd.Println("Flushing outbox...")

	stats, err := flushCoordinator.Flush(context.Background())
	if err != nil {
		return fmt.Errorf("flush failed: %w", err)
	}

	if stats.Submitted == 0 {
		cmd.Println("Outbox is empty.")
		return nil
	}

	cmd.Printf("Flushed %d/%d items (%d rejected).\n",
		stats.Acked, stats.Submitted, stats.Failed)
	return nil
}

func runOutboxList(cmd *cobra.Command, _ []string) error {
	if outboxStore == nil {
		return errors.New("outbox store not configured")
	}

	items, err := outboxStore.Pending(context.Background(), outboxOwner)
	if err != nil {
		return fmt.Errorf("failed to list outbox: %w", err)
	}

	if len(items) == 0 {
		cmd.Println("Outbox is empty.")
		return nil
	}

	cmd.Printf("%d queued item(s):\n\n", len(items))
	for _, item := range items {
		cmd.Printf("  #%d  %s %s/%s (account %s, %d attempt(s), queued %s)\n",
			item.ID, item.Operation, item.Collection, item.Key,
			item.OwnerID, item.Attempts, item.EnqueuedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
