package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots <account-id>",
	Short: "List backup snapshots for an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotsList,
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
}

func runSnapshotsList(cmd *cobra.Command, args []string) error {
	if snapshotStore == nil {
		return errors.New("snapshot store not configured")
	}

	snaps, err := snapshotStore.List(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	if len(snaps) == 0 {
		cmd.Println("No snapshots recorded.")
		return nil
	}

	cmd.Printf("%d snapshot(s):\n\n", len(snaps))
	for _, snap := range snaps {
		cmd.Printf("  %s  %s\n", snap.CreatedAt.Format("2006-01-02 15:04:05"), snap.ID)
		for _, collection := range domain.RecordCollections() {
			if n, ok := snap.Counts[collection]; ok {
				cmd.Printf("      %-10s %d\n", collection, n)
			}
		}
		if snap.Notes != "" {
			cmd.Printf("      notes: %s\n", snap.Notes)
		}
	}
	return nil
}
