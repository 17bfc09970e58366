package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// Configuration keys the commands and composition root understand.
const (
	KeyDatabaseURL  = "backend.database_url"
	KeyUpstreamURL  = "upstream.base_url"
	KeyPageLimit    = "upstream.page_limit"
	KeyChildWindow  = "upstream.child_window"
	KeyDataDir      = "storage.data_dir"
	KeyDebounceMS   = "flush.debounce_ms"
	KeyPingInterval = "flush.ping_interval_s"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	RunE:  runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Sets a configuration value and persists it immediately.

Known keys:
  backend.database_url    PostgreSQL connection string
  upstream.base_url       Platform API base URL
  upstream.page_limit     Items requested per upstream page
  upstream.child_window   Recent comments fetched per direct comment poll
  storage.data_dir        Local replica directory
  flush.debounce_ms       Outbox flush debounce window (milliseconds)
  flush.ping_interval_s   Backend reachability probe interval (seconds)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	keys := []string{
		KeyDatabaseURL,
		KeyUpstreamURL,
		KeyPageLimit,
		KeyChildWindow,
		KeyDataDir,
		KeyDebounceMS,
		KeyPingInterval,
	}

	cmd.Println("Configuration")
	cmd.Println("=============")
	for _, key := range keys {
		val, ok := configStore.Get(key)
		if !ok {
			cmd.Printf("  %-24s (not set)\n", key)
			continue
		}
		if key == KeyDatabaseURL {
			cmd.Printf("  %-24s (set)\n", key)
			continue
		}
		cmd.Printf("  %-24s %v\n", key, val)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	key, value := args[0], args[1]
	if err := configStore.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	cmd.Printf("Set %s.\n", key)
	return nil
}
