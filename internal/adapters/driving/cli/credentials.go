package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/storefront-labs/shopmirror/internal/core/domain"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage upstream API credentials",
	Long: `Add, inspect and activate upstream credentials for an account.

Each account holds an ordered credential list: index 0 is the primary,
higher indices are backups the mirror rotates to when the active one hits
its quota or is rejected. The active index survives restarts.`,
}

var credentialsAddCmd = &cobra.Command{
	Use:   "add <account-id>",
	Short: "Add a credential to an account",
	Long: `Appends a credential to the account's rotation list. The token is
read from the terminal without echo unless --token is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runCredentialsAdd,
}

var credentialsListCmd = &cobra.Command{
	Use:   "list <account-id>",
	Short: "List an account's credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialsList,
}

var credentialsActivateCmd = &cobra.Command{
	Use:   "activate <account-id> <index>",
	Short: "Set the active credential index",
	Args:  cobra.ExactArgs(2),
	RunE:  runCredentialsActivate,
}

// Flags for credentials add.
var (
	credAddToken    string
	credAddScopeKey string
)

func init() {
	credentialsAddCmd.Flags().StringVar(
		&credAddToken, "token", "", "Access token (prompted without echo if omitted)")
	credentialsAddCmd.Flags().StringVar(
		&credAddScopeKey, "scope-key", "", "Platform grant scope key")

	credentialsCmd.AddCommand(credentialsAddCmd)
	credentialsCmd.AddCommand(credentialsListCmd)
	credentialsCmd.AddCommand(credentialsActivateCmd)
	rootCmd.AddCommand(credentialsCmd)
}

func runCredentialsAdd(cmd *cobra.Command, args []string) error {
	if credentialStore == nil {
		return errors.New("credential store not configured")
	}

	ctx := context.Background()
	accountID := args[0]

	token := credAddToken
	if token == "" {
		cmd.Print("Access token: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		cmd.Println()
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
		token = strings.TrimSpace(string(raw))
	}
	if token == "" {
		return errors.New("token must not be empty")
	}

	set, err := credentialStore.GetSet(ctx, accountID)
	if err != nil {
		if !errors.Is(err, domain.ErrNoCredentials) {
			return fmt.Errorf("failed to load credentials: %w", err)
		}
		set = &domain.CredentialSet{AccountID: accountID}
	}

	set.Credentials = append(set.Credentials, domain.Credential{
		AccessToken: token,
		ScopeKey:    credAddScopeKey,
	})

	if err := credentialStore.SaveSet(ctx, *set); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	cmd.Printf("Credential added at index %d.\n", len(set.Credentials)-1)
	return nil
}

func runCredentialsList(cmd *cobra.Command, args []string) error {
	if credentialStore == nil {
		return errors.New("credential store not configured")
	}

	set, err := credentialStore.GetSet(context.Background(), args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNoCredentials) {
			cmd.Println("No credentials configured.")
			return nil
		}
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	cmd.Printf("%d credential(s), active index %d:\n\n", len(set.Credentials), set.ActiveIndex)
	for i, cred := range set.Credentials {
		marker := " "
		if i == set.ActiveIndex {
			marker = "*"
		}
		scope := cred.ScopeKey
		if scope == "" {
			scope = "(default scope)"
		}
		cmd.Printf("  %s %d  %s  %s\n", marker, i, maskToken(cred.AccessToken), scope)
	}
	return nil
}

func runCredentialsActivate(cmd *cobra.Command, args []string) error {
	if credentialStore == nil {
		return errors.New("credential store not configured")
	}

	ctx := context.Background()
	accountID := args[0]

	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[1], err)
	}

	set, err := credentialStore.GetSet(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	if index < 0 || index >= len(set.Credentials) {
		return fmt.Errorf("index %d out of range (0..%d)", index, len(set.Credentials)-1)
	}

	if err := credentialStore.SetActiveIndex(ctx, accountID, index); err != nil {
		return fmt.Errorf("failed to set active index: %w", err)
	}

	cmd.Printf("Active credential is now index %d.\n", index)
	return nil
}

// maskToken shows only the first and last few characters of a token.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
