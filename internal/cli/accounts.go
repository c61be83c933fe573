package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talonchat/talon/internal/db"
	"github.com/talonchat/talon/internal/models"
)

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage stored logins",
	}
	cmd.AddCommand(newAccountsListCmd(), newAccountsRemoveCmd())
	return cmd
}

func newAccountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored logins",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			database, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			accounts, err := db.NewAccountRepository(database).List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}
			if len(accounts) == 0 {
				fmt.Fprintln(os.Stdout, "No accounts found.")
				return nil
			}

			rows := make([][]string, 0, len(accounts))
			for _, account := range accounts {
				rows = append(rows, []string{
					account.ID,
					account.ServerURL,
					account.Email,
					account.ServerVersion,
					formatYesNo(account.HasCapability(models.CapabilityRecentConversations)),
				})
			}
			return writeTable(os.Stdout,
				[]string{"ID", "SERVER", "EMAIL", "VERSION", "SERVER RECENTS"}, rows)
		},
	}
}

func newAccountsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <account-id>",
		Short: "Remove a stored login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			database, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			id := strings.TrimSpace(args[0])
			if err := db.NewAccountRepository(database).Delete(ctx, id); err != nil {
				if errors.Is(err, db.ErrAccountNotFound) {
					return fmt.Errorf("no account with id %s", id)
				}
				return err
			}
			fmt.Fprintf(os.Stdout, "Removed account %s\n", id)
			return nil
		},
	}
}

// resolveAccount picks the account to use: an explicit ID, or the only
// stored account.
func resolveAccount(ctx context.Context, accountID string) (*models.Account, error) {
	database, err := openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	defer database.Close()

	repo := db.NewAccountRepository(database)

	if accountID != "" {
		account, err := repo.Get(ctx, accountID)
		if errors.Is(err, db.ErrAccountNotFound) {
			return nil, fmt.Errorf("no account with id %s", accountID)
		}
		return account, err
	}

	accounts, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	switch len(accounts) {
	case 0:
		return nil, errors.New("no stored accounts; run `talon login` first")
	case 1:
		return accounts[0], nil
	default:
		return nil, errors.New("multiple accounts stored; pick one with --account")
	}
}
