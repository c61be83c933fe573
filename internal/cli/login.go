package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/talonchat/talon/internal/db"
	"github.com/talonchat/talon/internal/models"
)

func newLoginCmd() *cobra.Command {
	var (
		serverURL string
		email     string
		apiKey    string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a server login",
		Long:  "Store a server login. The API key is prompted for interactively unless --api-key is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			serverURL = strings.TrimSpace(serverURL)
			if serverURL == "" {
				serverURL = GetConfig().Server.URL
			}
			if serverURL == "" {
				return errors.New("server url required (--server or config)")
			}
			email = strings.TrimSpace(email)
			if email == "" {
				return errors.New("email required (--email)")
			}

			if apiKey == "" {
				key, err := promptSecret(fmt.Sprintf("API key for %s on %s: ", email, serverURL))
				if err != nil {
					return err
				}
				apiKey = key
			}
			if strings.TrimSpace(apiKey) == "" {
				return errors.New("api key must not be empty")
			}

			database, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			account := &models.Account{
				ServerURL: serverURL,
				Email:     email,
				APIKey:    strings.TrimSpace(apiKey),
			}
			repo := db.NewAccountRepository(database)
			if err := repo.Create(ctx, account); err != nil {
				if errors.Is(err, db.ErrAccountAlreadyExists) {
					return fmt.Errorf("account for %s on %s already exists", email, serverURL)
				}
				return err
			}

			fmt.Fprintf(os.Stdout, "Stored login %s for %s on %s\n", account.ID, email, serverURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "server base URL")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (prompted when omitted)")

	return cmd
}

// promptSecret reads a secret without echoing when stdin is a terminal.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
		return string(data), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
