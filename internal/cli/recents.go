package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talonchat/talon/internal/recents"
	"github.com/talonchat/talon/internal/store"
)

func newRecentsCmd() *cobra.Command {
	var (
		accountID  string
		unreadOnly bool
	)

	cmd := &cobra.Command{
		Use:   "recents",
		Short: "Show recent private conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			account, err := resolveAccount(ctx, accountID)
			if err != nil {
				return err
			}

			return withSession(ctx, account, func(st *store.Store) error {
				summaries := st.RecentConversations()
				if unreadOnly {
					summaries = recents.UnreadOnly(summaries)
				}
				if len(summaries) == 0 {
					fmt.Fprintln(os.Stdout, "No recent conversations.")
					return nil
				}

				rows := make([][]string, 0, len(summaries))
				for _, sum := range summaries {
					rows = append(rows, []string{
						formatParticipants(sum),
						strconv.FormatInt(sum.MsgID, 10),
						strconv.Itoa(sum.UnreadCount),
					})
				}
				return writeTable(os.Stdout,
					[]string{"CONVERSATION", "LAST MESSAGE", "UNREAD"}, rows)
			})
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "account id (defaults to the only stored account)")
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "only conversations with unread messages")
	return cmd
}

func formatParticipants(sum recents.Summary) string {
	names := make([]string, 0, len(sum.Users))
	for _, u := range sum.Users {
		name := u.FullName
		if name == "" {
			name = u.Email
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return sum.Key
	}
	return strings.Join(names, ", ")
}
