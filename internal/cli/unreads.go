package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/talonchat/talon/internal/store"
)

func newUnreadsCmd() *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "unreads",
		Short: "Show unread counts per conversation",
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
				topics := st.UnreadTopics()
				pms := st.UnreadConversations()

				if len(topics) == 0 && len(pms) == 0 {
					fmt.Fprintln(os.Stdout, "No unread messages.")
					return nil
				}

				if len(topics) > 0 {
					rows := make([][]string, 0, len(topics))
					for _, tc := range topics {
						name, ok := st.StreamName(tc.StreamID)
						if !ok {
							name = strconv.FormatInt(tc.StreamID, 10)
						}
						muted := ""
						if tc.Muted {
							muted = "muted"
						}
						rows = append(rows, []string{
							name, tc.Topic, strconv.Itoa(tc.Count), muted,
						})
					}
					if err := writeTable(os.Stdout,
						[]string{"STREAM", "TOPIC", "UNREAD", ""}, rows); err != nil {
						return err
					}
				}

				if len(pms) > 0 {
					rows := make([][]string, 0, len(pms))
					for _, sum := range pms {
						rows = append(rows, []string{
							formatParticipants(sum), strconv.Itoa(sum.UnreadCount),
						})
					}
					if err := writeTable(os.Stdout,
						[]string{"CONVERSATION", "UNREAD"}, rows); err != nil {
						return err
					}
				}

				fmt.Fprintf(os.Stdout, "\nTotal unread: %d\n", st.TotalUnread())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "account id (defaults to the only stored account)")
	return cmd
}
