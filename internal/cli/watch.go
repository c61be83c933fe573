package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talonchat/talon/internal/store"
)

func newWatchCmd() *cobra.Command {
	var (
		accountID string
		interval  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the event queue and print unread totals as they change",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseCtx := cmd.Context()
			if baseCtx == nil {
				baseCtx = context.Background()
			}
			ctx, stop := signal.NotifyContext(baseCtx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			account, err := resolveAccount(ctx, accountID)
			if err != nil {
				return err
			}

			err = withSession(ctx, account, func(st *store.Store) error {
				last := -1
				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
						total := st.TotalUnread()
						if total == last {
							continue
						}
						last = total
						fmt.Fprintf(os.Stdout, "%s  unread total: %d  unread conversations: %d\n",
							time.Now().Format("15:04:05"), total, len(st.UnreadConversations()))
					}
				}
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "account id (defaults to the only stored account)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "poll interval for printed totals")
	return cmd
}
