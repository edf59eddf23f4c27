package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/4abishai/secura/internal/app"
	"github.com/4abishai/secura/internal/domain"
)

func sendCmd() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "send [peer] [message...]",
		Short: "Encrypt a message for a peer and send it through the hub",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := currentUser(); err != nil {
				return err
			}
			peer := domain.Username(args[0])
			text := strings.Join(args[1:], " ")
			printNotices()

			return withSession(cmd.Context(), func(s *app.Session) error {
				tempID, err := s.Send(cmd.Context(), peer, text)
				if err != nil {
					if tempID != "" {
						fmt.Printf("Queued %s (pending: %v)\n", tempID, err)
						return nil
					}
					return err
				}
				if awaitAck(cmd.Context(), s.Messages(), tempID, wait) {
					fmt.Printf("Sent to %s\n", peer)
				} else {
					fmt.Printf("Sent to %s, not yet acknowledged (%s)\n", peer, tempID)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "how long to wait for the hub to acknowledge")
	return cmd
}

// awaitAck polls until tempID is reconciled to a server id or timeout passes.
func awaitAck(ctx context.Context, ms domain.MessageStore, tempID string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		ok, err := ms.Exists(tempID)
		if err == nil && !ok {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-tick.C:
		}
	}
}

// printNotices writes key-change notices to stdout as they are raised.
func printNotices() {
	wired.Notifications.Subscribe(printNotice)
}
