package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/4abishai/secura/internal/app"
	"github.com/4abishai/secura/internal/domain"
	"github.com/4abishai/secura/internal/protocol/wire"
)

func listenCmd() *cobra.Command {
	var history bool
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Stay connected and print incoming messages until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := currentUser(); err != nil {
				return err
			}
			printNotices()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withSession(ctx, func(s *app.Session) error {
				// Runs after the session's own handler has stored the message.
				s.Transport().OnMessage(wire.TypeNewMessage, func(env wire.Envelope) {
					nm := env.(wire.NewMessage)
					printStored(s.Messages(), nm.ID.String())
				})
				s.Transport().OnMessage(wire.TypeMessagesHistory, func(env wire.Envelope) {
					for _, nm := range env.(wire.MessagesHistory).Messages {
						printStored(s.Messages(), nm.ID.String())
					}
				})
				s.Transport().OnStatus(func(st domain.TransportStatus) {
					if st == domain.StatusFailed {
						fmt.Fprintln(os.Stderr, "connection lost; giving up")
						stop()
					}
				})
				if history {
					if err := s.RequestHistory(); err != nil {
						return err
					}
				}
				if err := s.SetPresence(true); err != nil {
					logger().WithError(err).Debug("presence")
				}
				fmt.Printf("Listening as %s (Ctrl-C to quit)\n", s.User())
				<-ctx.Done()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "ask the hub to replay stored messages first")
	return cmd
}

func printStored(ms domain.MessageStore, id string) {
	m, ok, err := ms.Get(id)
	if err != nil || !ok {
		return
	}
	printMessage(m, time.TimeOnly)
}
