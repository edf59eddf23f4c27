package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/4abishai/secura/internal/app"
	"github.com/4abishai/secura/internal/domain"
)

func retryCmd() *cobra.Command {
	var undecryptable string
	cmd := &cobra.Command{
		Use:   "retry [temp-id]",
		Short: "Retransmit pending messages, or re-decrypt a peer's failed ones",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := currentUser(); err != nil {
				return err
			}
			printNotices()
			if undecryptable != "" {
				s, err := app.NewSession(wired)
				if err != nil {
					return err
				}
				n, err := s.RetryUndecryptable(cmd.Context(), domain.Username(undecryptable))
				if err != nil {
					return err
				}
				fmt.Printf("Recovered %d message(s) from %s\n", n, undecryptable)
				return nil
			}
			return withSession(cmd.Context(), func(s *app.Session) error {
				if len(args) == 1 {
					if err := s.Retry(cmd.Context(), args[0]); err != nil {
						return err
					}
					fmt.Printf("Retransmitted %s\n", args[0])
					return nil
				}
				n, err := s.RetryPending(cmd.Context())
				fmt.Printf("Retransmitted %d pending message(s)\n", n)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&undecryptable, "undecryptable", "", "re-attempt decryption of this peer's failed messages")
	return cmd
}
