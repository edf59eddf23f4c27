package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/4abishai/secura/internal/domain"
)

func fingerprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint [peer]",
		Short: "Print the identity fingerprint, or a pinned peer's",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				rec, err := wired.Peers.Get(domain.Username(args[0]))
				if err != nil {
					return err
				}
				fmt.Printf("%s: %s (updated %s)\n", rec.Peer, rec.Fingerprint, rec.UpdatedAt.Format("2006-01-02 15:04"))
				return nil
			}
			wired.Identity.LoadOrCreate()
			fmt.Printf("Fingerprint: %s\n", wired.Identity.Fingerprint())
			return nil
		},
	}
	return cmd
}
