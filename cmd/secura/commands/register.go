package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/4abishai/secura/internal/app"
)

func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register [username]",
		Short: "Publish your public key to the directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				wired.Config.Username = args[0]
			}
			if _, err := currentUser(); err != nil {
				return err
			}
			if err := app.PublishKey(cmd.Context(), wired); err != nil {
				return err
			}
			fmt.Printf("Published key for %s\n", wired.Config.Username)
			return nil
		},
	}
	return cmd
}
