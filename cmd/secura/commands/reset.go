package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/4abishai/secura/internal/app"
)

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear local message history and pinned peer keys (the identity is kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Logout(wired); err != nil {
				return err
			}
			fmt.Println("Local state cleared")
			return nil
		},
	}
	return cmd
}
