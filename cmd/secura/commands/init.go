package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/4abishai/secura/internal/app"
	"github.com/4abishai/secura/internal/services/identity"
)

func initCmd() *cobra.Command {
	var rotate, save bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate the identity key pair and store it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := identity.CheckPassphrase(passphrase); err != nil {
				return err
			}
			if rotate {
				id, err := app.RotateIdentity(cmd.Context(), wired)
				if err != nil {
					return err
				}
				fmt.Printf("Identity rotated and published.\nPublic key: %s\nFingerprint: %s\n",
					id.XPub, wired.Identity.Fingerprint())
				return nil
			}
			id := wired.Identity.LoadOrCreate()
			if save {
				if err := wired.Config.Save(); err != nil {
					return err
				}
			}
			fmt.Printf("Identity ready.\nPublic key: %s\nFingerprint: %s\n", id.XPub, wired.Identity.Fingerprint())
			return nil
		},
	}
	cmd.Flags().BoolVar(&rotate, "rotate", false, "replace the key pair and publish the new public key")
	cmd.Flags().BoolVar(&save, "save-config", false, "write the effective settings to config.yaml")
	return cmd
}
