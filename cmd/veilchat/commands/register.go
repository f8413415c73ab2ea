package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"veilchat/internal/domain"
)

// register: generate prekeys and publish the bundle to the relay.
func registerCmd() *cobra.Command {
	var numPreKeys int

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Generate prekeys and publish your bundle to the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if err := requireUsername(); err != nil {
				return err
			}

			if _, _, err := appCtx.PreKeys.GenerateAndStore(passphrase, numPreKeys); err != nil {
				return err
			}
			bundle, err := appCtx.PreKeys.Bundle(passphrase, domain.Username(username))
			if err != nil {
				return err
			}
			if err := appCtx.Relay.Register(cmd.Context(), bundle); err != nil {
				return err
			}
			fmt.Printf("Registered %q with %d one-time prekeys.\n", username, len(bundle.OneTimePreKeys))
			return nil
		},
	}
	cmd.Flags().IntVar(&numPreKeys, "prekeys", 20, "number of one-time prekeys to publish")
	return cmd
}
