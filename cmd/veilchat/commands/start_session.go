package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"veilchat/internal/domain"
)

// start-session <peer>: fetch the peer's bundle and run X3DH.
func startSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start-session <peer>",
		Short: "Establish an encrypted session with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			peer := domain.Username(args[0])
			sess, err := appCtx.Sessions.Establish(cmd.Context(), passphrase, peer)
			if err != nil {
				return err
			}
			fmt.Printf("Session established with %q", peer)
			if sess.OneTimePreKeyID != "" {
				fmt.Print(" (one-time prekey used)")
			}
			fmt.Println()
			return nil
		},
	}
}
