package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"veilchat/internal/domain"
)

// rotate <peer>: destroy session and ratchet state for a peer.
func rotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate <peer>",
		Short: "Reset the session with a peer; the next contact re-runs the handshake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := domain.Username(args[0])
			if err := appCtx.Messages.Reset(peer); err != nil {
				return err
			}
			fmt.Printf("Session with %q reset.\n", peer)
			return nil
		},
	}
}
