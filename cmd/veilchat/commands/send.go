package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"veilchat/internal/domain"
)

// send <peer> <message>: encrypt and send a message to <peer>.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if err := requireUsername(); err != nil {
				return err
			}
			peer := domain.Username(args[0])
			err := appCtx.Messages.Send(cmd.Context(), passphrase, domain.Username(username), peer, []byte(args[1]))
			if err != nil {
				return err
			}
			fmt.Println("sent")
			return nil
		},
	}
}
