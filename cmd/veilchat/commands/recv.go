package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"veilchat/internal/domain"
)

// recv: fetch and decrypt pending messages.
func recvCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt pending messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			if err := requireUsername(); err != nil {
				return err
			}
			msgs, err := appCtx.Messages.Receive(cmd.Context(), passphrase, domain.Username(username), limit)
			for _, m := range msgs {
				fmt.Printf("[%s] %s\n", m.From, m.Plaintext)
			}
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Println("no new messages")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum messages to fetch (0 = all)")
	return cmd
}
