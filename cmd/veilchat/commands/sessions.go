package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// sessions: list peers with established sessions.
func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List peers with established sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			peers, err := appCtx.Sessions.List()
			if err != nil {
				return err
			}
			if len(peers) == 0 {
				fmt.Println("no sessions")
				return nil
			}
			for _, p := range peers {
				fmt.Println(p)
			}
			return nil
		},
	}
}
