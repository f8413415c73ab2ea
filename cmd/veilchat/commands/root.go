package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"veilchat/internal/app"
)

var (
	home       string
	passphrase string
	relayURL   string
	username   string

	appCtx *app.Wire
)

// Execute builds and runs the root command.
func Execute() error {
	root := &cobra.Command{
		Use:           "veilchat",
		Short:         "End-to-end encrypted chat CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := app.DefaultHome()
				if err != nil {
					return err
				}
				home = dir
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			cfg, err := app.LoadConfig(filepath.Join(home, app.DefaultConfigFile))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg.Home = home
			if relayURL != "" {
				cfg.RelayURL = relayURL
			}
			if username == "" {
				username = cfg.Username
			}

			appCtx, err = app.NewWire(cfg)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appCtx != nil {
				return appCtx.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "state dir (default ~/.veilchat)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting local keys")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (default "+app.DefaultRelayURL+")")
	root.PersistentFlags().StringVarP(&username, "username", "u", "", "username registered with the relay")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		registerCmd(),
		startSessionCmd(),
		sendCmd(),
		recvCmd(),
		rotateCmd(),
		sessionsCmd(),
	)
	return root.Execute()
}

func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (-p)")
	}
	return nil
}

func requireUsername() error {
	if username == "" {
		return fmt.Errorf("username required (-u or config.toml)")
	}
	return nil
}
