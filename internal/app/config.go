package app

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	// Home is the state directory, e.g. $HOME/.veilchat.
	Home string `toml:"home"`
	// RelayURL is the relay base URL, e.g. http://127.0.0.1:8080.
	RelayURL string `toml:"relay_url"`
	// Username is the name registered with the relay.
	Username string `toml:"username"`

	// HTTP overrides the client used for relay calls; defaults to
	// http.DefaultClient. Not settable from the config file.
	HTTP *http.Client `toml:"-"`
}

// DefaultConfigFile is the config file name looked up inside Home.
const DefaultConfigFile = "config.toml"

// DefaultRelayURL is used when neither the config file nor the --relay flag
// names a relay.
const DefaultRelayURL = "http://127.0.0.1:8080"

// LoadConfig reads the TOML file at path into a Config. A missing file is
// not an error; flags and defaults fill the gaps.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	if cfg.RelayURL == "" {
		cfg.RelayURL = DefaultRelayURL
	}
	return cfg, nil
}

// DefaultHome returns $HOME/.veilchat.
func DefaultHome() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".veilchat"), nil
}
