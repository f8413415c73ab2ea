// Package commands defines the veilchat CLI.
//
// Global flags select the state directory, passphrase and relay; each
// subcommand drives one service operation. Configuration defaults come from
// config.toml inside the state directory and flags override it.
package commands
