// Package app loads configuration and wires stores, services and clients
// into the dependency graph used by the CLI. There are no singletons: every
// component receives its collaborators explicitly.
package app
