// Package identity manages long-term identity key creation and access.
package identity
