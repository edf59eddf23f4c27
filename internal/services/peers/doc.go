// Package peers tracks the last public identity key observed for each peer
// and reports when a peer's key changes (trust on first use).
package peers
