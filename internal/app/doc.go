// Package app wires application dependencies for the CLI.
//
// It loads Config (YAML under the home directory, overridden by flags),
// builds the concrete stores, relay clients and services from it, and
// exposes them via the Wire struct. Session is the per-user context object
// that binds the transport's handlers to the message dispatcher.
package app
