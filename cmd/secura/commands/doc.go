// Package commands defines the secura CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init           Create or rotate the local identity
//   - fingerprint    Print the identity fingerprint
//   - register       Publish your public key to the directory
//   - send           Encrypt and send a message
//   - listen         Stay connected and print incoming messages
//   - history        Print a stored conversation
//   - conversations  List stored conversations
//   - retry          Retransmit pending messages or re-decrypt failed ones
//   - reset          Clear local history and pinned keys
//
// # Implementation
//
// The root command loads config.yaml from --home, applies flag overrides,
// builds the logger and the dependency graph (stores, services, relay
// clients) before any subcommand runs. Commands that talk to the hub open an
// app.Session on demand and print key-change notices as they are raised.
package commands
