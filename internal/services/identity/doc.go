// Package identity manages creation, persistence and loading of the local
// device identity.
//
// The Manager always yields a usable X25519 key pair: a missing, corrupt or
// inconsistent stored identity is replaced by a freshly generated one.
package identity
