// Package memzero clears key material once it is no longer needed.
package memzero

import "runtime"

// Bytes overwrites b with zeros.
func Bytes(b []byte) {
	clear(b)
	runtime.KeepAlive(b)
}

// Key overwrites a 32-byte key in place.
func Key(k *[32]byte) {
	*k = [32]byte{}
	runtime.KeepAlive(k)
}
