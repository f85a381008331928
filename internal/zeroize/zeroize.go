// Package zeroize overwrites secret-holding buffers with zero bytes before
// they are released or reused. The corpus's only dedicated secure-memory
// library (awnumar/memguard) guards heap-allocated locked buffers; the key
// material here lives in plain fixed-size struct fields (mirroring the
// teacher's key_ed25519.PrivateKey [32]byte style), so a direct overwrite
// behind a runtime.KeepAlive barrier is used instead of pulling in a
// mlock-based allocator for values that are never separately allocated.
package zeroize

import "runtime"

// Bytes overwrites b with zeroes. The trailing KeepAlive stops the compiler
// from eliding the store as dead code when b is about to go out of scope.
func Bytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// Array16 overwrites a 16-byte array in place.
func Array16(a *[16]byte) {
	if a == nil {
		return
	}
	for i := range a {
		a[i] = 0
	}
	runtime.KeepAlive(a)
}

// Array32 overwrites a 32-byte array in place.
func Array32(a *[32]byte) {
	if a == nil {
		return
	}
	for i := range a {
		a[i] = 0
	}
	runtime.KeepAlive(a)
}

// Array64 overwrites a 64-byte array in place.
func Array64(a *[64]byte) {
	if a == nil {
		return
	}
	for i := range a {
		a[i] = 0
	}
	runtime.KeepAlive(a)
}
