// Package authkdf implements the server-side half of spec.md §6's
// two-pass password hashing: the client performs a memory-hard KDF
// pass of its own before the credential ever reaches the wire, and
// this package performs a second Argon2id pass with a per-user random
// salt before anything touches storage. Neither side ever sees the
// other's cleartext output reused as a cleartext password.
package authkdf

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Parameters fixed by spec.md §6 "Password hashing".
const (
	Time    = 4
	Memory  = 64 * 1024 // KiB
	Threads = 1
	KeyLen  = 32
	SaltLen = 16
)

// Hash is the server-stored second-pass output: the per-user salt and
// the derived key, both fixed-length so they serialize trivially to a
// fixed-width column.
type Hash struct {
	Salt [SaltLen]byte
	Key  [KeyLen]byte
}

// Derive runs the server-side Argon2id pass over clientHash (the
// client's own KDF output, treated here as opaque high-entropy input)
// using salt.
func Derive(clientHash [32]byte, salt [SaltLen]byte) [KeyLen]byte {
	derived := argon2.IDKey(clientHash[:], salt[:], Time, Memory, Threads, KeyLen)
	var out [KeyLen]byte
	copy(out[:], derived)
	return out
}

// NewHash generates a fresh random salt and derives Hash from
// clientHash, for use at registration time.
func NewHash(clientHash [32]byte) (Hash, error) {
	var h Hash
	if _, err := rand.Read(h.Salt[:]); err != nil {
		return Hash{}, fmt.Errorf("authkdf: generating salt: %w", err)
	}
	h.Key = Derive(clientHash, h.Salt)
	return h, nil
}

// Verify reports whether clientHash, re-derived with stored's salt,
// matches stored's key, in constant time.
func Verify(clientHash [32]byte, stored Hash) bool {
	got := Derive(clientHash, stored.Salt)
	return subtle.ConstantTimeCompare(got[:], stored.Key[:]) == 1
}
