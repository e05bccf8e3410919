// Package cryptox computes and checks content digests of uploaded proof
// objects.
package cryptox

import (
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const digestPrefix = "blake2b-256="

// ContentDigest returns the BLAKE2b-256 digest of data in the form
// "blake2b-256=<hex>".
//
// Example:
//
//	d := ContentDigest([]byte("abc"))
//	// d == "blake2b-256=bddd81..."
func ContentDigest(data []byte) string {
	sum := blake2b.Sum256(data)
	return digestPrefix + hex.EncodeToString(sum[:])
}

// VerifyDigest reports whether digest was produced by ContentDigest for data.
// Unknown algorithms and malformed values never verify.
func VerifyDigest(data []byte, digest string) bool {
	hexSum, ok := strings.CutPrefix(digest, digestPrefix)
	if !ok {
		return false
	}
	want, err := hex.DecodeString(hexSum)
	if err != nil || len(want) != blake2b.Size256 {
		return false
	}
	got := blake2b.Sum256(data)
	return subtle.ConstantTimeCompare(want, got[:]) == 1
}
