// Package crypto provides the Ed25519 signing and BLAKE3 digest primitives
// shared by the RBC and consensus layers.
package crypto

import (
	stded25519 "crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// PubKey is an Ed25519 public key.
type PubKey [stded25519.PublicKeySize]byte

// SecretKey is an Ed25519 private key in the standard library's expanded
// (seed + pubkey) form.
type SecretKey [stded25519.PrivateKeySize]byte

// Sig is a 64-byte Ed25519 signature.
type Sig [stded25519.SignatureSize]byte

func (k PubKey) Hex() string { return hex.EncodeToString(k[:]) }
func (k PubKey) Bytes() []byte { return k[:] }

func (s Sig) Bytes() []byte { return s[:] }

// Generate creates a fresh Ed25519 keypair.
func Generate() (SecretKey, PubKey, error) {
	pub, priv, err := stded25519.GenerateKey(rand.Reader)
	if err != nil {
		return SecretKey{}, PubKey{}, fmt.Errorf("crypto: generate keypair: %w", err)
	}
	var sk SecretKey
	var pk PubKey
	copy(sk[:], priv)
	copy(pk[:], pub)
	return sk, pk, nil
}

// Sign signs msg with sk.
func Sign(sk SecretKey, msg []byte) Sig {
	raw := stded25519.Sign(stded25519.PrivateKey(sk[:]), msg)
	var out Sig
	copy(out[:], raw)
	return out
}

// Verify checks a signature against a public key and message.
func Verify(pk PubKey, msg []byte, sig Sig) bool {
	return stded25519.Verify(stded25519.PublicKey(pk[:]), msg, sig[:])
}

// Digest returns the BLAKE3-256 digest of data.
func Digest(data []byte) [32]byte {
	return blake3.Sum256(data)
}

// Domain tags for every signed message kind. Domain separation is
// mandatory: without it a signature valid for one message kind could be
// replayed as a signature for another.
const (
	DomainRbcEcho  = "RBC_ECHO"
	DomainRbcReady = "RBC_READY"
	DomainProposal = "PROPOSAL"
	DomainVote     = "VOTE"
	DomainNewView  = "NEWVIEW"
	DomainTimeout  = "TIMEOUT"
)

// TaggedDigest returns tag || BLAKE3(data): the ASCII tag concatenated
// as a literal prefix in front of the digest of data, not hashed
// together with it. Matches the original source's sign_bytes helper.
func TaggedDigest(tag string, data []byte) []byte {
	d := Digest(data)
	out := make([]byte, 0, len(tag)+len(d))
	out = append(out, tag...)
	out = append(out, d[:]...)
	return out
}

// SignTagged signs tag||BLAKE3(data) under the given domain.
func SignTagged(sk SecretKey, tag string, data []byte) Sig {
	return Sign(sk, TaggedDigest(tag, data))
}

// VerifyTagged verifies a signature produced by SignTagged.
func VerifyTagged(pk PubKey, tag string, data []byte, sig Sig) bool {
	return Verify(pk, TaggedDigest(tag, data), sig)
}
