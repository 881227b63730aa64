// Package identity provides a node's long-term cryptographic identity:
// an ed25519 key pair and the 32-byte fingerprint derived from its
// public key. This is distinct from kid.ID, the 160-bit identifier a
// node uses as its Kademlia self-id — that one is derived from the
// node's listening address (SPEC_FULL.md §10), not from key material.
// Identity exists so a node has a fingerprint to log for its lifetime,
// the way a long-running service advertises a fingerprint rather than a
// fresh one per connection. The QUIC transport does not use it: it
// generates its own TLS certificate.
//
// Adapted from peer/keypair.go and peer/peerid.go in the base module,
// which used this same key pair to derive the 32-byte PeerID that their
// envelope-routing layer addressed messages by; this module has no use
// for addressing-by-fingerprint (routing instead goes through
// kademlia.Contact/kid.ID), so only the identity/logging role survives.
package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"strings"
)

// FingerprintLength is the size, in bytes, of a node's fingerprint.
const FingerprintLength = 32

// Fingerprint is SHA-256 of a node's ed25519 public key.
type Fingerprint [FingerprintLength]byte

// KeyPair is a node's long-term identity: an ed25519 key pair and the
// fingerprint derived from its public half.
type KeyPair struct {
	PublicKey   ed25519.PublicKey
	PrivateKey  ed25519.PrivateKey
	Fingerprint Fingerprint
}

// NewKeyPair generates a fresh ed25519 key pair and its fingerprint.
func NewKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	return &KeyPair{
		PublicKey:   pub,
		PrivateKey:  priv,
		Fingerprint: fingerprintOf(pub),
	}, nil
}

func fingerprintOf(pub ed25519.PublicKey) Fingerprint {
	sum := sha256.Sum256(pub)
	var fp Fingerprint
	copy(fp[:], sum[:])
	return fp
}

// IsZero reports whether fp is the all-zero fingerprint.
func (fp Fingerprint) IsZero() bool {
	return fp == Fingerprint{}
}

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// String renders the fingerprint as a lowercase base32 string, suitable
// for log lines.
func (fp Fingerprint) String() string {
	return strings.ToLower(encoding.EncodeToString(fp[:]))
}

// ParseFingerprint parses the String() form back into a Fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	var fp Fingerprint
	decoded, err := encoding.DecodeString(strings.ToUpper(s))
	if err != nil {
		return fp, errors.New("identity: base32 decode failed: " + err.Error())
	}
	if len(decoded) != FingerprintLength {
		return fp, errors.New("identity: decoded fingerprint must be exactly 32 bytes")
	}
	copy(fp[:], decoded)
	return fp, nil
}
