package introserver

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
)

// ErrKeyLength is returned when the 44-byte session key prefix read off
// the wire is not exactly 44 bytes (SPEC_FULL.md §7 KeyLengthError).
var ErrKeyLength = errors.New("introserver: session key must be exactly 44 bytes")

// sessionKeySize is the raw AEAD key size; its base64 form is exactly
// 44 ASCII bytes (ceil(32/3)*4), matching spec §6's literal wire
// requirement.
const sessionKeySize = 32

// EncodedKeyLength is the length, in bytes, of a session key's
// base64 wire form.
const EncodedKeyLength = 44

// tokenVersion and the header layout approximate the "URL-safe
// base64-keyed AEAD format with timestamp and 128-bit MAC" spec §6
// asks for — confirmed against original_source/introduction_server.py
// to mean Python's cryptography.fernet.Fernet token format. Fernet
// itself is AES-CBC + HMAC-SHA256 with a 16-byte IV and a 32-byte MAC;
// this module approximates the same externally-observable contract
// (versioned header, embedded timestamp, authenticated encryption with
// a 128-bit tag) using golang.org/x/crypto/nacl/secretbox — an
// XSalsa20-Poly1305 AEAD with a genuine 128-bit (16-byte) Poly1305 tag
// — rather than hand-rolling Fernet's exact byte layout or vendoring a
// non-pack fernet-go dependency. See DESIGN.md.
const (
	tokenVersion    = 0x80
	tokenHeaderSize = 1 + 8 // version byte + 8-byte big-endian unix timestamp
	tokenNonceSize  = 24
)

// sessionKey is a node's symmetric AEAD key, generated once at startup.
type sessionKey [sessionKeySize]byte

// newSessionKey generates a fresh random session key.
func newSessionKey() (sessionKey, error) {
	var k sessionKey
	_, err := rand.Read(k[:])
	return k, err
}

// encode renders the key as its 44-byte URL-safe base64 wire form.
func (k sessionKey) encode() string {
	return base64.URLEncoding.EncodeToString(k[:])
}

// decodeSessionKey parses the 44-byte wire form back into a key.
func decodeSessionKey(raw []byte) (sessionKey, error) {
	var k sessionKey
	if len(raw) != EncodedKeyLength {
		return k, ErrKeyLength
	}
	decoded, err := base64.URLEncoding.DecodeString(string(raw))
	if err != nil {
		return k, err
	}
	if len(decoded) != sessionKeySize {
		return k, ErrKeyLength
	}
	copy(k[:], decoded)
	return k, nil
}

// seal encrypts plaintext under k, producing a single self-contained
// token: version || timestamp || nonce || secretbox-sealed ciphertext.
func (k sessionKey) seal(plaintext []byte) ([]byte, error) {
	var nonce [tokenNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}

	var key [sessionKeySize]byte = k
	sealed := secretbox.Seal(nil, plaintext, &nonce, &key)

	out := make([]byte, 0, tokenHeaderSize+tokenNonceSize+len(sealed))
	out = append(out, tokenVersion)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(time.Now().Unix()))
	out = append(out, ts[:]...)
	out = append(out, nonce[:]...)
	out = append(out, sealed...)
	return out, nil
}

// open decrypts a token produced by seal.
func (k sessionKey) open(token []byte) ([]byte, error) {
	if len(token) < tokenHeaderSize+tokenNonceSize {
		return nil, errors.New("introserver: token too short")
	}
	if token[0] != tokenVersion {
		return nil, errors.New("introserver: unsupported token version")
	}

	var nonce [tokenNonceSize]byte
	copy(nonce[:], token[tokenHeaderSize:tokenHeaderSize+tokenNonceSize])
	sealed := token[tokenHeaderSize+tokenNonceSize:]

	var key [sessionKeySize]byte = k
	plain, ok := secretbox.Open(nil, sealed, &nonce, &key)
	if !ok {
		return nil, errors.New("introserver: decryption failed")
	}
	return plain, nil
}
