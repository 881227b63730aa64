package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeyPairProducesNonZeroFingerprint(t *testing.T) {
	kp, err := NewKeyPair()
	require.NoError(t, err)
	assert.False(t, kp.Fingerprint.IsZero())
	assert.Len(t, kp.PublicKey, 32)
}

func TestFingerprintStringRoundTrip(t *testing.T) {
	kp, err := NewKeyPair()
	require.NoError(t, err)

	s := kp.Fingerprint.String()
	parsed, err := ParseFingerprint(s)
	require.NoError(t, err)
	assert.Equal(t, kp.Fingerprint, parsed)
}

func TestParseFingerprintRejectsWrongLength(t *testing.T) {
	_, err := ParseFingerprint("short")
	assert.Error(t, err)
}
