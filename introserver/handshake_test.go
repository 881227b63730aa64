package introserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestServer spins up a Server on an ephemeral loopback port and
// returns its address plus a cancel func to stop serving.
func startTestServer(t *testing.T) (addr string, stop func()) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr = ln.Addr().String()
	ln.Close()

	srv, err := NewServer(addr, "10.0.0.0/24", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = srv.ListenAndServe(ctx)
	}()
	<-ready
	time.Sleep(20 * time.Millisecond) // let the listener bind

	return addr, cancel
}

func TestJoinHandshakeRoundTrip(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	result, err := Join(addr, "203.0.113.5", 9000)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", result.VirtualIP)
	assert.Empty(t, result.Seeds, "first joiner sees an empty registry")
}

func TestJoinHandshakeAssignsDistinctAddresses(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	first, err := Join(addr, "203.0.113.5", 9000)
	require.NoError(t, err)

	second, err := Join(addr, "203.0.113.6", 9001)
	require.NoError(t, err)

	assert.NotEqual(t, first.VirtualIP, second.VirtualIP)
	// The second joiner sees the first peer as a seed, registered
	// strictly after its own reply was already sent (S4 ordering).
	require.Len(t, second.Seeds, 1)
	assert.Equal(t, "203.0.113.5", second.Seeds[0].IP)
	assert.Equal(t, uint16(9000), second.Seeds[0].Port)
}

func TestJoinHandshakeSeedSampleBounded(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	for i := 0; i < 8; i++ {
		_, err := Join(addr, "203.0.113.5", 9000+i)
		require.NoError(t, err)
	}

	result, err := Join(addr, "203.0.113.99", 9999)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Seeds), 5)
}

func TestSessionKeyRejectsWrongLength(t *testing.T) {
	_, err := decodeSessionKey([]byte("too-short"))
	assert.ErrorIs(t, err, ErrKeyLength)
}

func TestSessionKeySealOpenRoundTrip(t *testing.T) {
	k, err := newSessionKey()
	require.NoError(t, err)

	plaintext := []byte(`{"hello":"world"}`)
	token, err := k.seal(plaintext)
	require.NoError(t, err)

	opened, err := k.open(token)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestSessionKeyOpenRejectsWrongKey(t *testing.T) {
	a, err := newSessionKey()
	require.NoError(t, err)
	b, err := newSessionKey()
	require.NoError(t, err)

	token, err := a.seal([]byte("secret"))
	require.NoError(t, err)

	_, err = b.open(token)
	assert.Error(t, err)
}
