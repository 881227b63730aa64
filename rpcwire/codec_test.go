package rpcwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parekh/kadnet/kid"
)

func TestParsePing(t *testing.T) {
	req, err := ParseRequest(EncodePing())
	require.NoError(t, err)
	assert.Equal(t, OpPing, req.Op)
}

func TestStoreFramingCapturesEmbeddedSpace(t *testing.T) {
	key := kid.HashID("key-42")
	raw := EncodeStore(key, "10.0.0.7 extra")

	req, err := ParseRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, OpStore, req.Op)
	assert.Equal(t, key, req.Key)
	assert.Equal(t, "10.0.0.7 extra", req.Value, "value must capture the remainder verbatim")
}

func TestFindNodeAndFindValueDispatch(t *testing.T) {
	target := kid.HashID("target")

	nodeReq, err := ParseRequest(EncodeFindNode(target))
	require.NoError(t, err)
	assert.Equal(t, OpFind, nodeReq.Op)
	assert.Equal(t, SubFindNode, nodeReq.Sub)
	assert.Equal(t, target, nodeReq.Key)

	valueReq, err := ParseRequest(EncodeFindValue(target))
	require.NoError(t, err)
	assert.Equal(t, OpFind, valueReq.Op)
	assert.Equal(t, SubFindValue, valueReq.Sub)
	assert.Equal(t, target, valueReq.Key)
}

func TestParseRequestRejectsUnknownOpcode(t *testing.T) {
	_, err := ParseRequest([]byte("XXXX"))
	assert.Error(t, err)
}

func TestFindValueReplyRoundTrip(t *testing.T) {
	value := "10.0.0.1"
	raw, err := EncodeFindValueReply(&value, nil)
	require.NoError(t, err)

	decoded, err := DecodeFindValueReply(raw)
	require.NoError(t, err)
	require.NotNil(t, decoded.Value)
	assert.Equal(t, value, *decoded.Value)
	assert.Empty(t, decoded.Nodes)
}

func TestFindNodeReplyRoundTrip(t *testing.T) {
	nodes := []NodeInfo{{ID: kid.HashID("a").Decimal(), IP: "127.0.0.1", Port: 9000}}
	raw, err := EncodeFindNodeReply(nodes)
	require.NoError(t, err)

	decoded, err := DecodeFindNodeReply(raw)
	require.NoError(t, err)
	require.Len(t, decoded.Nodes, 1)
	assert.Equal(t, nodes[0], decoded.Nodes[0])
}
