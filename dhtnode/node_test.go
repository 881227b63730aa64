package dhtnode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parekh/kadnet/kademlia"
	"github.com/parekh/kadnet/kid"
	"github.com/parekh/kadnet/rpcwire"
)

// stubCaller simulates a small network of Nodes in-process, routing
// Call(addr, req) to the handle() of whichever Node is registered at
// that address. This lets the lookup/store driver be exercised without
// any real QUIC listener.
type stubCaller struct {
	byAddr map[string]*Node
}

func (s *stubCaller) Call(_ context.Context, addr string, req []byte) ([]byte, error) {
	target, ok := s.byAddr[addr]
	if !ok {
		return nil, assertErr("no node at " + addr)
	}
	return target.handle(req)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func newTestNode(t *testing.T, addr string, net *stubCaller) *Node {
	t.Helper()
	n := &Node{
		Self:  kid.HashID(addr),
		Addr:  addr,
		Table: kademlia.NewRoutingTable(kid.HashID(addr)),
		store: make(map[kid.ID]string),
		pool:  net,
	}
	net.byAddr[addr] = n
	return n
}

func contactOf(n *Node, ip string, port uint16) kademlia.Contact {
	return kademlia.Contact{ID: n.Self, IP: ip, Port: port}
}

func TestFindValueLocalShortCircuit(t *testing.T) {
	net := &stubCaller{byAddr: map[string]*Node{}}
	a := newTestNode(t, "127.0.0.1:9000", net)

	key := kid.HashID("example.com")
	a.store[key] = "10.0.0.1"

	// Remove all other nodes so any network call would fail loudly.
	net.byAddr = map[string]*Node{"127.0.0.1:9000": a}

	value, contacts := a.FindValue(context.Background(), key)
	require.NotNil(t, value)
	assert.Equal(t, "10.0.0.1", *value)
	assert.Nil(t, contacts)
}

func TestStoreAndFindValueAcrossNodes(t *testing.T) {
	net := &stubCaller{byAddr: map[string]*Node{}}
	a := newTestNode(t, "127.0.0.1:9000", net)
	b := newTestNode(t, "127.0.0.1:9001", net)

	// a knows about b.
	a.Table.Add(contactOf(b, "127.0.0.1", 9001))
	b.Table.Add(contactOf(a, "127.0.0.1", 9000))

	key := kid.HashID("example.com")
	a.Store(context.Background(), key, "10.0.0.1")

	value, _ := b.FindValue(context.Background(), key)
	require.NotNil(t, value)
	assert.Equal(t, "10.0.0.1", *value)
}

func TestFindValueMissReturnsNil(t *testing.T) {
	net := &stubCaller{byAddr: map[string]*Node{}}
	a := newTestNode(t, "127.0.0.1:9000", net)

	value, _ := a.FindValue(context.Background(), kid.HashID("nonexistent.com"))
	assert.Nil(t, value)
}

func TestPingOnlyTouchesTableOnSuccess(t *testing.T) {
	net := &stubCaller{byAddr: map[string]*Node{}}
	a := newTestNode(t, "127.0.0.1:9000", net)
	b := newTestNode(t, "127.0.0.1:9001", net)

	ok := a.Ping(context.Background(), contactOf(b, "127.0.0.1", 9001))
	assert.True(t, ok)
	assert.Len(t, a.Table.FindClosest(b.Self), 1)

	// No node is registered at 9002, so this ping fails and the table
	// still holds only b.
	missing := kademlia.Contact{ID: kid.HashID("127.0.0.1:9002"), IP: "127.0.0.1", Port: 9002}
	assert.False(t, a.Ping(context.Background(), missing))
	assert.Len(t, a.Table.FindClosest(missing.ID), 1)
}

func TestHandleFindNodeMirrorsFindValueMissBranch(t *testing.T) {
	net := &stubCaller{byAddr: map[string]*Node{}}
	a := newTestNode(t, "127.0.0.1:9000", net)
	b := newTestNode(t, "127.0.0.1:9001", net)
	a.Table.Add(contactOf(b, "127.0.0.1", 9001))

	target := kid.HashID("somewhere")
	reply, err := a.handle(rpcwire.EncodeFindNode(target))
	require.NoError(t, err)

	decoded, err := rpcwire.DecodeFindNodeReply(reply)
	require.NoError(t, err)
	assert.Len(t, decoded.Nodes, 1)
}
