package dhtnode

import (
	"context"

	"github.com/parekh/kadnet/kademlia"
	"github.com/parekh/kadnet/kid"
	"github.com/parekh/kadnet/rpcwire"
)

// Ping opens a connection to c, sends PING, and expects exact PONG.
// Any I/O or parse error results in false and no routing table change;
// success adds c to the routing table.
func (n *Node) Ping(ctx context.Context, c kademlia.Contact) bool {
	reply, err := n.pool.Call(ctx, addrOf(c), rpcwire.EncodePing())
	if err != nil {
		if n.log != nil {
			n.log.Debugw("ping failed", "target", c.ID, "err", err)
		}
		return false
	}
	if string(reply) != rpcwire.PongReply {
		return false
	}
	n.Table.Add(c)
	return true
}

// storeOn issues a STOR RPC to a single remote contact. Failure is
// swallowed per the TransportError/ProtocolError policy (SPEC_FULL.md
// §7): it is not retried and does not propagate.
func (n *Node) storeOn(ctx context.Context, c kademlia.Contact, key kid.ID, value string) {
	reply, err := n.pool.Call(ctx, addrOf(c), rpcwire.EncodeStore(key, value))
	if err != nil {
		if n.log != nil {
			n.log.Debugw("store rpc failed", "target", c.ID, "err", err)
		}
		return
	}
	if string(reply) != rpcwire.OkReply && n.log != nil {
		n.log.Debugw("store rpc rejected", "target", c.ID, "reply", string(reply))
	}
}

// findNodeOn issues a FIND_NODE RPC to a single remote contact,
// returning the contacts it reports (empty on any failure).
func (n *Node) findNodeOn(ctx context.Context, c kademlia.Contact, target kid.ID) []kademlia.Contact {
	reply, err := n.pool.Call(ctx, addrOf(c), rpcwire.EncodeFindNode(target))
	if err != nil {
		return nil
	}
	decoded, err := rpcwire.DecodeFindNodeReply(reply)
	if err != nil {
		return nil
	}
	return wireToContacts(decoded.Nodes)
}

// lookupResult is the polymorphic result of one FIND_VALUE probe:
// either a value hit, a list of closer contacts, or nothing (failure).
type lookupResult struct {
	value    *string
	contacts []kademlia.Contact
}

// findValueOn issues a FIND_VALUE RPC to a single remote contact.
func (n *Node) findValueOn(ctx context.Context, c kademlia.Contact, key kid.ID) lookupResult {
	reply, err := n.pool.Call(ctx, addrOf(c), rpcwire.EncodeFindValue(key))
	if err != nil {
		return lookupResult{}
	}
	decoded, err := rpcwire.DecodeFindValueReply(reply)
	if err != nil {
		return lookupResult{}
	}
	if decoded.Value != nil {
		return lookupResult{value: decoded.Value}
	}
	return lookupResult{contacts: wireToContacts(decoded.Nodes)}
}
