// Package peer is the application-facing façade over a DHT node: the
// thin Register/Lookup surface a caller uses without touching
// dhtnode's RPC plumbing directly.
//
// Grounded on the base's host.Host facade shape (host/host.go), whose
// Send/Recv/ID/Start thin-wrapper-over-subsystems pattern is adapted
// here to wrap a dhtnode.Node instead of envelope routing. Not to be
// confused with the base's identity package, which lived at this same
// import path before the transform (see DESIGN.md).
package peer

import (
	"context"

	"github.com/parekh/kadnet/dhtnode"
	"github.com/parekh/kadnet/kid"
)

// Peer wraps a dhtnode.Node with a name/value oriented API.
type Peer struct {
	node *dhtnode.Node
}

// New wraps an already-constructed node.
func New(node *dhtnode.Node) *Peer {
	return &Peer{node: node}
}

// RegisterDomain stores value under name's hash and immediately reads
// it back as a liveness check: it reports whether the store actually
// took, not whether it is durable or replicated correctly.
func (p *Peer) RegisterDomain(ctx context.Context, name, value string) bool {
	key := kid.HashID(name)
	p.node.Store(ctx, key, value)

	readBack, _ := p.node.FindValue(ctx, key)
	return readBack != nil && *readBack == value
}

// LookupDomain resolves name to its stored value, or nil if not found.
func (p *Peer) LookupDomain(ctx context.Context, name string) *string {
	key := kid.HashID(name)
	value, _ := p.node.FindValue(ctx, key)
	return value
}
