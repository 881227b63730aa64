package introserver

import (
	"math/rand"
	"sync"
)

// PeerEndpoint is a registered peer's reachable address, as recorded by
// the introduction server (SPEC_FULL.md §3 Peer registry).
type PeerEndpoint struct {
	PublicIP string `json:"public_ip"`
	Port     int    `json:"port"`
}

// PeerRegistry maps virtual addresses to peer endpoints. It grows
// monotonically for the process lifetime, grounded on the base's
// netquic.RelayRegistry map-of-addresses shape (relayregistry.go),
// generalized from a PeerID-keyed address book to a virtual-address-
// keyed endpoint table.
type PeerRegistry struct {
	mu    sync.Mutex
	peers map[string]PeerEndpoint
}

// NewPeerRegistry creates an empty registry.
func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{peers: make(map[string]PeerEndpoint)}
}

// Register records a newly joined peer under its assigned virtual
// address.
func (r *PeerRegistry) Register(virtualIP string, ep PeerEndpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[virtualIP] = ep
}

// SampleNearby returns up to n entries sampled uniformly without
// replacement from the registry as it stands at call time
// (SPEC_FULL.md §4.G step 3: "sampled uniformly without replacement
// from the current peer registry, before adding the new peer").
func (r *PeerRegistry) SampleNearby(n int) []PeerEndpoint {
	r.mu.Lock()
	all := make([]PeerEndpoint, 0, len(r.peers))
	for _, ep := range r.peers {
		all = append(all, ep)
	}
	r.mu.Unlock()

	if n > len(all) {
		n = len(all)
	}
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all[:n]
}

// Size reports the number of registered peers.
func (r *PeerRegistry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}
