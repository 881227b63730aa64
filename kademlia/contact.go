// Package kademlia implements the k-bucket and routing table: bounded
// LRU-ordered buckets of contacts, indexed by XOR-prefix distance from a
// node's own id, with closest-K lookup.
//
// Adapted from the bucket/table design in router/Kademlia.go, corrected
// to the 160-bucket count and drop-on-full eviction policy this spec
// requires (the original keeps 256 buckets sized for a 32-byte peer id
// and replaces the oldest contact when a bucket is full).
package kademlia

import "github.com/parekh/kadnet/kid"

// K is the maximum number of contacts held per bucket.
const K = 20

// Alpha is the iterative-lookup concurrency factor.
const Alpha = 3

// Contact is a reachable peer: its id, dotted-quad ip, and port.
type Contact struct {
	ID   kid.ID
	IP   string
	Port uint16
}

// Equal reports whether two contacts name the same peer (by id alone).
func (c Contact) Equal(other Contact) bool {
	return c.ID == other.ID
}
