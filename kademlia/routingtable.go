package kademlia

import (
	"sort"
	"sync"

	"github.com/parekh/kadnet/kid"
)

// RoutingTable owns exactly kid.NumBits buckets for a single node
// identified by Self. All mutation goes through Add; reads go through
// FindClosest. Safe for concurrent use.
type RoutingTable struct {
	Self kid.ID

	mu      sync.Mutex
	buckets [kid.NumBits]*kBucket
}

// NewRoutingTable creates an empty table for the given self id.
func NewRoutingTable(self kid.ID) *RoutingTable {
	rt := &RoutingTable{Self: self}
	for i := range rt.buckets {
		rt.buckets[i] = newKBucket()
	}
	return rt
}

// Add records a sighting of c. The table's own id is ignored silently.
func (rt *RoutingTable) Add(c Contact) {
	if c.ID == rt.Self {
		return
	}
	idx := kid.BucketIndex(rt.Self, c.ID)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.buckets[idx].touch(c)
}

// FindClosest returns up to K contacts ordered by ascending XOR distance
// to target, ties broken by lower id. It starts at target's own bucket
// and walks outward by symmetric index offsets until at least K
// contacts have been gathered or every bucket has been visited, then
// sorts and truncates the accumulated set.
func (rt *RoutingTable) FindClosest(target kid.ID) []Contact {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if target == rt.Self {
		// bucket_index is undefined for self==other; walk every bucket
		// instead of seeding from one (this never occurs for the lookups
		// this table drives, since a node never looks up its own id, but
		// is handled defensively rather than left undefined).
		return rt.collectAll(target)
	}

	startIdx := kid.BucketIndex(rt.Self, target)
	var gathered []Contact
	visited := make([]bool, kid.NumBits)

	collect := func(i int) {
		if i < 0 || i >= kid.NumBits || visited[i] {
			return
		}
		visited[i] = true
		gathered = append(gathered, rt.buckets[i].contacts...)
	}

	collect(startIdx)
	for offset := 1; len(gathered) < K && offset < kid.NumBits; offset++ {
		if len(gathered) >= K {
			break
		}
		collect(startIdx - offset)
		collect(startIdx + offset)
	}

	return sortAndTruncate(gathered, target)
}

func (rt *RoutingTable) collectAll(target kid.ID) []Contact {
	var gathered []Contact
	for _, b := range rt.buckets {
		gathered = append(gathered, b.contacts...)
	}
	return sortAndTruncate(gathered, target)
}

func sortAndTruncate(contacts []Contact, target kid.ID) []Contact {
	out := make([]Contact, len(contacts))
	copy(out, contacts)

	sort.Slice(out, func(i, j int) bool {
		di := kid.Distance(target, out[i].ID)
		dj := kid.Distance(target, out[j].ID)
		if di == dj {
			return kid.Less(out[i].ID, out[j].ID)
		}
		return kid.Less(di, dj)
	})

	if len(out) > K {
		out = out[:K]
	}
	return out
}
