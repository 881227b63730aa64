package dhtnode

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/parekh/kadnet/kademlia"
	"github.com/parekh/kadnet/kid"
)

// Bootstrap attempts a PING against every seed; successful pongs insert
// the seed into the routing table (SPEC_FULL.md §4.E). Seeds are pinged
// concurrently — spec.md leaves the bootstrap fan-out shape
// unspecified, unlike store/lookup's explicit "await all" rule, so this
// module uses the same errgroup idiom for consistency (see DESIGN.md).
func (n *Node) Bootstrap(ctx context.Context, seeds []kademlia.Contact) {
	var g errgroup.Group
	for _, seed := range seeds {
		seed := seed
		g.Go(func() error {
			n.Ping(ctx, seed)
			return nil
		})
	}
	_ = g.Wait()
}

// Store computes the K closest known contacts to key, counting the node
// itself as a candidate (the routing table never holds self); self writes
// locally, every remote contact gets a STOR RPC, all issued
// concurrently via errgroup and awaited before Store returns (spec §5:
// "store waits for all its concurrent STORs to settle ... no
// fire-and-forget"). Partial failure is acceptable and not retried.
func (n *Node) Store(ctx context.Context, key kid.ID, value string) {
	closest := mergeAndTruncate(n.Table.FindClosest(key), []kademlia.Contact{{ID: n.Self}}, key)

	var g errgroup.Group
	for _, c := range closest {
		c := c
		if c.ID == n.Self {
			n.storeMu.Lock()
			n.store[key] = value
			n.storeMu.Unlock()
			continue
		}
		g.Go(func() error {
			n.storeOn(ctx, c, key, value)
			return nil
		})
	}
	_ = g.Wait()
}

// FindNode runs the iterative lookup converging on the K contacts
// closest to target.
func (n *Node) FindNode(ctx context.Context, target kid.ID) []kademlia.Contact {
	shortlist, _ := n.iterativeLookup(ctx, target, false)
	return shortlist
}

// FindValue runs the iterative lookup, short-circuiting on any value
// hit. A local hit returns immediately with zero network traffic.
func (n *Node) FindValue(ctx context.Context, key kid.ID) (*string, []kademlia.Contact) {
	n.storeMu.Lock()
	local, ok := n.store[key]
	n.storeMu.Unlock()
	if ok {
		return &local, nil
	}
	shortlist, value := n.iterativeLookup(ctx, key, true)
	return value, shortlist
}

// iterativeLookup drives the shared algorithm of SPEC_FULL.md §4.E: an
// Alpha-parallel, round-based search that never advances to the next
// round until every probe of the current round has completed. wantValue
// selects FIND_VALUE semantics (value short-circuit) over FIND_NODE.
func (n *Node) iterativeLookup(ctx context.Context, target kid.ID, wantValue bool) ([]kademlia.Contact, *string) {
	shortlist := n.Table.FindClosest(target)
	if len(shortlist) == 0 {
		return nil, nil
	}

	queried := make(map[kid.ID]bool)

	for {
		var batch []kademlia.Contact
		for _, c := range shortlist {
			if len(batch) >= kademlia.Alpha {
				break
			}
			if !queried[c.ID] {
				batch = append(batch, c)
			}
		}
		if len(batch) == 0 {
			break
		}

		var mu sync.Mutex
		var found *string
		var discovered []kademlia.Contact

		g, gctx := errgroup.WithContext(ctx)
		for _, c := range batch {
			c := c
			g.Go(func() error {
				if wantValue {
					res := n.findValueOn(gctx, c, target)
					if res.value != nil {
						mu.Lock()
						if found == nil {
							found = res.value
						}
						mu.Unlock()
						return nil
					}
					mu.Lock()
					discovered = append(discovered, res.contacts...)
					mu.Unlock()
					return nil
				}
				nodes := n.findNodeOn(gctx, c, target)
				mu.Lock()
				discovered = append(discovered, nodes...)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		for _, c := range batch {
			queried[c.ID] = true
		}

		if wantValue && found != nil {
			return shortlist, found
		}

		shortlist = mergeAndTruncate(shortlist, discovered, target)
	}

	if wantValue {
		return shortlist, nil
	}
	return shortlist, nil
}

func mergeAndTruncate(shortlist, discovered []kademlia.Contact, target kid.ID) []kademlia.Contact {
	seen := make(map[kid.ID]kademlia.Contact, len(shortlist)+len(discovered))
	for _, c := range shortlist {
		seen[c.ID] = c
	}
	for _, c := range discovered {
		if _, ok := seen[c.ID]; !ok {
			seen[c.ID] = c
		}
	}

	merged := make([]kademlia.Contact, 0, len(seen))
	for _, c := range seen {
		merged = append(merged, c)
	}

	sort.Slice(merged, func(i, j int) bool {
		di := kid.Distance(target, merged[i].ID)
		dj := kid.Distance(target, merged[j].ID)
		if di == dj {
			return kid.Less(merged[i].ID, merged[j].ID)
		}
		return kid.Less(di, dj)
	})

	if len(merged) > kademlia.K {
		merged = merged[:kademlia.K]
	}
	return merged
}
