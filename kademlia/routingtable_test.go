package kademlia

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parekh/kadnet/kid"
)

func mkContact(name, ip string, port uint16) Contact {
	return Contact{ID: kid.HashID(name), IP: ip, Port: port}
}

func TestBucketCapacityAndUniqueness(t *testing.T) {
	b := newKBucket()
	for i := 0; i < K+5; i++ {
		c := mkContact(string(rune('a'+i)), "127.0.0.1", uint16(9000+i))
		b.touch(c)
		assert.LessOrEqual(t, len(b.contacts), K)
	}

	seen := map[kid.ID]bool{}
	for _, c := range b.snapshot() {
		assert.False(t, seen[c.ID], "duplicate id in bucket")
		seen[c.ID] = true
	}
}

func TestBucketTouchPreservesOldestWhenFull(t *testing.T) {
	b := newKBucket()
	first := mkContact("first", "127.0.0.1", 9000)
	b.touch(first)
	for i := 1; i < K; i++ {
		b.touch(mkContact(string(rune('a'+i)), "127.0.0.1", uint16(9000+i)))
	}
	require.Len(t, b.contacts, K)

	fits := b.touch(mkContact("overflow", "127.0.0.1", 9999))
	assert.False(t, fits)
	assert.Len(t, b.contacts, K)
	assert.Equal(t, first.ID, b.contacts[0].ID, "oldest contact must be preserved, not evicted")
}

func TestBucketTouchMovesExistingToBack(t *testing.T) {
	b := newKBucket()
	a := mkContact("a", "127.0.0.1", 1)
	c := mkContact("c", "127.0.0.1", 2)
	b.touch(a)
	b.touch(c)
	b.touch(a)

	snap := b.snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, a.ID, snap[len(snap)-1].ID, "re-touched contact must move to the back")
}

func TestRoutingTableAddIgnoresSelf(t *testing.T) {
	self := kid.HashID("self")
	rt := NewRoutingTable(self)
	rt.Add(Contact{ID: self, IP: "127.0.0.1", Port: 1})

	for _, b := range rt.buckets {
		assert.Empty(t, b.contacts)
	}
}

func TestFindClosestOrderingAndTieBreak(t *testing.T) {
	self := kid.HashID("self")
	rt := NewRoutingTable(self)

	var contacts []Contact
	for i := 0; i < 30; i++ {
		c := mkContact(string(rune('a'+i))+"-node", "127.0.0.1", uint16(9000+i))
		contacts = append(contacts, c)
		rt.Add(c)
	}

	target := kid.HashID("target")
	closest := rt.FindClosest(target)

	assert.LessOrEqual(t, len(closest), K)

	for i := 1; i < len(closest); i++ {
		di := kid.Distance(target, closest[i-1].ID)
		dj := kid.Distance(target, closest[i].ID)
		if di == dj {
			assert.True(t, kid.Less(closest[i-1].ID, closest[i].ID) || closest[i-1].ID == closest[i].ID)
			continue
		}
		assert.True(t, kid.Less(di, dj), "closest list must be ascending by xor distance")
	}
}

func TestFindClosestEmptyTable(t *testing.T) {
	rt := NewRoutingTable(kid.HashID("self"))
	assert.Empty(t, rt.FindClosest(kid.HashID("target")))
}
