package kademlia

// kBucket is a bounded, LRU-ordered list of contacts: least-recently-seen
// at the front, most-recently-seen at the back. No duplicate ids.
type kBucket struct {
	contacts []Contact
}

func newKBucket() *kBucket {
	return &kBucket{contacts: make([]Contact, 0, K)}
}

// touch records contact c as just-seen. If c's id is already present it
// moves to the back; otherwise it is appended if there is room. If the
// bucket is already at capacity, the insertion is dropped and the
// existing (oldest-first) contacts are left untouched — this spec
// deliberately preserves the oldest contact rather than evicting it (see
// DESIGN.md; the base bucket type does the opposite).
//
// touch reports whether the bucket still has room for more contacts
// after the call.
func (b *kBucket) touch(c Contact) (fits bool) {
	for i, existing := range b.contacts {
		if existing.ID == c.ID {
			b.contacts = append(b.contacts[:i], b.contacts[i+1:]...)
			b.contacts = append(b.contacts, c)
			return len(b.contacts) < K
		}
	}

	if len(b.contacts) < K {
		b.contacts = append(b.contacts, c)
		return len(b.contacts) < K
	}

	// Bucket full and c is unknown: drop the insertion, oldest preserved.
	return false
}

// snapshot returns a copy of the bucket's contacts in LRU order.
func (b *kBucket) snapshot() []Contact {
	out := make([]Contact, len(b.contacts))
	copy(out, b.contacts)
	return out
}
