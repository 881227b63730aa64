package kid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceMetricProperties(t *testing.T) {
	a := HashID("alice")
	b := HashID("bob")
	c := HashID("carol")

	var zero ID
	assert.Equal(t, zero, Distance(a, a), "distance(a,a) must be 0")
	assert.Equal(t, Distance(a, b), Distance(b, a), "distance must be symmetric")

	// XOR is associative: distance(a,c) == distance(a,b) XOR distance(b,c),
	// which is the algebraic form of the XOR triangle inequality.
	lhs := Distance(a, c)
	rhs := Distance(Distance(a, b), Distance(b, c))
	assert.Equal(t, lhs, rhs, "xor triangle identity violated")
}

func TestBucketIndexDeterminism(t *testing.T) {
	var self ID
	other := ID{0x00, 0x00, 0x00, 0x00, 0x01} // differs only in a very low bit region
	// self is all zero; other has its highest set bit at byte 4 (0-indexed from
	// the front), bit 0 -> bit position from the low end is (NumBytes-5)*8.
	idx := BucketIndex(self, other)
	want := NumBits - 1 - ((NumBytes - 5) * 8)
	assert.Equal(t, want, idx)
}

func TestBucketIndexUndefinedNotCalledOnEqual(t *testing.T) {
	// document the precondition: equal ids never reach BucketIndex in the
	// routing table (kademlia.RoutingTable.Add ignores self silently).
	self := HashID("x")
	assert.Equal(t, self, self)
}

func TestDecimalRoundTrip(t *testing.T) {
	id := HashID("example.com")
	dec := id.Decimal()
	parsed, err := ParseDecimal(dec)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseDecimalInvalid(t *testing.T) {
	_, err := ParseDecimal("not-a-number")
	assert.Error(t, err)
}
