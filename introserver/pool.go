package introserver

import (
	"encoding/binary"
	"errors"
	"net"
	"sync"
)

// ErrNoAddressAvailable is returned once the virtual address pool is
// exhausted (SPEC_FULL.md §7 NoAddressAvailable).
var ErrNoAddressAvailable = errors.New("introserver: no virtual address available")

// AddressPool allocates virtual addresses from a CIDR block, one at a
// time, with no release — matching the base contract of
// original_source/introduction_server.py's
// `set(ipaddress.IPv4Network('10.0.0.0/8').hosts())`.
//
// Rather than materializing every host address up front (the Python
// source builds a ~16M-entry set), this pool walks the block lazily
// with a counter; allocation order is therefore sequential rather than
// Python-set-arbitrary, which the spec never requires (§4.G only
// requires "pop an arbitrary host", not a particular order), and
// exhaustion behaves identically once every usable host has been
// handed out.
type AddressPool struct {
	mu   sync.Mutex
	base uint32 // network address as a uint32
	next uint32 // offset of the next host to allocate
	size uint32 // number of usable host addresses
}

// NewAddressPool builds a pool over the given CIDR block (e.g.
// "10.0.0.0/8"), excluding the network and broadcast addresses, the
// same hosts() semantics as Python's ipaddress module.
func NewAddressPool(cidr string) (*AddressPool, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}
	ip4 := ipnet.IP.To4()
	if ip4 == nil {
		return nil, errors.New("introserver: only IPv4 CIDR blocks are supported")
	}
	ones, bits := ipnet.Mask.Size()
	hostBits := bits - ones
	if hostBits < 2 {
		return nil, errors.New("introserver: CIDR block too small to have usable hosts")
	}

	total := uint32(1) << uint(hostBits)
	usable := total - 2 // exclude network and broadcast addresses

	return &AddressPool{
		base: binary.BigEndian.Uint32(ip4),
		next: 1, // offset 0 is the network address, already excluded
		size: usable,
	}, nil
}

// Allocate pops the next available address, or ErrNoAddressAvailable if
// the pool is exhausted.
func (p *AddressPool) Allocate() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.next > p.size {
		return "", ErrNoAddressAvailable
	}
	addr := p.base + p.next
	p.next++

	var b [4]byte
	binary.BigEndian.PutUint32(b[:], addr)
	return net.IP(b[:]).String(), nil
}
