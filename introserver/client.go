package introserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/parekh/kadnet/kademlia"
	"github.com/parekh/kadnet/kid"
)

// JoinResult is what a joiner learns from a successful handshake.
type JoinResult struct {
	VirtualIP string
	Seeds     []kademlia.Contact
}

// Join dials the introduction server at addr, performs the handshake
// described in SPEC_FULL.md §4.H / §6, and returns the assigned
// virtual address plus the seed contacts to bootstrap from.
//
// Framing mirrors the server exactly: one write of the join request,
// then a read of precisely EncodedKeyLength bytes for the session key,
// then a read to EOF for the single encrypted reply frame.
func Join(addr, listeningIP string, listeningPort int) (*JoinResult, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("introserver: dial %s: %w", addr, err)
	}
	defer conn.Close()

	req := joinRequest{ListeningIP: listeningIP, ListeningPort: listeningPort}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("introserver: marshal join request: %w", err)
	}
	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("introserver: send join request: %w", err)
	}

	keyBuf := make([]byte, EncodedKeyLength)
	if _, err := io.ReadFull(conn, keyBuf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("introserver: read session key: %w", ErrKeyLength)
		}
		return nil, fmt.Errorf("introserver: read session key: %w", err)
	}
	key, err := decodeSessionKey(keyBuf)
	if err != nil {
		return nil, err
	}

	encrypted, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("introserver: read encrypted reply: %w", err)
	}

	plain, err := key.open(encrypted)
	if err != nil {
		return nil, err
	}

	var reply joinReply
	if err := json.Unmarshal(plain, &reply); err != nil {
		return nil, fmt.Errorf("introserver: unmarshal join reply: %w", err)
	}

	seeds := make([]kademlia.Contact, 0, len(reply.NearbyPeers))
	for _, p := range reply.NearbyPeers {
		addr := fmt.Sprintf("%s:%d", p.PublicIP, p.Port)
		seeds = append(seeds, kademlia.Contact{
			ID:   kid.HashID(addr),
			IP:   p.PublicIP,
			Port: uint16(p.Port),
		})
	}

	return &JoinResult{VirtualIP: reply.VirtualIP, Seeds: seeds}, nil
}
