// Package introserver implements the bootstrap handshake: the
// introduction service that allocates virtual addresses and hands a
// joining peer a small seed of existing peers plus a session key
// (SPEC_FULL.md §4.G), and the joiner-side client that performs the
// handshake (§4.H).
//
// The handshake's exact two-write, read-to-EOF byte framing is pinned
// by spec §6 independently of any multiplexed transport, so — unlike
// the DHT RPC transport in package transport, which rides QUIC — this
// package uses plain TCP (net.Listen/net.Dial), grounded directly on
// original_source/introduction_server.py and p2p_node.py, which use
// plain asyncio TCP streams for exactly this exchange.
package introserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"

	"go.uber.org/zap"
)

// DefaultAddr is the introduction server's default listen address.
const DefaultAddr = "0.0.0.0:8888"

// joinRequest is the JSON a joiner sends: its own listening endpoint.
type joinRequest struct {
	ListeningIP   string `json:"listening_ip"`
	ListeningPort int    `json:"listening_port"`
}

// joinReply is the JSON payload encrypted and sent back to the joiner.
type joinReply struct {
	VirtualIP     string         `json:"virtual_ip"`
	NearbyPeers   []PeerEndpoint `json:"nearby_peers"`
	EncryptionKey string         `json:"encryption_key"`
}

// maxRequestBytes bounds the initial join request read.
const maxRequestBytes = 1024

// Server is the introduction service: a virtual address allocator, a
// peer registry, and the session key used to encrypt every join reply.
type Server struct {
	addr string

	pool     *AddressPool
	registry *PeerRegistry
	key      sessionKey

	log *zap.SugaredLogger
}

// NewServer builds an introduction server over the given virtual
// address block (default "10.0.0.0/8") listening at addr. The session
// key is generated once here and reused for every reply for the
// process lifetime (SPEC_FULL.md §3 Session key).
func NewServer(addr, virtualCIDR string, log *zap.SugaredLogger) (*Server, error) {
	pool, err := NewAddressPool(virtualCIDR)
	if err != nil {
		return nil, fmt.Errorf("introserver: %w", err)
	}
	key, err := newSessionKey()
	if err != nil {
		return nil, fmt.Errorf("introserver: generate session key: %w", err)
	}
	return &Server{
		addr:     addr,
		pool:     pool,
		registry: NewPeerRegistry(),
		key:      key,
		log:      log,
	}, nil
}

// ListenAndServe binds addr and serves join requests until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("introserver: listen %s: %w", s.addr, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	if s.log != nil {
		s.log.Infow("introduction server listening", "addr", s.addr)
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if s.log != nil {
				s.log.Warnw("accept error", "err", err)
			}
			continue
		}
		go s.handleJoin(conn)
	}
}

// handleJoin implements SPEC_FULL.md §4.G steps 1-7, in order.
func (s *Server) handleJoin(conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		if s.log != nil {
			s.log.Debugw("read join request failed", "err", err)
		}
		return
	}

	var req joinRequest
	if err := json.Unmarshal(buf[:n], &req); err != nil {
		if s.log != nil {
			s.log.Debugw("malformed join request", "err", err)
		}
		return
	}

	virtualIP, err := s.pool.Allocate()
	if err != nil {
		if s.log != nil {
			s.log.Warnw("join rejected", "err", err)
		}
		return
	}

	nearby := s.registry.SampleNearby(5)

	reply := joinReply{
		VirtualIP:     virtualIP,
		NearbyPeers:   nearby,
		EncryptionKey: s.key.encode(),
	}
	replyJSON, err := json.Marshal(reply)
	if err != nil {
		if s.log != nil {
			s.log.Errorw("marshal join reply failed", "err", err)
		}
		return
	}

	encrypted, err := s.key.seal(replyJSON)
	if err != nil {
		if s.log != nil {
			s.log.Errorw("seal join reply failed", "err", err)
		}
		return
	}

	// Write 1: the raw 44-byte session key.
	if _, err := conn.Write([]byte(s.key.encode())); err != nil {
		if s.log != nil {
			s.log.Debugw("write session key failed", "err", err)
		}
		return
	}
	// Write 2: the AEAD-encrypted reply, as a single frame.
	if _, err := conn.Write(encrypted); err != nil {
		if s.log != nil {
			s.log.Debugw("write encrypted reply failed", "err", err)
		}
		return
	}

	// Registration happens after the reply writes, matching the
	// observed source ordering (SPEC_FULL.md §9, scenario S4): if the
	// reply write fails, the address pool has still been decremented
	// but the registry is not updated.
	s.registry.Register(virtualIP, PeerEndpoint{
		PublicIP: req.ListeningIP,
		Port:     req.ListeningPort,
	})

	if s.log != nil {
		s.log.Infow("peer joined", "listening_ip", req.ListeningIP, "listening_port", req.ListeningPort, "virtual_ip", virtualIP)
	}
}

// RegistrySize reports the number of peers registered so far, used by
// tests and operator tooling.
func (s *Server) RegistrySize() int {
	return s.registry.Size()
}
