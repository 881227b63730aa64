// Package transport provides the QUIC-based connection-per-peer,
// stream-per-RPC transport that carries the DHT RPC codec
// (package rpcwire). One request/one reply per fresh bidirectional
// stream, per SPEC_FULL.md §4.D; connections to a given remote address
// are cached and reused across RPCs, a permitted optimization under
// spec §9 ("connection pooling is a permitted optimization only if it
// preserves framing semantics") as long as every RPC still gets its own
// stream.
//
// Adapted from netquic/node.go and netquic/peermanager.go in the base
// module. Two changes from the base: streams here are bidirectional
// (OpenStreamSync/AcceptStream) instead of uni-directional
// (OpenUniStream/AcceptUniStream), since this spec needs true
// request/reply instead of fire-and-forget; and connections are keyed
// by remote address instead of by PeerID, since kademlia.Contact
// carries no identity key, only (id, ip, port).
package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"math/big"
	"net"
	"sync"
	"time"

	quic "github.com/quic-go/quic-go"
	"go.uber.org/zap"
)

// MaxMessageBytes bounds both directions of a single RPC stream.
const MaxMessageBytes = 1024

const alpn = "kadnet-dht"

func generateTLSConfig() (*tls.Config, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{alpn},
		Certificates: []tls.Certificate{
			{Certificate: [][]byte{der}, PrivateKey: priv},
		},
	}, nil
}

func quicConfig() *quic.Config {
	return &quic.Config{MaxIdleTimeout: 3 * time.Minute}
}

// Handler processes one RPC request body and returns the reply body to
// write back, or an error to simply close the stream without a reply
// (the spec's TransportError/DecodeError/ProtocolError policy of
// swallowing malformed input is implemented by the caller, not here —
// this just reports the error up).
type Handler func(req []byte) (reply []byte, err error)

// Server accepts QUIC connections on one UDP address and dispatches
// every inbound stream to Handler.
type Server struct {
	addr    string
	handler Handler
	log     *zap.SugaredLogger
}

// NewServer builds a Server; call ListenAndServe to start accepting.
func NewServer(addr string, handler Handler, log *zap.SugaredLogger) *Server {
	return &Server{addr: addr, handler: handler, log: log}
}

// ListenAndServe binds the UDP socket and blocks accepting connections
// until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return fmt.Errorf("transport: resolve %s: %w", s.addr, err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", s.addr, err)
	}

	tlsConf, err := generateTLSConfig()
	if err != nil {
		return fmt.Errorf("transport: tls config: %w", err)
	}

	listener, err := quic.Listen(udpConn, tlsConf, quicConfig())
	if err != nil {
		return fmt.Errorf("transport: quic listen: %w", err)
	}
	defer listener.Close()

	if s.log != nil {
		s.log.Infow("listening", "addr", s.addr)
	}

	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if s.log != nil {
				s.log.Warnw("accept error", "err", err)
			}
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn *quic.Conn) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go s.handleStream(stream)
	}
}

func (s *Server) handleStream(stream *quic.Stream) {
	defer stream.Close()

	data, err := io.ReadAll(io.LimitReader(stream, MaxMessageBytes))
	if err != nil {
		if s.log != nil {
			s.log.Debugw("read request failed", "err", err)
		}
		return
	}

	reply, err := s.handler(data)
	if err != nil {
		if s.log != nil {
			s.log.Debugw("handler error", "err", err)
		}
		return
	}
	if len(reply) > 0 {
		if _, err := stream.Write(reply); err != nil && s.log != nil {
			s.log.Debugw("write reply failed", "err", err)
		}
	}
}

// Pool caches QUIC connections by remote address and issues one
// request/reply RPC per stream, grounded on the base's
// PeerManager.getConn reuse-or-dial shape.
type Pool struct {
	mu      sync.Mutex
	conns   map[string]*quic.Conn
	tlsConf *tls.Config
}

// NewPool creates an empty connection pool.
func NewPool() (*Pool, error) {
	tlsConf, err := generateTLSConfig()
	if err != nil {
		return nil, err
	}
	return &Pool{conns: make(map[string]*quic.Conn), tlsConf: tlsConf}, nil
}

func (p *Pool) getConn(ctx context.Context, addr string) (*quic.Conn, error) {
	p.mu.Lock()
	conn := p.conns[addr]
	p.mu.Unlock()
	if conn != nil && conn.Context().Err() == nil {
		return conn, nil
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	udpConn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, err
	}

	newConn, err := quic.Dial(ctx, udpConn, udpAddr, p.tlsConf, quicConfig())
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.conns[addr] = newConn
	p.mu.Unlock()
	return newConn, nil
}

// Call issues one request/reply RPC to addr: dial-or-reuse a
// connection, open a fresh bidirectional stream, write req, close the
// write side so the peer sees EOF, then read its reply up to
// MaxMessageBytes.
func (p *Pool) Call(ctx context.Context, addr string, req []byte) ([]byte, error) {
	conn, err := p.getConn(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: open stream to %s: %w", addr, err)
	}

	if _, err := stream.Write(req); err != nil {
		return nil, fmt.Errorf("transport: write to %s: %w", addr, err)
	}
	if err := stream.Close(); err != nil {
		return nil, fmt.Errorf("transport: close write to %s: %w", addr, err)
	}

	reply, err := io.ReadAll(io.LimitReader(stream, MaxMessageBytes))
	if err != nil {
		return nil, fmt.Errorf("transport: read reply from %s: %w", addr, err)
	}
	return reply, nil
}
