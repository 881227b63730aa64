// Package rpcwire implements the DHT RPC wire format: a fixed 4-byte
// ASCII opcode tag followed by an opcode-specific body, decimal (not
// hex) identifiers, and JSON reply bodies for the FIND_* operations.
//
// This codec has no direct teacher ancestor — the base module's rpc
// package is a JSON-enveloped request/response layer with no ASCII
// opcode tags at all. It is grounded instead on
// original_source/kademlia_dht.py's KademliaProtocol for the literal
// opcode framing, styled after rpc/rpc.go's Marshal/Unmarshal naming for
// the JSON body types.
package rpcwire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/parekh/kadnet/kid"
)

// Opcode is the fixed 4-byte tag every request starts with.
type Opcode string

const (
	OpPing  Opcode = "PING"
	OpStore Opcode = "STOR"
	OpFind  Opcode = "FIND"
)

// Exact reply bytes for the fixed-text replies.
const (
	PongReply = "PONG"
	OkReply   = "OK"
)

// Sub-operations dispatched after the FIND tag.
const (
	SubFindNode  = "NODE"
	SubFindValue = "VALUE"
)

// MaxRequestBytes and MaxReplyBytes record the per-message limit; the
// codec itself does not enforce them. The transport bounds every read to
// the same 1024 bytes (transport.MaxMessageBytes), and requests or
// replies longer than that are truncated at the boundary (spec §9:
// intentional, no length prefix).
const (
	MaxRequestBytes = 1024
	MaxReplyBytes   = 1024
)

// NodeInfo is the JSON-wire shape of a contact.
type NodeInfo struct {
	ID   string `json:"id"`
	IP   string `json:"ip"`
	Port uint16 `json:"port"`
}

// FindNodeReply is the JSON body of a FIND_NODE reply.
type FindNodeReply struct {
	Nodes []NodeInfo `json:"nodes"`
}

// FindValueReply is the JSON body of a FIND_VALUE reply: either a hit
// (Value set) or a miss (Nodes set), never both.
type FindValueReply struct {
	Value *string    `json:"value,omitempty"`
	Nodes []NodeInfo `json:"nodes,omitempty"`
}

// Request is a parsed incoming request.
type Request struct {
	Op    Opcode
	Sub   string // set only when Op == OpFind
	Key   kid.ID // STOR key, or FIND_NODE/FIND_VALUE target/key
	Value string // STOR value only
}

// EncodePing builds a PING request.
func EncodePing() []byte {
	return []byte(OpPing)
}

// EncodeStore builds a STOR request: "STOR <key> <value>".
func EncodeStore(key kid.ID, value string) []byte {
	return []byte(fmt.Sprintf("%s %s %s", OpStore, key.Decimal(), value))
}

// EncodeFindNode builds a "FIND_NODE <target>" request.
func EncodeFindNode(target kid.ID) []byte {
	return []byte(fmt.Sprintf("%s_NODE %s", OpFind, target.Decimal()))
}

// EncodeFindValue builds a "FIND_VALUE <key>" request.
func EncodeFindValue(key kid.ID) []byte {
	return []byte(fmt.Sprintf("%s_VALUE %s", OpFind, key.Decimal()))
}

// ParseRequest decodes a raw request buffer (already bounded to
// MaxRequestBytes by the caller) into a Request. The FIND dispatch
// matches the full sub-op keyword after the tag, not the ambiguous
// fifth-through-eighth byte window the original source reads (see
// SPEC_FULL.md §4.D and DESIGN.md).
func ParseRequest(data []byte) (*Request, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("rpcwire: request too short (%d bytes)", len(data))
	}

	tag := Opcode(data[:4])
	switch tag {
	case OpPing:
		return &Request{Op: OpPing}, nil

	case OpStore:
		rest := bytes.TrimPrefix(data[4:], []byte(" "))
		parts := bytes.SplitN(rest, []byte(" "), 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("rpcwire: malformed STOR body")
		}
		key, err := kid.ParseDecimal(string(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("rpcwire: STOR key: %w", err)
		}
		return &Request{Op: OpStore, Key: key, Value: string(parts[1])}, nil

	case OpFind:
		rest := data[4:]
		switch {
		case bytes.HasPrefix(rest, []byte("_NODE ")):
			arg := bytes.TrimSpace(rest[len("_NODE "):])
			target, err := kid.ParseDecimal(string(arg))
			if err != nil {
				return nil, fmt.Errorf("rpcwire: FIND_NODE target: %w", err)
			}
			return &Request{Op: OpFind, Sub: SubFindNode, Key: target}, nil

		case bytes.HasPrefix(rest, []byte("_VALUE ")):
			arg := bytes.TrimSpace(rest[len("_VALUE "):])
			key, err := kid.ParseDecimal(string(arg))
			if err != nil {
				return nil, fmt.Errorf("rpcwire: FIND_VALUE key: %w", err)
			}
			return &Request{Op: OpFind, Sub: SubFindValue, Key: key}, nil

		default:
			return nil, fmt.Errorf("rpcwire: unknown FIND sub-op")
		}

	default:
		return nil, fmt.Errorf("rpcwire: unknown opcode %q", string(tag))
	}
}

// EncodeFindNodeReply marshals a FIND_NODE reply body.
func EncodeFindNodeReply(nodes []NodeInfo) ([]byte, error) {
	if nodes == nil {
		nodes = []NodeInfo{}
	}
	return json.Marshal(FindNodeReply{Nodes: nodes})
}

// DecodeFindNodeReply unmarshals a FIND_NODE reply body.
func DecodeFindNodeReply(data []byte) (*FindNodeReply, error) {
	var r FindNodeReply
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// EncodeFindValueReply marshals a FIND_VALUE reply body: value on hit,
// else the closest known nodes.
func EncodeFindValueReply(value *string, nodes []NodeInfo) ([]byte, error) {
	if value != nil {
		return json.Marshal(FindValueReply{Value: value})
	}
	if nodes == nil {
		nodes = []NodeInfo{}
	}
	return json.Marshal(FindValueReply{Nodes: nodes})
}

// DecodeFindValueReply unmarshals a FIND_VALUE reply body.
func DecodeFindValueReply(data []byte) (*FindValueReply, error) {
	var r FindValueReply
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
