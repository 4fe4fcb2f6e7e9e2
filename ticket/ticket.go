// Package ticket encodes and parses the distributable join token: a
// capability plus the bootstrap addresses of peers already serving the
// document. The encoded form is a single copy-paste-safe string.
package ticket

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"

	"github.com/kompoti121/kompoti/doc"
)

// Kind is the literal tag every ticket string starts with, so a foreign or
// corrupted string fails parsing instead of being misread as key material.
const Kind = "kompoti"

// Version of the payload layout that follows the multibase prefix.
const Version = 1

const maxAddrs = 255

// Ticket bundles a capability with an ordered list of bootstrap peer
// addresses. Tickets are immutable once minted.
type Ticket struct {
	Cap   doc.Capability
	Addrs []string
}

// ParseError reports a malformed ticket string.
type ParseError struct {
	Reason string
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ticket: %s: %v", e.Reason, e.Cause)
	}
	return "ticket: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Cause }

func parseErr(reason string) error { return &ParseError{Reason: reason} }

// Encode renders the ticket to its canonical string form:
// Kind + multibase(base32, [version, mode, key, addresses]).
// Encoding is byte-exact deterministic: the same ticket always yields the
// same string.
func (t Ticket) Encode() (string, error) {
	if t.Cap.Mode != doc.ModeRead && t.Cap.Mode != doc.ModeWrite {
		return "", fmt.Errorf("ticket: cannot encode capability mode %v", t.Cap.Mode)
	}
	if len(t.Addrs) > maxAddrs {
		return "", fmt.Errorf("ticket: too many addresses: %d", len(t.Addrs))
	}

	var buf bytes.Buffer
	buf.WriteByte(Version)
	buf.WriteByte(byte(t.Cap.Mode))
	buf.Write(t.Cap.Key[:])
	buf.WriteByte(byte(len(t.Addrs)))
	for _, addr := range t.Addrs {
		if len(addr) > 0xFFFF {
			return "", fmt.Errorf("ticket: address too long: %d bytes", len(addr))
		}
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(addr)))
		buf.Write(l[:])
		buf.WriteString(addr)
	}

	encoded, err := multibase.Encode(multibase.Base32, buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("ticket: encode payload: %w", err)
	}
	return Kind + encoded, nil
}

// Decode parses a ticket string. Any alteration of the kind tag, version or
// payload fails with *ParseError; a malformed string is never reinterpreted
// as a different, valid capability.
func Decode(s string) (*Ticket, error) {
	if !strings.HasPrefix(s, Kind) {
		return nil, parseErr("missing kind tag")
	}
	_, payload, err := multibase.Decode(strings.TrimPrefix(s, Kind))
	if err != nil {
		return nil, &ParseError{Reason: "bad payload encoding", Cause: err}
	}

	// version(1) + mode(1) + key(32) + addr count(1)
	if len(payload) < 2+doc.KeySize+1 {
		return nil, parseErr("payload truncated")
	}
	if payload[0] != Version {
		return nil, &ParseError{Reason: fmt.Sprintf("unsupported version %d", payload[0])}
	}
	mode := doc.Mode(payload[1])
	cap, err := doc.CapabilityFromKey(mode, payload[2:2+doc.KeySize])
	if err != nil {
		return nil, &ParseError{Reason: "bad capability", Cause: err}
	}

	rest := payload[2+doc.KeySize:]
	count := int(rest[0])
	rest = rest[1:]
	addrs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if len(rest) < 2 {
			return nil, parseErr("address list truncated")
		}
		n := int(binary.BigEndian.Uint16(rest[:2]))
		rest = rest[2:]
		if len(rest) < n {
			return nil, parseErr("address list truncated")
		}
		addrs = append(addrs, string(rest[:n]))
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return nil, parseErr("trailing bytes after address list")
	}
	if len(addrs) == 0 {
		addrs = nil
	}
	return &Ticket{Cap: cap, Addrs: addrs}, nil
}
