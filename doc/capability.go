package doc

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"

	"github.com/kompoti121/kompoti/blob"
)

// Mode distinguishes the two capability kinds.
type Mode uint8

const (
	// ModeWrite holds the document's signing seed: its bearer can mint
	// entries the whole replication set accepts.
	ModeWrite Mode = 1
	// ModeRead holds only the document's public key: enough to locate the
	// document, verify every entry and replicate, never to write.
	ModeRead Mode = 2
)

func (m Mode) String() string {
	switch m {
	case ModeWrite:
		return "write"
	case ModeRead:
		return "read"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// KeySize is the size of the capability key material for either mode.
const KeySize = 32

// Capability is the sole access-control primitive. For ModeWrite, Key is
// the document's Ed25519 seed; for ModeRead it is the document's public
// key. Possession of the (unguessable) key is the authorization.
type Capability struct {
	Mode Mode
	Key  [KeySize]byte
}

var errBadMode = errors.New("doc: unknown capability mode")

// NewWriteCapability mints a fresh document identity from r.
func NewWriteCapability(r io.Reader) (Capability, error) {
	var c Capability
	c.Mode = ModeWrite
	if _, err := io.ReadFull(r, c.Key[:]); err != nil {
		return Capability{}, fmt.Errorf("generate document seed: %w", err)
	}
	return c, nil
}

// CapabilityFromKey reconstructs a capability from stored key material.
func CapabilityFromKey(mode Mode, key []byte) (Capability, error) {
	if mode != ModeWrite && mode != ModeRead {
		return Capability{}, errBadMode
	}
	if len(key) != KeySize {
		return Capability{}, fmt.Errorf("doc: capability key must be %d bytes, got %d", KeySize, len(key))
	}
	var c Capability
	c.Mode = mode
	copy(c.Key[:], key)
	return c, nil
}

// CanWrite reports whether the capability authorizes minting entries.
func (c Capability) CanWrite() bool { return c.Mode == ModeWrite }

// PublicKey returns the document's Ed25519 public key for either mode.
func (c Capability) PublicKey() ed25519.PublicKey {
	if c.Mode == ModeWrite {
		priv := ed25519.NewKeyFromSeed(c.Key[:])
		return priv.Public().(ed25519.PublicKey)
	}
	return ed25519.PublicKey(append([]byte(nil), c.Key[:]...))
}

// DocID is the network-wide unique document identifier: the CID of the
// document public key. Identical for the write and read capability of the
// same document.
func (c Capability) DocID() (cid.Cid, error) {
	return blob.Sum(c.PublicKey())
}

// Read returns the distributable read-only downgrade of the capability.
func (c Capability) Read() Capability {
	if c.Mode == ModeRead {
		return c
	}
	var r Capability
	r.Mode = ModeRead
	copy(r.Key[:], c.PublicKey())
	return r
}

// signer returns the document private key; only valid for ModeWrite.
func (c Capability) signer() (ed25519.PrivateKey, error) {
	if !c.CanWrite() {
		return nil, ErrReadOnly
	}
	return ed25519.NewKeyFromSeed(c.Key[:]), nil
}
