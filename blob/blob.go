// Package blob provides the content-addressed large-object storage used for
// catalog entry values.
package blob

import (
	"errors"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var (
	ErrNotFound    = errors.New("blob: not found")
	ErrInvalidCID  = errors.New("blob: invalid cid")
	ErrCIDMismatch = errors.New("blob: cid mismatch")
	ErrImmutable   = errors.New("blob: immutable object mismatch")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Getter is the read side of a blob store. Remote peers expose only this.
type Getter interface {
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}

// Store is a minimal content-addressable blob store.
//
// Contract:
// - Put MUST be idempotent.
// - Stored objects MUST be immutable.
// - CIDs are derived from the bytes written.
// - Get MUST return ErrNotFound when the CID is absent.
type Store interface {
	Getter
	Put(bytes []byte) (cid.Cid, error)
}

// Sum returns the CIDv1 (raw multicodec, sha2-256 multihash) for data.
// Every content id in the system is derived through this one function.
func Sum(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}
