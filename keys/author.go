package keys

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/ipfs/go-cid"
	"golang.org/x/crypto/hkdf"
)

// DeriveAuthor deterministically derives the author identity a node uses
// inside one document. The derivation binds the node secret to the document
// id, so the same node writing to two documents appears as two distinct
// authors while a restarted node always reproduces the same one.
func DeriveAuthor(node *Identity, docID cid.Cid) (*Identity, error) {
	kdf := hkdf.New(sha256.New, node.seed, docID.Bytes(), []byte("kompoti/author/v1"))
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(kdf, seed); err != nil {
		return nil, fmt.Errorf("derive author seed: %w", err)
	}
	return FromSeed(seed)
}

// LoadOrDeriveAuthor returns the persisted author identity at path,
// deriving and persisting it on first write. Re-importing the file on
// restart keeps the author stable even if the derivation inputs change.
func LoadOrDeriveAuthor(path string, node *Identity, docID cid.Cid) (*Identity, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		if len(b) != SeedSize {
			return nil, fmt.Errorf("%w: author file has %d bytes", ErrBadKeyFile, len(b))
		}
		return FromSeed(b)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read author file: %w", err)
	}

	author, err := DeriveAuthor(node, docID)
	if err != nil {
		return nil, err
	}
	if err := writeSeedFile(path, author.seed); err != nil {
		return nil, err
	}
	return author, nil
}
