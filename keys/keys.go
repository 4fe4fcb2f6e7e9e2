package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SeedSize is the exact size of a persisted secret key file, in bytes.
const SeedSize = ed25519.SeedSize

// ErrBadKeyFile reports a key file whose contents are not exactly 32 raw
// bytes. The file is the credential; a truncated or otherwise mangled file
// is never silently reinterpreted.
var ErrBadKeyFile = errors.New("keys: key file must contain exactly 32 raw bytes")

// Identity is an Ed25519 keypair held by one process. The derived public
// key doubles as the node's network identity and, for authors, as the
// entry-stamping identity.
type Identity struct {
	seed []byte
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// FromSeed builds an Identity from a 32-byte seed.
func FromSeed(seed []byte) (*Identity, error) {
	if len(seed) != SeedSize {
		return nil, ErrBadKeyFile
	}
	s := append([]byte(nil), seed...)
	priv := ed25519.NewKeyFromSeed(s)
	return &Identity{
		seed: s,
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// LoadOrCreate returns the identity persisted at path, generating and
// persisting a fresh one on first use. The file holds exactly 32 raw bytes;
// any other length fails with ErrBadKeyFile.
func LoadOrCreate(path string) (*Identity, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		if len(b) != SeedSize {
			return nil, fmt.Errorf("%w: %s has %d bytes", ErrBadKeyFile, filepath.Base(path), len(b))
		}
		return FromSeed(b)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}
	if err := writeSeedFile(path, seed); err != nil {
		return nil, err
	}
	return FromSeed(seed)
}

// ImportSeedHex writes a hex-provided seed to path as raw bytes, unless a
// key file already exists there. Used to carry a secret distributed through
// the environment into the on-disk layout.
func ImportSeedHex(path, seedHex string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	seed, err := ParseSeedHex(seedHex)
	if err != nil {
		return err
	}
	return writeSeedFile(path, seed)
}

// ParseSeedHex decodes a 64-hex-char seed, tolerating surrounding
// whitespace and an optional 0x prefix.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("decode seed hex: %w", err)
	}
	if len(data) != SeedSize {
		return nil, fmt.Errorf("%w: decoded %d bytes", ErrBadKeyFile, len(data))
	}
	return data, nil
}

func writeSeedFile(path string, seed []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(seed); err != nil {
		return err
	}
	return f.Close()
}

// Public returns the Ed25519 public key.
func (id *Identity) Public() ed25519.PublicKey {
	return id.pub
}

// PublicID renders the public key as "ed25519:" + base64(pubkey).
func (id *Identity) PublicID() string {
	return "ed25519:" + base64.StdEncoding.EncodeToString(id.pub)
}

// Seed returns a copy of the 32-byte seed.
func (id *Identity) Seed() []byte {
	return append([]byte(nil), id.seed...)
}

// Sign returns an Ed25519 signature over sha256(message).
func (id *Identity) Sign(message []byte) []byte {
	digest := sha256.Sum256(message)
	return ed25519.Sign(id.priv, digest[:])
}

// Verify checks an Ed25519 signature over sha256(message).
func Verify(pub ed25519.PublicKey, message, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	digest := sha256.Sum256(message)
	return ed25519.Verify(pub, digest[:], sig)
}
