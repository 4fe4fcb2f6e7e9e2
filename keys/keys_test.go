package keys

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

func TestLoadOrCreate_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret_key")

	first, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate(1): %v", err)
	}
	second, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate(2): %v", err)
	}
	if first.PublicID() != second.PublicID() {
		t.Fatalf("identities differ across loads: %s vs %s", first.PublicID(), second.PublicID())
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read key file: %v", err)
	}
	if len(b) != SeedSize {
		t.Fatalf("key file has %d bytes, want %d", len(b), SeedSize)
	}
}

func TestLoadOrCreate_RejectsWrongLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret_key")
	if err := os.WriteFile(path, []byte("short"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadOrCreate(path); err == nil {
		t.Fatalf("expected error for truncated key file")
	}
}

func TestImportSeedHex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret_key")
	seedHex := "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"

	if err := ImportSeedHex(path, seedHex); err != nil {
		t.Fatalf("ImportSeedHex: %v", err)
	}
	id, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate after import: %v", err)
	}

	want, err := ParseSeedHex(seedHex)
	if err != nil {
		t.Fatalf("ParseSeedHex: %v", err)
	}
	if !bytes.Equal(id.Seed(), want) {
		t.Fatalf("imported seed mismatch")
	}

	// A second import must not clobber the existing file.
	if err := ImportSeedHex(path, "00"); err != nil {
		t.Fatalf("ImportSeedHex over existing file: %v", err)
	}
}

func TestParseSeedHex_Rejects(t *testing.T) {
	for _, bad := range []string{"", "zz", "dead", "0x00"} {
		if _, err := ParseSeedHex(bad); err == nil {
			t.Fatalf("ParseSeedHex(%q) succeeded, want error", bad)
		}
	}
}

func TestSignVerify(t *testing.T) {
	id, err := FromSeed(bytes.Repeat([]byte{0x5A}, SeedSize))
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	msg := []byte("entry scope bytes")
	sig := id.Sign(msg)
	if !Verify(id.Public(), msg, sig) {
		t.Fatalf("signature did not verify")
	}
	if Verify(id.Public(), []byte("other"), sig) {
		t.Fatalf("signature verified for wrong message")
	}
}

func TestDeriveAuthor_Stable(t *testing.T) {
	node, err := FromSeed(bytes.Repeat([]byte{7}, SeedSize))
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	docID := testCID(t, []byte("doc"))

	a1, err := DeriveAuthor(node, docID)
	if err != nil {
		t.Fatalf("DeriveAuthor(1): %v", err)
	}
	a2, err := DeriveAuthor(node, docID)
	if err != nil {
		t.Fatalf("DeriveAuthor(2): %v", err)
	}
	if a1.PublicID() != a2.PublicID() {
		t.Fatalf("author derivation not deterministic")
	}

	other, err := DeriveAuthor(node, testCID(t, []byte("other doc")))
	if err != nil {
		t.Fatalf("DeriveAuthor(other): %v", err)
	}
	if other.PublicID() == a1.PublicID() {
		t.Fatalf("distinct documents must yield distinct authors")
	}
}

func TestLoadOrDeriveAuthor_PersistsOnce(t *testing.T) {
	dir := t.TempDir()
	node, err := FromSeed(bytes.Repeat([]byte{9}, SeedSize))
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	docID := testCID(t, []byte("doc"))
	path := filepath.Join(dir, "author_key")

	a1, err := LoadOrDeriveAuthor(path, node, docID)
	if err != nil {
		t.Fatalf("LoadOrDeriveAuthor(1): %v", err)
	}
	a2, err := LoadOrDeriveAuthor(path, node, docID)
	if err != nil {
		t.Fatalf("LoadOrDeriveAuthor(2): %v", err)
	}
	if a1.PublicID() != a2.PublicID() {
		t.Fatalf("author changed across restarts")
	}
}

func testCID(t *testing.T, data []byte) cid.Cid {
	t.Helper()
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		t.Fatalf("multihash.Sum: %v", err)
	}
	return cid.NewCidV1(cid.Raw, sum)
}
