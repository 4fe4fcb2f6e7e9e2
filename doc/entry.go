package doc

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/kompoti121/kompoti/keys"
)

// Entry is one key/value record inside a document. The value bytes live in
// the blob store; the entry carries their CID and length. Every entry is
// signed twice over the same canonical scope: by the author key (identifies
// the writer, breaks merge ties) and by the document key (proves the writer
// held the write capability).
type Entry struct {
	Doc        cid.Cid
	Key        []byte
	Author     []byte // Ed25519 public key of the author
	Timestamp  uint64 // logical clock, microsecond granularity
	Content    cid.Cid
	ContentLen uint64
	AuthorSig  []byte
	DocSig     []byte
}

// Wire format of the canonical entry encoding. The scope bytes (everything
// through ContentLen) are the exact input to both signatures, so encoding
// must stay byte-exact across versions.
var entryMagic = [4]byte{'k', 'm', 'p', 'e'}

const entryVersion = 1

// SignScope returns the canonical bytes both signatures cover.
func (e *Entry) SignScope() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(entryMagic[:])
	buf.WriteByte(entryVersion)
	if err := writeBytes16(&buf, e.Doc.Bytes()); err != nil {
		return nil, fmt.Errorf("encode doc id: %w", err)
	}
	if err := writeBytes32(&buf, e.Key); err != nil {
		return nil, fmt.Errorf("encode key: %w", err)
	}
	if len(e.Author) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("doc: author key must be %d bytes, got %d", ed25519.PublicKeySize, len(e.Author))
	}
	buf.Write(e.Author)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], e.Timestamp)
	buf.Write(ts[:])
	if err := writeBytes16(&buf, e.Content.Bytes()); err != nil {
		return nil, fmt.Errorf("encode content id: %w", err)
	}
	var cl [8]byte
	binary.BigEndian.PutUint64(cl[:], e.ContentLen)
	buf.Write(cl[:])
	return buf.Bytes(), nil
}

// Sign stamps both signatures using the author identity and the document's
// write capability.
func (e *Entry) Sign(author *keys.Identity, cap Capability) error {
	scope, err := e.SignScope()
	if err != nil {
		return err
	}
	priv, err := cap.signer()
	if err != nil {
		return err
	}
	e.AuthorSig = author.Sign(scope)
	docDigest := digest(scope)
	e.DocSig = ed25519.Sign(priv, docDigest)
	return nil
}

// Verify checks both signatures against the document public key carried by
// a (read or write) capability, and that the entry belongs to that
// document.
func (e *Entry) Verify(cap Capability) error {
	docID, err := cap.DocID()
	if err != nil {
		return err
	}
	if !e.Doc.Defined() || e.Doc != docID {
		return fmt.Errorf("%w: entry for foreign document %s", ErrBadEntry, e.Doc)
	}
	scope, err := e.SignScope()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadEntry, err)
	}
	if !keys.Verify(ed25519.PublicKey(e.Author), scope, e.AuthorSig) {
		return fmt.Errorf("%w: author signature", ErrBadEntry)
	}
	if !ed25519.Verify(cap.PublicKey(), digest(scope), e.DocSig) {
		return fmt.Errorf("%w: document signature", ErrBadEntry)
	}
	return nil
}

// Encode renders the entry to its canonical wire form.
func (e *Entry) Encode() ([]byte, error) {
	scope, err := e.SignScope()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(scope)
	if err := writeBytes16(&buf, e.AuthorSig); err != nil {
		return nil, fmt.Errorf("encode author sig: %w", err)
	}
	if err := writeBytes16(&buf, e.DocSig); err != nil {
		return nil, fmt.Errorf("encode doc sig: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeEntry parses a canonical wire entry. It rejects wrong magic,
// unknown versions, truncation and trailing bytes.
func DecodeEntry(b []byte) (*Entry, error) {
	r := &reader{buf: b}
	var magic [4]byte
	if err := r.read(magic[:]); err != nil {
		return nil, fmt.Errorf("doc: decode entry: %w", err)
	}
	if magic != entryMagic {
		return nil, fmt.Errorf("doc: decode entry: bad magic %q", magic[:])
	}
	version, err := r.byte()
	if err != nil {
		return nil, fmt.Errorf("doc: decode entry: %w", err)
	}
	if version != entryVersion {
		return nil, fmt.Errorf("doc: decode entry: unsupported version %d", version)
	}

	e := &Entry{}
	docBytes, err := r.bytes16()
	if err != nil {
		return nil, fmt.Errorf("doc: decode doc id: %w", err)
	}
	if e.Doc, err = cid.Cast(docBytes); err != nil {
		return nil, fmt.Errorf("doc: decode doc id: %w", err)
	}
	if e.Key, err = r.bytes32(); err != nil {
		return nil, fmt.Errorf("doc: decode key: %w", err)
	}
	e.Author = make([]byte, ed25519.PublicKeySize)
	if err := r.read(e.Author); err != nil {
		return nil, fmt.Errorf("doc: decode author: %w", err)
	}
	var ts [8]byte
	if err := r.read(ts[:]); err != nil {
		return nil, fmt.Errorf("doc: decode timestamp: %w", err)
	}
	e.Timestamp = binary.BigEndian.Uint64(ts[:])
	contentBytes, err := r.bytes16()
	if err != nil {
		return nil, fmt.Errorf("doc: decode content id: %w", err)
	}
	if e.Content, err = cid.Cast(contentBytes); err != nil {
		return nil, fmt.Errorf("doc: decode content id: %w", err)
	}
	var cl [8]byte
	if err := r.read(cl[:]); err != nil {
		return nil, fmt.Errorf("doc: decode content length: %w", err)
	}
	e.ContentLen = binary.BigEndian.Uint64(cl[:])
	if e.AuthorSig, err = r.bytes16(); err != nil {
		return nil, fmt.Errorf("doc: decode author sig: %w", err)
	}
	if e.DocSig, err = r.bytes16(); err != nil {
		return nil, fmt.Errorf("doc: decode doc sig: %w", err)
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("doc: decode entry: %d trailing bytes", r.remaining())
	}
	return e, nil
}

// digest matches the author signature helper in the keys package: both
// signatures cover sha256(scope).
func digest(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

func writeBytes16(buf *bytes.Buffer, b []byte) error {
	if len(b) > 0xFFFF {
		return fmt.Errorf("field too long: %d bytes", len(b))
	}
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(b)))
	buf.Write(l[:])
	buf.Write(b)
	return nil
}

func writeBytes32(buf *bytes.Buffer, b []byte) error {
	if len(b) > 0xFFFFFFFF {
		return fmt.Errorf("field too long: %d bytes", len(b))
	}
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(b)))
	buf.Write(l[:])
	buf.Write(b)
	return nil
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) read(dst []byte) error {
	if r.remaining() < len(dst) {
		return fmt.Errorf("truncated: need %d bytes, have %d", len(dst), r.remaining())
	}
	copy(dst, r.buf[r.off:])
	r.off += len(dst)
	return nil
}

func (r *reader) byte() (byte, error) {
	var b [1]byte
	if err := r.read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) bytes16() ([]byte, error) {
	var l [2]byte
	if err := r.read(l[:]); err != nil {
		return nil, err
	}
	out := make([]byte, binary.BigEndian.Uint16(l[:]))
	if err := r.read(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reader) bytes32() ([]byte, error) {
	var l [4]byte
	if err := r.read(l[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(l[:])
	if uint64(n) > uint64(r.remaining()) {
		return nil, fmt.Errorf("truncated: need %d bytes, have %d", n, r.remaining())
	}
	out := make([]byte, n)
	if err := r.read(out); err != nil {
		return nil, err
	}
	return out, nil
}
