package doc

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ipfs/go-cid"
	_ "modernc.org/sqlite"

	"github.com/kompoti121/kompoti/blob"
	"github.com/kompoti121/kompoti/keys"
)

// Store persists documents, their capabilities and their entries in SQLite,
// with entry values content-addressed into a blob store. All local writes
// and remote merges are serialized through the store, so concurrent callers
// never observe a partially applied entry.
type Store struct {
	db    *sql.DB
	blobs blob.Store
	log   *slog.Logger
	hub   *hub

	// mu serializes the read-compare-write of the merge path.
	mu sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	doc_id     TEXT PRIMARY KEY,
	mode       INTEGER NOT NULL,
	cap_key    BLOB NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	doc_id      TEXT NOT NULL,
	key         BLOB NOT NULL,
	author      BLOB NOT NULL,
	timestamp   INTEGER NOT NULL,
	content_cid TEXT NOT NULL,
	content_len INTEGER NOT NULL,
	author_sig  BLOB NOT NULL,
	doc_sig     BLOB NOT NULL,
	PRIMARY KEY (doc_id, key)
);
CREATE TABLE IF NOT EXISTS author_clocks (
	doc_id         TEXT NOT NULL,
	author         BLOB NOT NULL,
	last_timestamp INTEGER NOT NULL,
	PRIMARY KEY (doc_id, author)
);
`

// Open initializes or connects to the document database and applies the
// schema.
func Open(path string, blobs blob.Store, logger *slog.Logger) (*Store, error) {
	if blobs == nil {
		return nil, errors.New("doc: blob store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, blobs: blobs, log: logger, hub: newHub()}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Blobs exposes the store's blob backend.
func (s *Store) Blobs() blob.Store { return s.blobs }

// CreateDocument mints a new document and stores its write capability.
func (s *Store) CreateDocument(ctx context.Context) (Capability, error) {
	cap, err := NewWriteCapability(rand.Reader)
	if err != nil {
		return Capability{}, err
	}
	if err := s.insertCapability(ctx, cap); err != nil {
		return Capability{}, err
	}
	return cap, nil
}

// ImportCapability registers a capability for a document, typically a read
// capability carried by a ticket. Importing an already-known document is a
// no-op; an import never downgrades an existing write capability.
func (s *Store) ImportCapability(ctx context.Context, cap Capability) error {
	return s.insertCapability(ctx, cap)
}

func (s *Store) insertCapability(ctx context.Context, cap Capability) error {
	docID, err := cap.DocID()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO documents (doc_id, mode, cap_key, created_at) VALUES (?, ?, ?, ?)`,
		docID.String(), int(cap.Mode), cap.Key[:], time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert capability: %w", err)
	}
	return nil
}

// Capability returns the locally stored capability for a document id.
func (s *Store) Capability(ctx context.Context, docID cid.Cid) (Capability, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT mode, cap_key FROM documents WHERE doc_id = ?`, docID.String())
	var mode int
	var key []byte
	if err := row.Scan(&mode, &key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Capability{}, ErrNotFound
		}
		return Capability{}, fmt.Errorf("load capability: %w", err)
	}
	return CapabilityFromKey(Mode(mode), key)
}

// OpenOrCreateWritable implements the publisher's idempotence guard: reuse
// the single locally-known writable document, create one if none exists,
// and refuse to choose when several exist.
func (s *Store) OpenOrCreateWritable(ctx context.Context) (Capability, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cap_key FROM documents WHERE mode = ? ORDER BY created_at`, int(ModeWrite))
	if err != nil {
		return Capability{}, fmt.Errorf("scan writable documents: %w", err)
	}
	defer rows.Close()

	var caps []Capability
	for rows.Next() {
		var key []byte
		if err := rows.Scan(&key); err != nil {
			return Capability{}, fmt.Errorf("scan writable documents: %w", err)
		}
		cap, err := CapabilityFromKey(ModeWrite, key)
		if err != nil {
			return Capability{}, err
		}
		caps = append(caps, cap)
	}
	if err := rows.Err(); err != nil {
		return Capability{}, fmt.Errorf("scan writable documents: %w", err)
	}

	switch len(caps) {
	case 0:
		cap, err := s.CreateDocument(ctx)
		if err != nil {
			return Capability{}, err
		}
		docID, _ := cap.DocID()
		s.log.Info("created new document", "doc", docID.String())
		return cap, nil
	case 1:
		docID, _ := caps[0].DocID()
		s.log.Info("reusing existing document", "doc", docID.String())
		return caps[0], nil
	default:
		return Capability{}, fmt.Errorf("%w: %d candidates", ErrAmbiguousDocuments, len(caps))
	}
}

// Set stamps, signs, stores and publishes a new entry for key. The write is
// visible to local readers immediately; remote visibility follows sync
// propagation.
func (s *Store) Set(ctx context.Context, cap Capability, author *keys.Identity, key, value []byte) (*Entry, error) {
	if !cap.CanWrite() {
		return nil, ErrReadOnly
	}
	docID, err := cap.DocID()
	if err != nil {
		return nil, err
	}
	contentID, err := s.blobs.Put(value)
	if err != nil {
		return nil, fmt.Errorf("store content: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts, err := s.nextTimestamp(ctx, docID, author.Public())
	if err != nil {
		return nil, err
	}
	e := &Entry{
		Doc:        docID,
		Key:        append([]byte(nil), key...),
		Author:     append([]byte(nil), author.Public()...),
		Timestamp:  ts,
		Content:    contentID,
		ContentLen: uint64(len(value)),
	}
	if err := e.Sign(author, cap); err != nil {
		return nil, err
	}
	if _, err := s.applyLocked(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// ApplyRemote verifies and merges an entry received from a peer. Content
// may be nil when the bytes are already present in the blob store. Returns
// whether the entry superseded the local state; a false return with nil
// error means the local entry already won (expected during reconciliation,
// not an error).
func (s *Store) ApplyRemote(ctx context.Context, e *Entry, content []byte) (bool, error) {
	cap, err := s.Capability(ctx, e.Doc)
	if err != nil {
		return false, fmt.Errorf("apply remote entry: %w", err)
	}
	if err := e.Verify(cap); err != nil {
		return false, err
	}
	if content != nil {
		if uint64(len(content)) != e.ContentLen {
			return false, fmt.Errorf("%w: content length %d, entry says %d", ErrBadEntry, len(content), e.ContentLen)
		}
		id, err := s.blobs.Put(content)
		if err != nil {
			return false, fmt.Errorf("store remote content: %w", err)
		}
		if id != e.Content {
			return false, fmt.Errorf("%w: content hashes to %s, entry says %s", ErrBadEntry, id, e.Content)
		}
	} else if !s.blobs.Has(e.Content) {
		return false, fmt.Errorf("apply remote entry: %w: content %s", blob.ErrNotFound, e.Content)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(ctx, e)
}

// applyLocked runs the LWW merge under s.mu and notifies watchers when the
// entry lands.
func (s *Store) applyLocked(ctx context.Context, e *Entry) (bool, error) {
	current, err := s.getLocked(ctx, e.Doc, e.Key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if !Supersedes(e, current) {
		return false, nil
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO entries
		 (doc_id, key, author, timestamp, content_cid, content_len, author_sig, doc_sig)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Doc.String(), e.Key, e.Author, int64(e.Timestamp),
		e.Content.String(), int64(e.ContentLen), e.AuthorSig, e.DocSig,
	)
	if err != nil {
		return false, fmt.Errorf("store entry: %w", err)
	}
	s.hub.publish(e)
	return true, nil
}

// Get returns the current entry for key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, docID cid.Cid, key []byte) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(ctx, docID, key)
}

func (s *Store) getLocked(ctx context.Context, docID cid.Cid, key []byte) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT author, timestamp, content_cid, content_len, author_sig, doc_sig
		 FROM entries WHERE doc_id = ? AND key = ?`,
		docID.String(), key)
	e := &Entry{Doc: docID, Key: append([]byte(nil), key...)}
	var ts, contentLen int64
	var contentCID string
	if err := row.Scan(&e.Author, &ts, &contentCID, &contentLen, &e.AuthorSig, &e.DocSig); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	e.Timestamp = uint64(ts)
	e.ContentLen = uint64(contentLen)
	id, err := cid.Decode(contentCID)
	if err != nil {
		return nil, fmt.Errorf("get entry: decode content cid: %w", err)
	}
	e.Content = id
	return e, nil
}

// Entries returns all current entries of a document, ordered by key.
func (s *Store) Entries(ctx context.Context, docID cid.Cid) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, author, timestamp, content_cid, content_len, author_sig, doc_sig
		 FROM entries WHERE doc_id = ? ORDER BY key`,
		docID.String())
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e := &Entry{Doc: docID}
		var ts, contentLen int64
		var contentCID string
		if err := rows.Scan(&e.Key, &e.Author, &ts, &contentCID, &contentLen, &e.AuthorSig, &e.DocSig); err != nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}
		e.Timestamp = uint64(ts)
		e.ContentLen = uint64(contentLen)
		id, err := cid.Decode(contentCID)
		if err != nil {
			return nil, fmt.Errorf("list entries: decode content cid: %w", err)
		}
		e.Content = id
		out = append(out, e)
	}
	return out, rows.Err()
}

// Content resolves an entry's value bytes from the blob store.
func (s *Store) Content(e *Entry) ([]byte, error) {
	return s.blobs.Get(e.Content)
}

// Watch returns a channel of entries committed to docID after the call,
// plus a cancel function releasing the subscription. The channel is closed
// if the consumer falls behind the writers; the consumer must then
// resubscribe and re-read Entries to catch back up.
func (s *Store) Watch(docID cid.Cid) (<-chan *Entry, func()) {
	return s.hub.subscribe(docID)
}

// nextTimestamp advances the per-(document, author) logical clock. The
// clock follows wall time but never moves backwards, so one author's writes
// keep strictly increasing timestamps even across a system clock regression.
func (s *Store) nextTimestamp(ctx context.Context, docID cid.Cid, author []byte) (uint64, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT last_timestamp FROM author_clocks WHERE doc_id = ? AND author = ?`,
		docID.String(), author)
	var last int64
	if err := row.Scan(&last); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("load author clock: %w", err)
	}

	ts := time.Now().UnixMicro()
	if ts <= last {
		ts = last + 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO author_clocks (doc_id, author, last_timestamp) VALUES (?, ?, ?)`,
		docID.String(), author, ts)
	if err != nil {
		return 0, fmt.Errorf("advance author clock: %w", err)
	}
	return uint64(ts), nil
}
