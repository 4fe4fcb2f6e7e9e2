package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/ipfs/go-cid"

	"github.com/kompoti121/kompoti/blob"
	"github.com/kompoti121/kompoti/doc"
	"github.com/kompoti121/kompoti/keys"
)

type fixture struct {
	store  *doc.Store
	cap    doc.Capability
	docID  cid.Cid
	author *keys.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := doc.Open(filepath.Join(t.TempDir(), "docs.db"), blob.NewMemory(), slog.Default())
	if err != nil {
		t.Fatalf("doc.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cap, err := store.CreateDocument(context.Background())
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	docID, err := cap.DocID()
	if err != nil {
		t.Fatalf("DocID: %v", err)
	}
	author, err := keys.FromSeed(bytes.Repeat([]byte{0x21}, keys.SeedSize))
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	return &fixture{store: store, cap: cap, docID: docID, author: author}
}

func (f *fixture) ingest(t *testing.T, payload string) Report {
	t.Helper()
	report, err := Ingest(context.Background(), f.store, f.cap, f.author, []byte(payload), slog.Default())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	return report
}

func (f *fixture) record(t *testing.T, key string) *MovieRecord {
	t.Helper()
	e, err := f.store.Get(context.Background(), f.docID, []byte(key))
	if err != nil {
		t.Fatalf("Get(%s): %v", key, err)
	}
	content, err := f.store.Content(e)
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	var rec MovieRecord
	if err := json.Unmarshal(content, &rec); err != nil {
		t.Fatalf("unmarshal stored record: %v", err)
	}
	return &rec
}

func TestIngest_ListShape(t *testing.T) {
	f := newFixture(t)
	report := f.ingest(t, `{
		"yts_url": "https://yts.example",
		"movies": [
			{"yts_data":{"id":1,"imdb_code":"tt001","title":"A","year":2000}, "title":"A", "year":2000},
			{"yts_data":{"id":2,"imdb_code":"tt002","title":"B","year":2001}, "title":"B", "year":2001}
		]
	}`)
	if report.Accepted != 2 || report.Skipped != 0 {
		t.Fatalf("report = %+v, want 2 accepted / 0 skipped", report)
	}

	rec := f.record(t, "movie:tt001")
	if rec.Title != "A" || rec.Year != 2000 {
		t.Fatalf("stored record = %+v", rec)
	}

	// The sibling yts_url landed as the global config entry.
	e, err := f.store.Get(context.Background(), f.docID, []byte(GlobalYTSURLKey))
	if err != nil {
		t.Fatalf("Get(config): %v", err)
	}
	content, err := f.store.Content(e)
	if err != nil {
		t.Fatalf("Content(config): %v", err)
	}
	if string(content) != "https://yts.example" {
		t.Fatalf("global yts url = %q", content)
	}
}

func TestIngest_MapShapeOverwritesListShape(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, `{"movies":[{"yts_data":{"id":1,"imdb_code":"tt001","title":"A","year":2000}, "title":"A","year":2000}]}`)

	report := f.ingest(t, `{"tt001": {"title":"A","year":2024,"yts_data":{"id":1,"title":"A","year":2024}}}`)
	if report.Accepted != 1 {
		t.Fatalf("report = %+v, want 1 accepted", report)
	}

	// Exactly one record under movie:tt001, with the later ingestion's
	// fields (last writer wins).
	rec := f.record(t, "movie:tt001")
	if rec.Year != 2024 {
		t.Fatalf("year = %d, want 2024 from the later ingestion", rec.Year)
	}

	entries, err := f.store.Entries(context.Background(), f.docID)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	var movieKeys int
	for _, e := range entries {
		if bytes.HasPrefix(e.Key, []byte(KeyPrefix)) {
			movieKeys++
		}
	}
	if movieKeys != 1 {
		t.Fatalf("movie entries = %d, want exactly 1", movieKeys)
	}
}

func TestIngest_DatabaseWrapperShape(t *testing.T) {
	f := newFixture(t)
	report := f.ingest(t, `{
		"yts_url": "https://yts.lt",
		"database": {
			"tt003": {"title":"C","year":1984,"yts_data":{"id":3,"imdb_code":"tt003"}}
		}
	}`)
	if report.Accepted != 1 {
		t.Fatalf("report = %+v, want 1 accepted", report)
	}
	rec := f.record(t, "movie:tt003")
	if rec.Title != "C" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestIngest_SkipsRecordWithoutExternalID(t *testing.T) {
	f := newFixture(t)
	report := f.ingest(t, `{"movies":[{"yts_data":{"id":2,"title":"B","year":1999}}]}`)
	if report.Accepted != 0 || report.Skipped != 1 {
		t.Fatalf("report = %+v, want 0 accepted / 1 skipped", report)
	}
	entries, err := f.store.Entries(context.Background(), f.docID)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	for _, e := range entries {
		if bytes.HasPrefix(e.Key, []byte(KeyPrefix)) {
			t.Fatalf("record without an IMDb code was stored under %q", e.Key)
		}
	}
}

func TestIngest_LegacyRootImdbCode(t *testing.T) {
	f := newFixture(t)
	report := f.ingest(t, `{"movies":[{"title":"Old","imdb_code":"tt004"}]}`)
	if report.Accepted != 1 {
		t.Fatalf("report = %+v, want 1 accepted", report)
	}
	if rec := f.record(t, "movie:tt004"); rec.Title != "Old" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestIngest_SchemaError(t *testing.T) {
	f := newFixture(t)
	for _, payload := range []string{
		`[1,2,3]`,
		`"just a string"`,
		`{"yts_url":"https://yts.lt"}`,
		`not json at all`,
	} {
		_, err := Ingest(context.Background(), f.store, f.cap, f.author, []byte(payload), slog.Default())
		var se *SchemaError
		if !errors.As(err, &se) {
			t.Fatalf("Ingest(%q): got err=%v, want *SchemaError", payload, err)
		}
	}
}

func TestIngest_ReingestIsIdempotent(t *testing.T) {
	f := newFixture(t)
	payload := `{"movies":[{"yts_data":{"id":1,"imdb_code":"tt001","title":"A","year":2000},"title":"A","year":2000}]}`

	first := f.ingest(t, payload)
	second := f.ingest(t, payload)
	if first.Accepted != 1 || second.Accepted != 1 {
		t.Fatalf("reports = %+v / %+v", first, second)
	}

	// Same key, same serialized bytes: the rerun is a harmless overwrite.
	rec1 := f.record(t, "movie:tt001")
	b1, _ := json.Marshal(rec1)
	rec2 := f.record(t, "movie:tt001")
	b2, _ := json.Marshal(rec2)
	if !bytes.Equal(b1, b2) {
		t.Fatalf("re-ingest changed the stored record")
	}
}

func TestIngest_TitleWhitespaceNormalized(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, `{"movies":[{"title":"  The\tMatrix \n Reloaded ","imdb_code":"tt005"}]}`)
	if rec := f.record(t, "movie:tt005"); rec.Title != "The Matrix Reloaded" {
		t.Fatalf("title = %q", rec.Title)
	}
}
