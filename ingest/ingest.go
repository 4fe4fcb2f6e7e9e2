// Package ingest turns heterogeneous scraper JSON into canonical catalog
// entries keyed by IMDb code.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kompoti121/kompoti/doc"
	"github.com/kompoti121/kompoti/keys"
)

// KeyPrefix is the entry-key family catalog records live under.
const KeyPrefix = "movie:"

// GlobalYTSURLKey is the catalog-wide setting re-asserted at every
// publisher startup.
const GlobalYTSURLKey = "config:global_yts_url"

// progressEvery is the accepted-record cadence for progress logging.
const progressEvery = 100

// Report summarizes one ingestion run.
type Report struct {
	Accepted int
	Skipped  int
}

// Ingest parses payload, normalizes each record and upserts it into the
// document under "movie:" + IMDb code. Records without an external
// identifier are skipped, never stored under a synthetic key. Re-ingesting
// the same payload is harmless: keys are derived purely from the external
// identifier, so a rerun overwrites rather than duplicates.
//
// Ingestion stops between records when ctx is cancelled; the record in
// flight is finished, no new one is started.
func Ingest(ctx context.Context, store *doc.Store, cap doc.Capability, author *keys.Identity, payload []byte, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var report Report

	records, ytsURL, err := decodePayload(payload)
	if err != nil {
		return report, err
	}
	if ytsURL != "" {
		if err := WriteGlobalConfig(ctx, store, cap, author, ytsURL); err != nil {
			return report, err
		}
	}

	for _, p := range records {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		if !p.decodable {
			report.Skipped++
			continue
		}
		rec := p.record
		id := rec.ExternalID()
		if id == "" {
			id = p.fallbackID
		}
		if id == "" {
			report.Skipped++
			continue
		}

		rec.normalize()
		value, err := json.Marshal(&rec)
		if err != nil {
			return report, fmt.Errorf("serialize record %s: %w", id, err)
		}
		if _, err := store.Set(ctx, cap, author, []byte(KeyPrefix+id), value); err != nil {
			return report, fmt.Errorf("store record %s: %w", id, err)
		}
		report.Accepted++
		if report.Accepted%progressEvery == 0 {
			logger.Info("ingest progress", "accepted", report.Accepted, "skipped", report.Skipped)
		}
	}

	logger.Info("ingest complete", "accepted", report.Accepted, "skipped", report.Skipped)
	return report, nil
}

// WriteGlobalConfig idempotently re-asserts the catalog-wide YTS base URL
// as a regular document entry.
func WriteGlobalConfig(ctx context.Context, store *doc.Store, cap doc.Capability, author *keys.Identity, ytsURL string) error {
	if _, err := store.Set(ctx, cap, author, []byte(GlobalYTSURLKey), []byte(ytsURL)); err != nil {
		return fmt.Errorf("write %s: %w", GlobalYTSURLKey, err)
	}
	return nil
}
