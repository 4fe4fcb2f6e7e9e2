package ingest

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
)

// SchemaError reports a payload matching neither tolerated shape. No valid
// records can be derived from such a payload, so this is fatal for the run.
type SchemaError struct {
	ListErr error
	MapErr  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf(`ingest: payload matches neither {"movies": [...]} (%v) nor a map of records (%v)`, e.ListErr, e.MapErr)
}

// pending is a decoded record awaiting normalization and keying. FallbackID
// carries the map key for map-shaped payloads, where older databases keyed
// records by IMDb code without repeating it inside the record.
type pending struct {
	record     MovieRecord
	fallbackID string
	decodable  bool
}

var imdbKeyRe = regexp.MustCompile(`^tt\d+$`)

// decodePayload tries the two tolerated shapes in order, committing only
// when a decoder fully succeeds:
//  1. an object with a "movies" list field (the latest-feed shape);
//  2. a mapping from arbitrary string keys to records (the full-database
//     shape, optionally nested under a "database" wrapper).
//
// Both shapes may carry a sibling "yts_url" string, returned when present.
func decodePayload(payload []byte) ([]pending, string, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		wrapped := fmt.Errorf("not a JSON object: %w", err)
		return nil, "", &SchemaError{ListErr: wrapped, MapErr: wrapped}
	}

	var ytsURL string
	if raw, ok := top["yts_url"]; ok {
		_ = json.Unmarshal(raw, &ytsURL)
	}

	records, listErr := decodeListShape(top)
	if listErr == nil {
		return records, ytsURL, nil
	}

	records, mapErr := decodeMapShape(top)
	if mapErr == nil {
		return records, ytsURL, nil
	}

	return nil, "", &SchemaError{ListErr: listErr, MapErr: mapErr}
}

func decodeListShape(top map[string]json.RawMessage) ([]pending, error) {
	raw, ok := top["movies"]
	if !ok {
		return nil, fmt.Errorf(`no "movies" field`)
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf(`"movies" is not a list: %w`, err)
	}
	out := make([]pending, 0, len(list))
	for _, item := range list {
		var rec MovieRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			// Partial source data is expected; the pipeline counts these
			// as skipped rather than failing the run.
			out = append(out, pending{})
			continue
		}
		out = append(out, pending{record: rec, decodable: true})
	}
	return out, nil
}

func decodeMapShape(top map[string]json.RawMessage) ([]pending, error) {
	// The full-database export wraps the record map in a "database" field.
	if raw, ok := top["database"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err == nil {
			top = inner
		}
	}

	keys := make([]string, 0, len(top))
	for k := range top {
		if k == "yts_url" {
			continue
		}
		keys = append(keys, k)
	}
	// Stable ingestion order regardless of map iteration.
	sort.Strings(keys)

	out := make([]pending, 0, len(keys))
	sawRecord := false
	for _, k := range keys {
		var rec MovieRecord
		if err := json.Unmarshal(top[k], &rec); err != nil {
			out = append(out, pending{})
			continue
		}
		sawRecord = true
		p := pending{record: rec, decodable: true}
		if imdbKeyRe.MatchString(k) {
			p.fallbackID = k
		}
		out = append(out, p)
	}
	if !sawRecord {
		return nil, fmt.Errorf("no record-shaped values")
	}
	return out, nil
}
