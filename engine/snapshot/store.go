// Package snapshot persists per-shard show snapshots and their summaries,
// plus the combined per-date outputs.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/WessleyAI/showpulse/engine/show"
	"github.com/WessleyAI/showpulse/engine/summary"
)

// ErrCorrupt means a stored snapshot exists but cannot be decoded. A run
// must not continue from it, since saving would overwrite history.
var ErrCorrupt = errors.New("corrupt snapshot")

// ErrNotFound is returned by the Load* methods for summaries and combined
// outputs that were never written. A missing shard snapshot is not an
// error; it loads as empty.
var ErrNotFound = errors.New("not found")

// Detailed is the combined record file.
type Detailed struct {
	LastUpdated string        `json:"last_updated"`
	Data        []show.Record `json:"data"`
}

// Summarized is the combined summary file.
type Summarized struct {
	LastUpdated string          `json:"last_updated"`
	Movies      summary.Summary `json:"movies"`
}

// Store is where runs read and write their state.
type Store interface {
	Load(ctx context.Context, date, shard string) ([]show.Record, error)
	Save(ctx context.Context, date, shard string, records []show.Record) error
	LoadSummary(ctx context.Context, date, shard string) (summary.Summary, error)
	SaveSummary(ctx context.Context, date, shard string, s summary.Summary) error
	// Shards lists the shards with a snapshot for date, sorted.
	Shards(ctx context.Context, date string) ([]string, error)
	SaveCombined(ctx context.Context, date string, d Detailed, s Summarized) error
	LoadCombined(ctx context.Context, date string) (Detailed, Summarized, error)
}

var bom = []byte{0xEF, 0xBB, 0xBF}

// decodeRecords accepts a bare array or the combined {"data": [...]} form.
func decodeRecords(name string, data []byte) ([]show.Record, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, bom))
	if len(data) == 0 {
		return nil, nil
	}
	var recs []show.Record
	if data[0] == '{' {
		var d Detailed
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
		}
		return d.Data, nil
	}
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return recs, nil
}

func decodeSummary(name string, data []byte) (summary.Summary, error) {
	var s summary.Summary
	if err := json.Unmarshal(bytes.TrimPrefix(data, bom), &s); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return s, nil
}

func encode(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
