package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/WessleyAI/showpulse/engine/show"
	"github.com/WessleyAI/showpulse/engine/summary"
)

// File names inside a date directory.
const (
	detailedPrefix = "detailed"
	summaryPrefix  = "movie_summary"
	FinalDetailed  = "finaldetailed.json"
	FinalSummary   = "finalsummary.json"
)

// FileStore keeps one directory per date under Dir.
type FileStore struct {
	Dir string
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore { return &FileStore{Dir: dir} }

// DetailedPath is <dir>/<date>/detailed<shard>.json.
func (f *FileStore) DetailedPath(date, shard string) string {
	return filepath.Join(f.Dir, date, detailedPrefix+shard+".json")
}

// SummaryPath is <dir>/<date>/movie_summary<shard>.json.
func (f *FileStore) SummaryPath(date, shard string) string {
	return filepath.Join(f.Dir, date, summaryPrefix+shard+".json")
}

func (f *FileStore) Load(_ context.Context, date, shard string) ([]show.Record, error) {
	path := f.DetailedPath(date, shard)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return decodeRecords(path, data)
}

func (f *FileStore) Save(_ context.Context, date, shard string, records []show.Record) error {
	if records == nil {
		records = []show.Record{}
	}
	return writeJSON(f.DetailedPath(date, shard), records)
}

func (f *FileStore) LoadSummary(_ context.Context, date, shard string) (summary.Summary, error) {
	path := f.SummaryPath(date, shard)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}
	return decodeSummary(path, data)
}

func (f *FileStore) SaveSummary(_ context.Context, date, shard string, s summary.Summary) error {
	return writeJSON(f.SummaryPath(date, shard), s)
}

func (f *FileStore) Shards(_ context.Context, date string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(f.Dir, date))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list shards: %w", err)
	}
	var shards []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, detailedPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		shard := strings.TrimSuffix(strings.TrimPrefix(name, detailedPrefix), ".json")
		if shard != "" {
			shards = append(shards, shard)
		}
	}
	sortShards(shards)
	return shards, nil
}

func (f *FileStore) SaveCombined(_ context.Context, date string, d Detailed, s Summarized) error {
	if err := writeJSON(filepath.Join(f.Dir, date, FinalDetailed), d); err != nil {
		return err
	}
	return writeJSON(filepath.Join(f.Dir, date, FinalSummary), s)
}

func (f *FileStore) LoadCombined(_ context.Context, date string) (Detailed, Summarized, error) {
	var (
		d Detailed
		s Summarized
	)
	for name, dst := range map[string]any{FinalDetailed: &d, FinalSummary: &s} {
		path := filepath.Join(f.Dir, date, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return d, s, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		if err != nil {
			return d, s, err
		}
		if err := json.Unmarshal(data, dst); err != nil {
			return d, s, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
		}
	}
	return d, s, nil
}

func writeJSON(path string, v any) error {
	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to a temp file next to path, syncs it and
// renames it over path, so readers see either the old or the new file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		return err
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}

// sortShards orders numeric shard names numerically, others lexically.
func sortShards(shards []string) {
	sort.Slice(shards, func(i, j int) bool {
		a, b := shards[i], shards[j]
		if len(a) != len(b) && isNumeric(a) && isNumeric(b) {
			return len(a) < len(b)
		}
		return a < b
	})
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
