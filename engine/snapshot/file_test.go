package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WessleyAI/showpulse/engine/show"
	"github.com/WessleyAI/showpulse/engine/summary"
)

func sample() []show.Record {
	return []show.Record{
		{Movie: "Jawan", Venue: "PVR", City: "Pune", State: "MH", Time: "10:00 AM", SessionID: "1", TotalSeats: 100, Sold: 60, Available: 40, Gross: 6000},
		{Movie: "Dunki", Venue: "INOX", City: "Pune", State: "MH", Time: "01:00 PM", SessionID: "2", TotalSeats: 50, Sold: 5, Available: 45, Gross: 500},
	}
}

func TestFileStoreMissingSnapshotIsEmpty(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	recs, err := fs.Load(context.Background(), "20250110", "1")
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = fs.LoadSummary(context.Background(), "20250110", "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(t.TempDir())
	require.NoError(t, fs.Save(ctx, "20250110", "3", sample()))

	got, err := fs.Load(ctx, "20250110", "3")
	require.NoError(t, err)
	assert.Equal(t, sample(), got)

	s := summary.Aggregate(sample())
	require.NoError(t, fs.SaveSummary(ctx, "20250110", "3", s))
	gotS, err := fs.LoadSummary(ctx, "20250110", "3")
	require.NoError(t, err)
	assert.Equal(t, s["Jawan"].Sold, gotS["Jawan"].Sold)

	entries, err := os.ReadDir(filepath.Join(fs.Dir, "20250110"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temp files must not be left behind")
	}
}

func TestFileStoreCorruptSnapshot(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	path := fs.DetailedPath("20250110", "1")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`[{"movie": `), 0o644))

	_, err := fs.Load(context.Background(), "20250110", "1")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFileStoreReadsBOMAndWrappedForm(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	path := fs.DetailedPath("20250110", "2")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	body := "\ufeff" + `{"last_updated": "2025-01-10 10:00 IST", "data": [{"movie": "Jawan", "venue": "PVR"}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	recs, err := fs.Load(context.Background(), "20250110", "2")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Jawan", recs[0].Movie)
}

func TestFileStoreShards(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(t.TempDir())
	for _, shard := range []string{"10", "2", "1"} {
		require.NoError(t, fs.Save(ctx, "20250110", shard, nil))
	}
	require.NoError(t, fs.SaveSummary(ctx, "20250110", "1", summary.Summary{}))
	require.NoError(t, fs.SaveCombined(ctx, "20250110", Detailed{}, Summarized{}))

	shards, err := fs.Shards(ctx, "20250110")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "10"}, shards)

	none, err := fs.Shards(ctx, "19990101")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFileStoreCombined(t *testing.T) {
	ctx := context.Background()
	fs := NewFileStore(t.TempDir())
	_, _, err := fs.LoadCombined(ctx, "20250110")
	assert.ErrorIs(t, err, ErrNotFound)

	d := Detailed{LastUpdated: "2025-01-10 10:00 IST", Data: sample()}
	s := Summarized{LastUpdated: d.LastUpdated, Movies: summary.Aggregate(sample())}
	require.NoError(t, fs.SaveCombined(ctx, "20250110", d, s))

	gd, gs, err := fs.LoadCombined(ctx, "20250110")
	require.NoError(t, err)
	assert.Equal(t, d, gd)
	assert.Equal(t, "2025-01-10 10:00 IST", gs.LastUpdated)
	assert.Contains(t, gs.Movies, "Jawan")
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	require.NoError(t, WriteFileAtomic(path, []byte("one")))
	require.NoError(t, WriteFileAtomic(path, []byte("two")))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(b))
}
