package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WessleyAI/showpulse/engine/summary"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisStore(client, time.Hour)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, st := setupRedis(t)

	recs, err := st.Load(ctx, "20250110", "1")
	require.NoError(t, err)
	assert.Empty(t, recs)

	require.NoError(t, st.Save(ctx, "20250110", "1", sample()))
	assert.True(t, mr.Exists("showpulse:snapshot:20250110:1"))
	assert.Equal(t, time.Hour, mr.TTL("showpulse:snapshot:20250110:1"))

	got, err := st.Load(ctx, "20250110", "1")
	require.NoError(t, err)
	assert.Equal(t, sample(), got)

	_, err = st.LoadSummary(ctx, "20250110", "1")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, st.SaveSummary(ctx, "20250110", "1", summary.Aggregate(got)))
	s, err := st.LoadSummary(ctx, "20250110", "1")
	require.NoError(t, err)
	assert.Equal(t, 60, s["Jawan"].Sold)
}

func TestRedisStoreCorrupt(t *testing.T) {
	mr, st := setupRedis(t)
	require.NoError(t, mr.Set("showpulse:snapshot:20250110:1", "not json"))
	_, err := st.Load(context.Background(), "20250110", "1")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRedisStoreShardsAndCombined(t *testing.T) {
	ctx := context.Background()
	_, st := setupRedis(t)
	for _, shard := range []string{"3", "1", "12"} {
		require.NoError(t, st.Save(ctx, "20250110", shard, sample()))
	}
	require.NoError(t, st.Save(ctx, "20250111", "9", sample()))

	shards, err := st.Shards(ctx, "20250110")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3", "12"}, shards)

	d := Detailed{LastUpdated: "x", Data: sample()}
	require.NoError(t, st.SaveCombined(ctx, "20250110", d, Summarized{LastUpdated: "x", Movies: summary.Aggregate(sample())}))
	gd, gs, err := st.LoadCombined(ctx, "20250110")
	require.NoError(t, err)
	assert.Equal(t, d, gd)
	assert.Len(t, gs.Movies, 2)
}

func TestRedisStoreSatisfiesStore(t *testing.T) {
	var _ Store = (*RedisStore)(nil)
	var _ Store = (*FileStore)(nil)
}
