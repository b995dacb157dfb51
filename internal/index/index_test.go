package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairnhq/cairn/internal/graph"
	"github.com/cairnhq/cairn/internal/knowledge"
	"github.com/cairnhq/cairn/internal/testutil"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func projectedGraph(t *testing.T) *graph.Graph {
	t.Helper()
	h := testutil.NewHistory()
	h.CaptureShared("p1", knowledge.KindPurpose, "local-first knowledge capture")
	h.Capture("d1", knowledge.KindDecision, "use SQLite for the cache", "storage")
	h.Capture("c1", knowledge.KindConstraint, "core makes no network calls", "hard-constraint")
	h.Link("l1", "d1", "p1", knowledge.RelLinkedTo)
	h.Link("l2", "d1", "ghost", knowledge.RelLinkedTo) // warning path
	h.Endorse("e1", "d1", "alice")
	h.Evidence("v1", "d1", "bench/cache.txt")
	h.GradedTension("t1", "d1", "c1", "cache versus purity", knowledge.SeverityWarning)
	h.Symbol("s1", "index.Open", "func", "internal/index/index.go:40")
	h.Deprecate("x1", "c1", "")

	g, err := graph.Rebuild(context.Background(), h.Events())
	require.NoError(t, err)
	return g
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestCache_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)
	g := projectedGraph(t)

	require.NoError(t, c.Save(ctx, g, "shared:1;local:9"))

	loaded, ok, err := c.Load(ctx, "shared:1;local:9")
	require.NoError(t, err)
	require.True(t, ok)

	equal, err := graph.Equal(g, loaded)
	require.NoError(t, err)
	assert.True(t, equal, "cache round-trip must preserve the projection exactly")
	assert.Equal(t, g.Applied(), loaded.Applied())
}

func TestCache_EmptyCacheMisses(t *testing.T) {
	c := openTestCache(t)

	loaded, ok, err := c.Load(context.Background(), "shared:0;local:0")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, loaded)
}

func TestCache_StaleWatermarkMisses(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)

	require.NoError(t, c.Save(ctx, projectedGraph(t), "shared:1;local:9"))

	// Log grew since the cache was written.
	loaded, ok, err := c.Load(ctx, "shared:1;local:12")
	require.NoError(t, err)
	assert.False(t, ok, "a stale cache is a miss, never stale data")
	assert.Nil(t, loaded)

	got, err := c.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, "shared:1;local:9", got)
}

func TestCache_SaveReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)

	require.NoError(t, c.Save(ctx, projectedGraph(t), "shared:1;local:9"))

	h := testutil.NewHistory()
	h.Capture("d9", knowledge.KindDecision, "entirely new projection")
	smaller, err := graph.Rebuild(ctx, h.Events())
	require.NoError(t, err)

	require.NoError(t, c.Save(ctx, smaller, "local:1"))

	loaded, ok, err := c.Load(ctx, "local:1")
	require.NoError(t, err)
	require.True(t, ok)

	equal, err := graph.Equal(smaller, loaded)
	require.NoError(t, err)
	assert.True(t, equal, "save fully replaces the previous projection")
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	c, err := Open(path)
	require.NoError(t, err)
	_, err = c.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}
