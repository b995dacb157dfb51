package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairnhq/cairn/internal/knowledge"
	"github.com/cairnhq/cairn/internal/testutil"
)

// richHistory exercises every projection path: captures, links,
// endorsements, evidence, supersession, tensions, symbols, shares, and
// a dangling reference that must degrade to a warning.
func richHistory() []knowledge.Event {
	h := testutil.NewHistory()
	h.CaptureShared("p1", knowledge.KindPurpose, "local-first knowledge capture for the team")
	h.Capture("d1", knowledge.KindDecision, "use SQLite for offline storage", "storage")
	h.Capture("d2", knowledge.KindDecision, "use PostgreSQL for multi-user sync", "storage")
	h.Capture("c1", knowledge.KindConstraint, "core makes no network calls", "hard-constraint")
	h.Capture("q1", knowledge.KindQuestion, "how large can the event log grow")
	h.Link("l1", "d1", "p1", knowledge.RelLinkedTo)
	h.Link("l2", "d1", knowledge.CommitID("deadbeef"), knowledge.RelImplements)
	h.Link("l3", "d1", "nonexistent", knowledge.RelLinkedTo)
	h.Endorse("e1", "d1", "alice")
	h.Evidence("v1", "d1", "bench/sqlite.txt")
	h.Tension("t1", "d1", "d2", "storage technology conflict")
	h.Deprecate("x1", "d2", "d1")
	h.Symbol("s1", "eventlog.Append", "func", "internal/eventlog/log.go:88")
	h.Add("sh1", knowledge.ScopeShared, knowledge.SharePayload{
		SourceID:    "c1",
		Kind:        knowledge.KindConstraint,
		Text:        "core makes no network calls",
		Tags:        []string{"hard-constraint"},
		Fingerprint: knowledge.Fingerprint(knowledge.KindConstraint, "core makes no network calls", []string{"hard-constraint"}),
	})
	return h.Events()
}

func TestRebuild_Deterministic(t *testing.T) {
	events := richHistory()
	ctx := context.Background()

	first, err := Rebuild(ctx, events)
	require.NoError(t, err)
	second, err := Rebuild(ctx, events)
	require.NoError(t, err)

	equal, err := Equal(first, second)
	require.NoError(t, err)
	assert.True(t, equal, "rebuild run twice must yield identical graphs")
}

func TestRebuild_GoldenSnapshot(t *testing.T) {
	g, err := Rebuild(context.Background(), richHistory())
	require.NoError(t, err)

	snap, err := g.Snapshot()
	require.NoError(t, err)

	gold := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	gold.Assert(t, "rich_history", snap)
}

func TestApply_EqualsRebuild(t *testing.T) {
	events := richHistory()

	rebuilt, err := Rebuild(context.Background(), events)
	require.NoError(t, err)

	incremental := New()
	for _, ev := range events {
		incremental.Apply(ev)
	}

	equal, err := Equal(rebuilt, incremental)
	require.NoError(t, err)
	assert.True(t, equal, "incremental application must equal full rebuild")
}

func TestRebuild_InterruptedDiscardsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := Rebuild(ctx, richHistory())
	require.Error(t, err)
	assert.Nil(t, g, "an interrupted rebuild returns nothing to publish")
}

func TestHolder_AtomicPublish(t *testing.T) {
	h := NewHolder()
	require.NotNil(t, h.Load(), "readers never observe nil")

	events := richHistory()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Readers race with publication; every load must be a complete
	// graph (either the empty one or a fully rebuilt one).
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				g := h.Load()
				applied := g.Applied()
				if applied != 0 && applied != len(events) {
					t.Errorf("torn read: %d events applied", applied)
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		g, err := Rebuild(context.Background(), events)
		require.NoError(t, err)
		h.Publish(g)
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, len(events), h.Load().Applied())
}
