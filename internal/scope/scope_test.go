package scope

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairnhq/cairn/internal/eventlog"
	"github.com/cairnhq/cairn/internal/graph"
	"github.com/cairnhq/cairn/internal/knowledge"
	"github.com/cairnhq/cairn/internal/testutil"
)

func openTestLog(t *testing.T, ids ...string) *eventlog.Log {
	t.Helper()
	validator, err := knowledge.NewValidator()
	require.NoError(t, err)
	log, err := eventlog.Open(t.TempDir(), validator,
		eventlog.WithIDGenerator(knowledge.NewFixedIDGenerator(ids...)),
		eventlog.WithClock(func() time.Time { return testutil.FixedTime }),
	)
	require.NoError(t, err)
	return log
}

func replay(t *testing.T, log *eventlog.Log) *graph.Graph {
	t.Helper()
	events, skipped, err := log.ReadAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, skipped)
	g, err := graph.Rebuild(context.Background(), events)
	require.NoError(t, err)
	return g
}

func TestShare_PromotesLocalArtifact(t *testing.T) {
	ctx := context.Background()
	log := openTestLog(t, "c1", "sh1")
	m := NewManager(log)

	_, err := log.Append(ctx, knowledge.ScopeLocal, knowledge.CapturePayload{
		Kind: knowledge.KindConstraint,
		Text: "core makes no network calls",
		Tags: []string{"hard-constraint"},
	})
	require.NoError(t, err)

	ev, created, err := m.Share(ctx, replay(t, log), "c1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, knowledge.ScopeShared, ev.Scope)

	p, ok := ev.Payload.(knowledge.SharePayload)
	require.True(t, ok)
	assert.Equal(t, "c1", p.SourceID)
	assert.Equal(t, "core makes no network calls", p.Text)
	assert.Equal(t, knowledge.Fingerprint(knowledge.KindConstraint, p.Text, p.Tags), p.Fingerprint)

	// The projection now holds both the original and the shared copy.
	g := replay(t, log)
	assert.Equal(t, knowledge.ScopeLocal, g.Artifact("c1").Scope)
	assert.Equal(t, knowledge.ScopeShared, g.Artifact("sh1").Scope)
}

func TestShare_IdempotentOnFingerprint(t *testing.T) {
	ctx := context.Background()
	log := openTestLog(t, "c1", "sh1")
	m := NewManager(log)

	_, err := log.Append(ctx, knowledge.ScopeLocal, knowledge.CapturePayload{
		Kind: knowledge.KindConstraint,
		Text: "core makes no network calls",
	})
	require.NoError(t, err)

	first, created, err := m.Share(ctx, replay(t, log), "c1")
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := m.Share(ctx, replay(t, log), "c1")
	require.NoError(t, err)
	assert.False(t, created, "re-sharing identical content writes nothing")
	assert.Equal(t, first.ID, second.ID)

	shared, _, err := log.Read(ctx, knowledge.ScopeShared)
	require.NoError(t, err)
	assert.Len(t, shared, 1)
}

func TestShare_UnknownArtifact(t *testing.T) {
	log := openTestLog(t)
	m := NewManager(log)

	_, _, err := m.Share(context.Background(), graph.New(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func pulledEvents(t *testing.T) []knowledge.Event {
	t.Helper()
	h := testutil.NewHistory()
	h.CaptureShared("p1", knowledge.KindPurpose, "local-first knowledge capture")
	h.Add("sh1", knowledge.ScopeShared, knowledge.SharePayload{
		SourceID:    "their-local-id",
		Kind:        knowledge.KindDecision,
		Text:        "use JSONL event logs",
		Fingerprint: knowledge.Fingerprint(knowledge.KindDecision, "use JSONL event logs", nil),
	})
	return h.Events()
}

func TestSync_MergesPulledSharedEvents(t *testing.T) {
	ctx := context.Background()
	log := openTestLog(t)
	m := NewManager(log)

	res, err := m.Sync(ctx, pulledEvents(t))
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Applied: 2}, res)

	g := replay(t, log)
	require.NotNil(t, g.Artifact("p1"))
	require.NotNil(t, g.Artifact("sh1"))
}

func TestSync_Idempotent(t *testing.T) {
	ctx := context.Background()
	log := openTestLog(t)
	m := NewManager(log)

	pulled := pulledEvents(t)

	first, err := m.Sync(ctx, pulled)
	require.NoError(t, err)
	require.Equal(t, 2, first.Applied)

	second, err := m.Sync(ctx, pulled)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Duplicates: 2}, second, "sync(sync(S)) == sync(S)")

	shared, _, err := log.Read(ctx, knowledge.ScopeShared)
	require.NoError(t, err)
	assert.Len(t, shared, 2)
}

func TestSync_DedupesByFingerprint(t *testing.T) {
	ctx := context.Background()
	log := openTestLog(t)
	m := NewManager(log)

	_, err := m.Sync(ctx, pulledEvents(t))
	require.NoError(t, err)

	// A teammate shared identical content under a different event id.
	h := testutil.NewHistory()
	rephrased := h.Add("sh2", knowledge.ScopeShared, knowledge.SharePayload{
		SourceID:    "another-local-id",
		Kind:        knowledge.KindDecision,
		Text:        "use JSONL event logs",
		Fingerprint: knowledge.Fingerprint(knowledge.KindDecision, "use JSONL event logs", nil),
	})

	res, err := m.Sync(ctx, []knowledge.Event{rephrased})
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Duplicates: 1}, res)
}

func TestSync_RejectsLocalEvents(t *testing.T) {
	ctx := context.Background()
	log := openTestLog(t)
	m := NewManager(log)

	h := testutil.NewHistory()
	local := h.Capture("d1", knowledge.KindDecision, "never leaves this machine")

	res, err := m.Sync(ctx, []knowledge.Event{local})
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Rejected: 1}, res)

	localEvents, _, err := log.Read(ctx, knowledge.ScopeLocal)
	require.NoError(t, err)
	assert.Empty(t, localEvents, "sync never writes the local scope")
}

func TestSync_SeqReassignedLocally(t *testing.T) {
	ctx := context.Background()
	log := openTestLog(t, "p0")
	m := NewManager(log)

	// Shared log already has one event, so pulled seq values collide.
	_, err := log.Append(ctx, knowledge.ScopeShared, knowledge.CapturePayload{
		Kind: knowledge.KindPurpose,
		Text: "existing shared purpose",
	})
	require.NoError(t, err)

	res, err := m.Sync(ctx, pulledEvents(t))
	require.NoError(t, err)
	require.Equal(t, 2, res.Applied)

	shared, _, err := log.Read(ctx, knowledge.ScopeShared)
	require.NoError(t, err)
	require.Len(t, shared, 3)
	for i, ev := range shared {
		assert.Equal(t, int64(i+1), ev.Seq, "seq reflects the local append position")
	}
}
