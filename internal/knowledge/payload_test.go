package knowledge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		typ     EventType
		payload Payload
	}{
		{
			name: "capture",
			typ:  EventCapture,
			payload: CapturePayload{
				Kind: KindDecision,
				Text: "use sqlite for the derived index",
				Tags: []string{"storage"},
			},
		},
		{
			name:    "link",
			typ:     EventLink,
			payload: LinkPayload{From: "a", To: "b", Relation: RelLinkedTo},
		},
		{
			name:    "endorse",
			typ:     EventEndorse,
			payload: EndorsePayload{DecisionID: "d1", By: "reviewer"},
		},
		{
			name:    "evidence",
			typ:     EventEvidence,
			payload: EvidencePayload{DecisionID: "d1", Ref: "bench/results.txt"},
		},
		{
			name:    "deprecate",
			typ:     EventDeprecate,
			payload: DeprecatePayload{ArtifactID: "d1", SupersededBy: "d2"},
		},
		{
			name:    "resolve",
			typ:     EventResolve,
			payload: ResolvePayload{TensionID: "t1", Via: "evolution"},
		},
		{
			name: "tension",
			typ:  EventTension,
			payload: TensionPayload{
				Between: [2]string{"d1", "d2"},
				Text:    "storage technology conflict",
			},
		},
		{
			name:    "symbol",
			typ:     EventSymbol,
			payload: SymbolPayload{Name: "store.Open", Kind: "func", Location: "internal/store/store.go:12"},
		},
		{
			name: "share",
			typ:  EventShare,
			payload: SharePayload{
				SourceID:    "local-1",
				Kind:        KindConstraint,
				Text:        "no network calls in the core",
				Fingerprint: "abc",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Event{
				ID:        "ev-1",
				Type:      tt.typ,
				Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
				Seq:       7,
				Scope:     ScopeShared,
				Payload:   tt.payload,
			}

			data, err := json.Marshal(in)
			require.NoError(t, err)

			var out Event
			require.NoError(t, json.Unmarshal(data, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestEvent_Unmarshal_UnknownType(t *testing.T) {
	line := `{"id":"x","type":"mutate","timestamp":"2026-01-02T03:04:05Z","seq":1,"scope":"local","data":{}}`

	var ev Event
	err := json.Unmarshal([]byte(line), &ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestEvent_Unmarshal_MissingData(t *testing.T) {
	line := `{"id":"x","type":"capture","timestamp":"2026-01-02T03:04:05Z","seq":1,"scope":"local"}`

	var ev Event
	err := json.Unmarshal([]byte(line), &ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing data")
}

func TestDecodePayload_ConcreteVariants(t *testing.T) {
	p, err := DecodePayload(EventCapture, json.RawMessage(`{"kind":"memo","text":"note"}`))
	require.NoError(t, err)

	// Variants decode by value, not pointer, so projections can
	// type-switch without double dereference.
	capture, ok := p.(CapturePayload)
	require.True(t, ok, "expected CapturePayload by value, got %T", p)
	assert.Equal(t, KindMemo, capture.Kind)
	assert.Equal(t, "note", capture.Text)
}

func TestEventLine_IsHumanDiffable(t *testing.T) {
	ev := Event{
		ID:        "019236a0-0000-7000-8000-000000000001",
		Type:      EventCapture,
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Seq:       1,
		Scope:     ScopeLocal,
		Payload:   CapturePayload{Kind: KindPurpose, Text: "keep history legible"},
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	// One flat object, no embedded newlines: one event per line.
	assert.NotContains(t, string(data), "\n")
	assert.Contains(t, string(data), `"type":"capture"`)
	assert.Contains(t, string(data), `"scope":"local"`)
}
