package knowledge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func TestValidator_ValidPayloads(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name string
		typ  EventType
		data string
	}{
		{"capture minimal", EventCapture, `{"kind":"decision","text":"use jsonl"}`},
		{"capture with tags", EventCapture, `{"kind":"constraint","text":"offline only","tags":["hard-constraint"]}`},
		{"link", EventLink, `{"from":"a","to":"b","relation":"implements"}`},
		{"endorse", EventEndorse, `{"decision_id":"d","by":"alice"}`},
		{"evidence", EventEvidence, `{"decision_id":"d","ref":"bench.txt"}`},
		{"deprecate plain", EventDeprecate, `{"artifact_id":"a"}`},
		{"deprecate superseded", EventDeprecate, `{"artifact_id":"a","superseded_by":"b"}`},
		{"resolve", EventResolve, `{"tension_id":"t","via":"negotiation"}`},
		{"tension", EventTension, `{"between":["a","b"],"text":"conflict"}`},
		{"symbol", EventSymbol, `{"name":"pkg.Func","kind":"func","location":"pkg/f.go:3"}`},
		{"share", EventShare, `{"source_id":"a","kind":"memo","text":"x","fingerprint":"ff"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, v.ValidateRaw(tt.typ, json.RawMessage(tt.data)))
		})
	}
}

func TestValidator_RejectsMalformedPayloads(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name string
		typ  EventType
		data string
	}{
		{"capture empty text", EventCapture, `{"kind":"decision","text":""}`},
		{"capture bad kind", EventCapture, `{"kind":"tension","text":"x"}`},
		{"capture missing kind", EventCapture, `{"text":"x"}`},
		{"link bad relation", EventLink, `{"from":"a","to":"b","relation":"causes"}`},
		{"link missing to", EventLink, `{"from":"a","relation":"implements"}`},
		{"endorse missing by", EventEndorse, `{"decision_id":"d"}`},
		{"tension one endpoint", EventTension, `{"between":["a"],"text":"x"}`},
		{"tension bad severity", EventTension, `{"between":["a","b"],"text":"x","severity":"fatal"}`},
		{"resolve bad via", EventResolve, `{"tension_id":"t","via":"magic"}`},
		{"share missing fingerprint", EventShare, `{"source_id":"a","kind":"memo","text":"x"}`},
		{"symbol empty name", EventSymbol, `{"name":"","kind":"func","location":"f.go:1"}`},
		{"not json", EventCapture, `{"kind":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, v.ValidateRaw(tt.typ, json.RawMessage(tt.data)))
		})
	}
}

func TestValidator_ValidateEvent(t *testing.T) {
	v := newValidator(t)

	ev := Event{
		ID:        "e1",
		Type:      EventCapture,
		Timestamp: time.Now().UTC(),
		Seq:       1,
		Scope:     ScopeLocal,
		Payload:   CapturePayload{Kind: KindMemo, Text: "note"},
	}
	assert.NoError(t, v.ValidateEvent(ev))

	// Payload variant must match the declared type.
	ev.Type = EventLink
	err := v.ValidateEvent(ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload variant")

	// Scope is part of the record schema.
	ev.Type = EventCapture
	ev.Scope = "global"
	assert.Error(t, v.ValidateEvent(ev))
}

func TestValidator_UnknownEventType(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateRaw(EventType("mutate"), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}
