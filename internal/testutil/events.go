package testutil

import (
	"github.com/cairnhq/cairn/internal/knowledge"
)

// History builds deterministic event sequences for projection tests.
// Ids are supplied by the caller, seq numbers advance per scope, and
// timestamps are fixed, so the same builder calls always produce the
// same history.
type History struct {
	clocks map[knowledge.Scope]*Clock
	events []knowledge.Event
}

// NewHistory creates an empty deterministic history.
func NewHistory() *History {
	return &History{
		clocks: map[knowledge.Scope]*Clock{
			knowledge.ScopeShared: NewClock(),
			knowledge.ScopeLocal:  NewClock(),
		},
	}
}

// Events returns the accumulated sequence.
func (h *History) Events() []knowledge.Event {
	out := make([]knowledge.Event, len(h.events))
	copy(out, h.events)
	return out
}

// Add appends a fully specified event.
func (h *History) Add(id string, scope knowledge.Scope, payload knowledge.Payload) knowledge.Event {
	ev := knowledge.Event{
		ID:        id,
		Type:      payload.EventType(),
		Timestamp: FixedTime,
		Seq:       h.clocks[scope].Next(),
		Scope:     scope,
		Payload:   payload,
	}
	h.events = append(h.events, ev)
	return ev
}

// Capture appends a local capture event.
func (h *History) Capture(id string, kind knowledge.ArtifactKind, text string, tags ...string) knowledge.Event {
	return h.Add(id, knowledge.ScopeLocal, knowledge.CapturePayload{Kind: kind, Text: text, Tags: tags})
}

// CaptureShared appends a shared capture event.
func (h *History) CaptureShared(id string, kind knowledge.ArtifactKind, text string, tags ...string) knowledge.Event {
	return h.Add(id, knowledge.ScopeShared, knowledge.CapturePayload{Kind: kind, Text: text, Tags: tags})
}

// Link appends a local link event.
func (h *History) Link(id, from, to string, rel knowledge.Relation) knowledge.Event {
	return h.Add(id, knowledge.ScopeLocal, knowledge.LinkPayload{From: from, To: to, Relation: rel})
}

// Endorse appends a local endorse event.
func (h *History) Endorse(id, decisionID, by string) knowledge.Event {
	return h.Add(id, knowledge.ScopeLocal, knowledge.EndorsePayload{DecisionID: decisionID, By: by})
}

// Evidence appends a local evidence event.
func (h *History) Evidence(id, decisionID, ref string) knowledge.Event {
	return h.Add(id, knowledge.ScopeLocal, knowledge.EvidencePayload{DecisionID: decisionID, Ref: ref})
}

// Deprecate appends a local deprecate event.
func (h *History) Deprecate(id, artifactID, supersededBy string) knowledge.Event {
	return h.Add(id, knowledge.ScopeLocal, knowledge.DeprecatePayload{ArtifactID: artifactID, SupersededBy: supersededBy})
}

// Tension appends a local tension event.
func (h *History) Tension(id, a, b, text string) knowledge.Event {
	return h.Add(id, knowledge.ScopeLocal, knowledge.TensionPayload{Between: [2]string{a, b}, Text: text})
}

// GradedTension appends a local tension event carrying a severity.
func (h *History) GradedTension(id, a, b, text string, sev knowledge.Severity) knowledge.Event {
	return h.Add(id, knowledge.ScopeLocal, knowledge.TensionPayload{
		Between:  [2]string{a, b},
		Text:     text,
		Severity: sev,
	})
}

// Resolve appends a local resolve event.
func (h *History) Resolve(id, tensionID, via string) knowledge.Event {
	return h.Add(id, knowledge.ScopeLocal, knowledge.ResolvePayload{TensionID: tensionID, Via: via})
}

// Symbol appends a local symbol event.
func (h *History) Symbol(id, name, kind, location string) knowledge.Event {
	return h.Add(id, knowledge.ScopeLocal, knowledge.SymbolPayload{Name: name, Kind: kind, Location: location})
}
