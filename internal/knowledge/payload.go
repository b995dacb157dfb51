package knowledge

import (
	"encoding/json"
	"fmt"
	"time"
)

// Payload is the closed tagged union of event data. One variant exists
// per event type; replay dispatches on Event.Type.
type Payload interface {
	// EventType returns the variant's tag.
	EventType() EventType
}

// CapturePayload creates a new artifact.
type CapturePayload struct {
	Kind ArtifactKind `json:"kind"`
	Text string       `json:"text"`
	Tags []string     `json:"tags,omitempty"`
}

func (CapturePayload) EventType() EventType { return EventCapture }

// LinkPayload adds a typed edge between two existing ids.
type LinkPayload struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Relation Relation `json:"relation"`
}

func (LinkPayload) EventType() EventType { return EventLink }

// EndorsePayload records consensus on a decision.
type EndorsePayload struct {
	DecisionID string `json:"decision_id"`
	By         string `json:"by"`
}

func (EndorsePayload) EventType() EventType { return EventEndorse }

// EvidencePayload records supporting evidence for a decision.
type EvidencePayload struct {
	DecisionID string `json:"decision_id"`
	Ref        string `json:"ref"`
}

func (EvidencePayload) EventType() EventType { return EventEvidence }

// DeprecatePayload retires an artifact. When SupersededBy is set the
// artifact's status becomes superseded and an evolves_from edge is
// projected from the successor to the old artifact.
type DeprecatePayload struct {
	ArtifactID   string `json:"artifact_id"`
	SupersededBy string `json:"superseded_by,omitempty"`
}

func (DeprecatePayload) EventType() EventType { return EventDeprecate }

// ResolvePayload marks a tension artifact as resolved.
type ResolvePayload struct {
	TensionID string `json:"tension_id"`
	Via       string `json:"via,omitempty"`
}

func (ResolvePayload) EventType() EventType { return EventResolve }

// TensionPayload records a conflict between two artifacts. Projection
// adds a tension node plus two tensions_with edges.
type TensionPayload struct {
	Between  [2]string `json:"between"`
	Text     string    `json:"text"`
	Severity Severity  `json:"severity,omitempty"`
}

func (TensionPayload) EventType() EventType { return EventTension }

// SymbolPayload records one code identifier from the external indexer.
type SymbolPayload struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Location string `json:"location"`
}

func (SymbolPayload) EventType() EventType { return EventSymbol }

// SharePayload copies a local artifact's content into the shared scope.
// The original local event is never touched. Fingerprint is the content
// fingerprint used by sync to deduplicate re-shared artifacts.
type SharePayload struct {
	SourceID    string       `json:"source_id"`
	Kind        ArtifactKind `json:"kind"`
	Text        string       `json:"text"`
	Tags        []string     `json:"tags,omitempty"`
	Fingerprint string       `json:"fingerprint"`
}

func (SharePayload) EventType() EventType { return EventShare }

// envelope is the wire form of an Event: one JSON object per log line.
type envelope struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Seq       int64           `json:"seq"`
	Scope     Scope           `json:"scope"`
	Data      json.RawMessage `json:"data"`
}

// MarshalJSON encodes the event with its payload under "data".
func (e Event) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	return json.Marshal(envelope{
		ID:        e.ID,
		Type:      e.Type,
		Timestamp: e.Timestamp.UTC(),
		Seq:       e.Seq,
		Scope:     e.Scope,
		Data:      data,
	})
}

// UnmarshalJSON decodes the envelope, then dispatches the payload on
// the type tag. Unknown types and mismatched payloads are errors; the
// caller decides whether to skip the record or abort.
func (e *Event) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	payload, err := DecodePayload(env.Type, env.Data)
	if err != nil {
		return err
	}

	e.ID = env.ID
	e.Type = env.Type
	e.Timestamp = env.Timestamp
	e.Seq = env.Seq
	e.Scope = env.Scope
	e.Payload = payload
	return nil
}

// DecodePayload decodes raw payload bytes into the variant for typ.
func DecodePayload(typ EventType, data json.RawMessage) (Payload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("event type %q: missing data", typ)
	}

	var p Payload
	switch typ {
	case EventCapture:
		p = &CapturePayload{}
	case EventLink:
		p = &LinkPayload{}
	case EventEndorse:
		p = &EndorsePayload{}
	case EventEvidence:
		p = &EvidencePayload{}
	case EventDeprecate:
		p = &DeprecatePayload{}
	case EventResolve:
		p = &ResolvePayload{}
	case EventTension:
		p = &TensionPayload{}
	case EventSymbol:
		p = &SymbolPayload{}
	case EventShare:
		p = &SharePayload{}
	default:
		return nil, fmt.Errorf("unknown event type %q", typ)
	}

	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", typ, err)
	}
	return deref(p), nil
}

// deref returns the payload by value so callers can type-switch on the
// concrete variants rather than pointers.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *CapturePayload:
		return *v
	case *LinkPayload:
		return *v
	case *EndorsePayload:
		return *v
	case *EvidencePayload:
		return *v
	case *DeprecatePayload:
		return *v
	case *ResolvePayload:
		return *v
	case *TensionPayload:
		return *v
	case *SymbolPayload:
		return *v
	case *SharePayload:
		return *v
	default:
		return p
	}
}
