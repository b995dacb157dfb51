package knowledge

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE []byte

// schemaDefs maps event types to their CUE definition paths.
var schemaDefs = map[EventType]string{
	EventCapture:   "#capture",
	EventLink:      "#link",
	EventEndorse:   "#endorse",
	EventEvidence:  "#evidence",
	EventDeprecate: "#deprecate",
	EventResolve:   "#resolve",
	EventTension:   "#tension",
	EventSymbol:    "#symbol",
	EventShare:     "#share",
}

// Validator checks event payloads against the per-variant CUE schemas.
// The schema is compiled once at construction; Validate calls are pure
// and safe for concurrent use.
type Validator struct {
	ctx  *cue.Context
	defs map[EventType]cue.Value
}

// NewValidator compiles the embedded schema and resolves one definition
// per event type. An error here means the embedded schema itself is
// broken, which is a build defect, not an input problem.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile payload schema: %w", err)
	}

	defs := make(map[EventType]cue.Value, len(schemaDefs))
	for typ, path := range schemaDefs {
		v := schema.LookupPath(cue.ParsePath(path))
		if !v.Exists() {
			return nil, fmt.Errorf("payload schema missing definition %s", path)
		}
		defs[typ] = v
	}

	return &Validator{ctx: ctx, defs: defs}, nil
}

// ValidateRaw unifies raw payload JSON with the schema for typ.
// Returns a descriptive error when the payload does not conform.
func (v *Validator) ValidateRaw(typ EventType, data json.RawMessage) error {
	def, ok := v.defs[typ]
	if !ok {
		return fmt.Errorf("unknown event type %q", typ)
	}

	val := v.ctx.CompileBytes(data)
	if err := val.Err(); err != nil {
		return fmt.Errorf("event type %s: parse payload: %w", typ, err)
	}

	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return fmt.Errorf("event type %s: %s", typ, cueerrors.Details(err, nil))
	}
	return nil
}

// ValidateEvent marshals the event's payload and validates it. Used on
// the append path so malformed events never reach the log.
func (v *Validator) ValidateEvent(e Event) error {
	if !ValidEventTypes[e.Type] {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if !ValidScopes[e.Scope] {
		return fmt.Errorf("invalid scope %q", e.Scope)
	}
	if e.Payload == nil {
		return fmt.Errorf("event type %s: missing payload", e.Type)
	}
	if got := e.Payload.EventType(); got != e.Type {
		return fmt.Errorf("event type %s: payload variant is %s", e.Type, got)
	}

	data, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("event type %s: marshal payload: %w", e.Type, err)
	}
	return v.ValidateRaw(e.Type, data)
}
