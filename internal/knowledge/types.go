package knowledge

import "time"

// Scope partitions events into team-visible and personal history.
type Scope string

const (
	// ScopeShared is the team-visible partition, synced between repositories.
	ScopeShared Scope = "shared"

	// ScopeLocal is the personal partition, never synced automatically.
	ScopeLocal Scope = "local"
)

// ValidScopes defines allowed scope values.
var ValidScopes = map[Scope]bool{
	ScopeShared: true,
	ScopeLocal:  true,
}

// EventType identifies a payload variant. The enum is closed: replay
// rejects records with unknown types as malformed.
type EventType string

const (
	EventCapture   EventType = "capture"
	EventLink      EventType = "link"
	EventEndorse   EventType = "endorse"
	EventEvidence  EventType = "evidence"
	EventDeprecate EventType = "deprecate"
	EventResolve   EventType = "resolve"
	EventTension   EventType = "tension"
	EventSymbol    EventType = "symbol"
	EventShare     EventType = "share"
)

// ValidEventTypes defines the closed set of event types.
var ValidEventTypes = map[EventType]bool{
	EventCapture:   true,
	EventLink:      true,
	EventEndorse:   true,
	EventEvidence:  true,
	EventDeprecate: true,
	EventResolve:   true,
	EventTension:   true,
	EventSymbol:    true,
	EventShare:     true,
}

// Event is one immutable record in the append-only log.
//
// Seq is the logical clock position within the event's scope, assigned
// at append time. Ordering always uses Seq, never Timestamp; the
// timestamp is retained for humans, not for replay.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Seq       int64     `json:"seq"`
	Scope     Scope     `json:"scope"`
	Payload   Payload   `json:"data"`
}

// ArtifactKind classifies a unit of captured knowledge.
type ArtifactKind string

const (
	KindPurpose    ArtifactKind = "purpose"
	KindDecision   ArtifactKind = "decision"
	KindConstraint ArtifactKind = "constraint"
	KindQuestion   ArtifactKind = "question"
	KindTension    ArtifactKind = "tension"
	KindMemo       ArtifactKind = "memo"
)

// CapturableKinds are the kinds an operator may capture directly.
// Tensions are created by tension events, not by capture.
var CapturableKinds = map[ArtifactKind]bool{
	KindPurpose:    true,
	KindDecision:   true,
	KindConstraint: true,
	KindQuestion:   true,
	KindMemo:       true,
}

// Status tracks artifact lifecycle. Deprecated and superseded artifacts
// are retained forever and excluded from default ranking only.
type Status string

const (
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
	StatusSuperseded Status = "superseded"
)

// TagHardConstraint marks a constraint that grades tensions as critical.
const TagHardConstraint = "hard-constraint"

// Artifact is the projection of capture-family events for one id.
// Never mutated in place: replay builds a fresh value each time.
type Artifact struct {
	ID        string       `json:"id"`
	Kind      ArtifactKind `json:"kind"`
	Text      string       `json:"text"`
	Tags      []string     `json:"tags,omitempty"`
	Tokens    []string     `json:"tokens"`
	Scope     Scope        `json:"scope"`
	Status    Status       `json:"status"`
	// Severity is set on tension artifacts only, from the recorded
	// tension event's grade.
	Severity  Severity  `json:"severity,omitempty"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`

	// Endorsements and Evidence are counters projected from endorse and
	// evidence events; validation state is derived from them on demand.
	Endorsements int `json:"endorsements"`
	Evidence     int `json:"evidence"`
}

// HasTag reports whether the artifact carries the given tag.
func (a *Artifact) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Symbol is an indexed code identifier supplied by an external indexer.
// The id is derived from the qualified name so edges survive re-indexing
// of unchanged symbols.
type Symbol struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Location string   `json:"location"`
	Tokens   []string `json:"tokens"`
	Seq      int64    `json:"seq"`
}

// SymbolIDPrefix namespaces symbol ids apart from artifact uuids.
const SymbolIDPrefix = "sym:"

// SymbolID returns the stable id for a qualified symbol name.
func SymbolID(qualifiedName string) string {
	return SymbolIDPrefix + qualifiedName
}

// CommitIDPrefix namespaces version-control commit identifiers used as
// stable keys in implements edges. Commits are external keys, not graph
// nodes; integrity checking never drops edges targeting them.
const CommitIDPrefix = "commit:"

// CommitID returns the stable key for a commit hash.
func CommitID(hash string) string {
	return CommitIDPrefix + hash
}

// Relation types an edge.
type Relation string

const (
	RelImplements          Relation = "implements"
	RelImplementedIn       Relation = "implemented_in"
	RelEvolvesFrom         Relation = "evolves_from"
	RelTensionsWith        Relation = "tensions_with"
	RelRequiresNegotiation Relation = "requires_negotiation"
	RelLinkedTo            Relation = "linked_to"
)

// ValidRelations defines the closed set of edge relations.
var ValidRelations = map[Relation]bool{
	RelImplements:          true,
	RelImplementedIn:       true,
	RelEvolvesFrom:         true,
	RelTensionsWith:        true,
	RelRequiresNegotiation: true,
	RelLinkedTo:            true,
}

// Edge is a typed, directed link between two ids.
type Edge struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Relation Relation `json:"relation"`
	Seq      int64    `json:"seq"`
}

// ValidationState is derived from endorse and evidence events
// referencing a decision. It is recomputed on demand, never stored.
type ValidationState string

const (
	StateProposed      ValidationState = "proposed"
	StateConsensusOnly ValidationState = "consensus_only"
	StateEvidenceOnly  ValidationState = "evidence_only"
	StateValidated     ValidationState = "validated"
)

// Severity grades a detected tension.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// severityRank orders severities for comparisons; higher is worse.
var severityRank = map[Severity]int{
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityCritical: 3,
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}
