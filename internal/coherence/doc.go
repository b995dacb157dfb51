// Package coherence surfaces friction in the knowledge graph: pairs of
// artifacts that lexically collide, decisions whose support is thin,
// and proposals that brush against hard constraints.
//
// Everything here is advisory. Detection reads an immutable graph
// snapshot and reports; it never writes events and never blocks a
// capture.
package coherence
