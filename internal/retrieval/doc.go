// Package retrieval ranks knowledge artifacts and symbols against a
// free-text query by token overlap.
//
// Scoring is purely lexical and deterministic: the fraction of query
// tokens present in the candidate. Semantic similarity without shared
// tokens scores zero; the enhance package can widen the query with
// extra tokens, but retrieval itself never calls out.
package retrieval
