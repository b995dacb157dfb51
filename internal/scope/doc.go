// Package scope promotes local knowledge into the shared scope and
// merges shared events pulled from teammates.
//
// Both operations are idempotent. Share dedupes on the content
// fingerprint, so promoting the same artifact twice writes one event;
// Sync dedupes on event id and fingerprint, so merging the same pull
// twice changes nothing. Neither operation ever writes to the local
// scope.
package scope
