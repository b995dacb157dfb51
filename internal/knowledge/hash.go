package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Domain prefix for content fingerprints. Version suffix enables future
// algorithm migration.
const domainShare = "cairn/share/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte separator
// prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the content fingerprint of an artifact's
// shareable content. The same kind, text, and tag set always produce
// the same fingerprint, so re-sharing an unchanged artifact is a no-op
// after sync deduplication.
//
// Text is NFC normalized and tags are sorted before hashing, so
// fingerprints are stable across writers that disagree on unicode form
// or tag order.
func Fingerprint(kind ArtifactKind, text string, tags []string) string {
	sorted := make([]string, len(tags))
	copy(sorted, tags)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString(string(kind))
	b.WriteByte(0x1f)
	b.WriteString(norm.NFC.String(text))
	for _, tag := range sorted {
		b.WriteByte(0x1f)
		b.WriteString(norm.NFC.String(tag))
	}
	return hashWithDomain(domainShare, []byte(b.String()))
}
