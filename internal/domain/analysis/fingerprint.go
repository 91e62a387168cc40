package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// NormalizeSource collapses whitespace so formatting-only differences map to
// the same fingerprint.
func NormalizeSource(src string) string {
	lines := strings.Split(src, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, strings.Join(strings.Fields(l), " "))
	}
	return strings.Join(out, "\n")
}

// Fingerprint computes the deterministic cache/dedup key for a request:
// a digest over (normalized source, sorted agent set, mode). The agent
// order a caller happened to use must not change the key.
func Fingerprint(source string, agents []string, mode Mode) string {
	sorted := make([]string, len(agents))
	copy(sorted, agents)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(NormalizeSource(source)))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, ",")))
	h.Write([]byte{0})
	h.Write([]byte(mode))
	return hex.EncodeToString(h.Sum(nil))
}
