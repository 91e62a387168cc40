package audit

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalPayload renders the entry payload in the byte form both digests
// are computed over. encoding/json emits struct fields in declaration order,
// so marshal-recompute round-trips are stable across backends.
func CanonicalPayload(d *ReportData) ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("canonical payload: %w", err)
	}
	return b, nil
}

// ComputeHash returns the primary integrity digest (SHA-256, hex).
func ComputeHash(d *ReportData) (string, error) {
	b, err := CanonicalPayload(d)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// ComputeChecksum returns the secondary digest (MD5, hex). A different
// algorithm on purpose: two independent signals must both be forged for a
// tampered entry to verify clean.
func ComputeChecksum(d *ReportData) (string, error) {
	b, err := CanonicalPayload(d)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:]), nil
}

// Stamp fills in Hash and Integrity from the entry's own payload.
func (e *Entry) Stamp() error {
	h, err := ComputeHash(&e.Data)
	if err != nil {
		return err
	}
	c, err := ComputeChecksum(&e.Data)
	if err != nil {
		return err
	}
	e.Hash = h
	e.Integrity = Integrity{Checksum: c, Version: IntegrityVersion}
	return nil
}

// Verify recomputes both digests over the stored payload and returns any
// mismatches. Detection only; a mismatch is evidence of corruption or
// tampering, not a recoverable condition.
func (e *Entry) Verify() []Mismatch {
	var out []Mismatch
	h, err := ComputeHash(&e.Data)
	if err != nil {
		out = append(out, Mismatch{EntryID: e.ID, Field: "hash", Expected: e.Hash, Actual: "unmarshalable payload"})
		return out
	}
	if h != e.Hash {
		out = append(out, Mismatch{EntryID: e.ID, Field: "hash", Expected: e.Hash, Actual: h})
	}
	c, _ := ComputeChecksum(&e.Data)
	if c != e.Integrity.Checksum {
		out = append(out, Mismatch{EntryID: e.ID, Field: "checksum", Expected: e.Integrity.Checksum, Actual: c})
	}
	return out
}
