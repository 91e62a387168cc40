// Package file implements the ledger store as an append-only stream of
// length-prefixed JSON records. Appends are O(1) writes to the tail; an
// in-memory index rebuilt on open serves queries and statistics.
package file

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/euii-ii/NovaGuard-sub005/internal/application"
	"github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
	"github.com/euii-ii/NovaGuard-sub005/internal/domain/audit"
)

// maxRecordSize guards the reader against a corrupted length prefix.
const maxRecordSize = 16 << 20

// topFindingsLimit caps the (category, severity) ranking in statistics.
const topFindingsLimit = 5

// ledgerFile is the subset of *os.File the store reads and writes through.
type ledgerFile interface {
	io.Reader
	io.Writer
	io.Closer
	Seek(offset int64, whence int) (int64, error)
	Truncate(size int64) error
	Sync() error
}

type Store struct {
	mu      sync.Mutex
	path    string
	f       ledgerFile
	size    int64          // committed tail offset
	entries []*audit.Entry // index, commit order
	clock   application.Clock
}

// Open creates or replays the ledger file at path. A truncated trailing
// record (torn write) is tolerated: everything before it is kept and the
// tail is rewound so the next append lands cleanly. A full-length record
// that does not parse stays in the file as evidence and is skipped by the
// index; a destroyed length prefix is unrecoverable and fails the open.
func Open(path string, clock application.Clock) (*Store, error) {
	if clock == nil {
		clock = application.SystemClock{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ledger open: %w", err)
	}

	s := &Store{path: path, f: f, clock: clock}
	valid, err := s.replay()
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Truncate(valid); err != nil {
		f.Close()
		return nil, fmt.Errorf("ledger truncate tail: %w", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	s.size = valid
	return s, nil
}

// replay scans the stream and rebuilds the index, returning the offset
// after the last framed record. Only a short read at EOF (torn write) ends
// the scan early; an unparsable record with intact framing is skipped and
// left for VerifyIntegrity to report.
func (s *Store) replay() (int64, error) {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	r := bufio.NewReader(s.f)
	var offset int64
	for {
		var hdr [4]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return offset, nil
			}
			return 0, fmt.Errorf("ledger replay: %w", err)
		}
		n := binary.BigEndian.Uint32(hdr[:])
		if n == 0 || n > maxRecordSize {
			// A whole 4-byte prefix with an impossible value cannot be a
			// torn write. Rewinding here would erase every later record.
			return 0, fmt.Errorf("ledger corrupt length prefix at offset %d", offset)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return offset, nil
			}
			return 0, fmt.Errorf("ledger replay: %w", err)
		}
		offset += int64(4 + n)
		var e audit.Entry
		if err := json.Unmarshal(buf, &e); err != nil {
			// Kept in the file as evidence; verification surfaces it.
			continue
		}
		s.entries = append(s.entries, &e)
	}
}

// Append persists one entry at the tail and indexes it.
func (s *Store) Append(ctx context.Context, e *audit.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("ledger encode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(buf)))
	if _, err := s.f.Write(hdr[:]); err != nil {
		s.rewind()
		return fmt.Errorf("ledger write: %w", err)
	}
	if _, err := s.f.Write(buf); err != nil {
		s.rewind()
		return fmt.Errorf("ledger write: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		s.rewind()
		return fmt.Errorf("ledger sync: %w", err)
	}
	s.size += int64(4 + len(buf))
	s.entries = append(s.entries, e)
	return nil
}

// rewind drops a partially written record so later appends do not commit
// after a torn tail. Caller holds mu.
func (s *Store) rewind() {
	if err := s.f.Truncate(s.size); err != nil {
		// The torn record stays; replay rewinds it on the next open.
		return
	}
	s.f.Seek(s.size, io.SeekStart)
}

// Query returns matching entries newest-first with offset/limit pagination.
func (s *Store) Query(ctx context.Context, f audit.QueryFilter) ([]*audit.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*audit.Entry, 0)
	for i := len(s.entries) - 1; i >= 0; i-- {
		if f.Matches(s.entries[i]) {
			matched = append(matched, s.entries[i])
		}
	}
	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []*audit.Entry{}, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

// Count returns the number of entries matching the filter.
func (s *Store) Count(ctx context.Context, f audit.QueryFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, e := range s.entries {
		if f.Matches(e) {
			n++
		}
	}
	return n, nil
}

// Statistics aggregates the whole index in one pass.
func (s *Store) Statistics(ctx context.Context) (*audit.Statistics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	stats := &audit.Statistics{
		RiskDistribution: map[analysis.RiskLevel]int{},
	}
	type pair struct {
		category string
		severity analysis.Severity
	}
	freq := map[pair]int{}

	var scoreSum, scored int
	for _, e := range s.entries {
		stats.TotalAudits++
		switch e.Data.Status {
		case audit.StatusFailed:
			stats.FailedAudits++
		default:
			stats.SuccessfulAudits++
			scoreSum += e.Data.OverallScore
			scored++
		}
		stats.RiskDistribution[e.Data.RiskLevel]++
		stats.TotalFindings += len(e.Data.Findings)
		for _, f := range e.Data.Findings {
			freq[pair{f.Category, f.Severity}]++
		}
		if age := now.Sub(e.Timestamp); age <= 24*time.Hour {
			stats.Last24h++
		}
		if age := now.Sub(e.Timestamp); age <= 7*24*time.Hour {
			stats.Last7d++
		}
	}
	if scored > 0 {
		stats.AverageScore = float64(scoreSum) / float64(scored)
	}

	for p, n := range freq {
		stats.TopFindings = append(stats.TopFindings, audit.FindingFrequency{
			Category: p.category, Severity: p.severity, Count: n,
		})
	}
	sort.Slice(stats.TopFindings, func(i, j int) bool {
		if stats.TopFindings[i].Count != stats.TopFindings[j].Count {
			return stats.TopFindings[i].Count > stats.TopFindings[j].Count
		}
		return stats.TopFindings[i].Category < stats.TopFindings[j].Category
	})
	if len(stats.TopFindings) > topFindingsLimit {
		stats.TopFindings = stats.TopFindings[:topFindingsLimit]
	}
	return stats, nil
}

// Export returns the full-ledger envelope snapshot projection.
func (s *Store) Export(ctx context.Context) (*audit.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	env := &audit.Envelope{
		Version: audit.EnvelopeVersion,
		Created: s.clock.Now().UTC(),
		Audits:  append([]*audit.Entry{}, s.entries...),
	}
	env.Metadata.TotalAudits = len(s.entries)
	if n := len(s.entries); n > 0 {
		env.Metadata.LastAudit = s.entries[n-1].Timestamp
	}
	return env, nil
}

// VerifyIntegrity re-reads every record from disk and recomputes both
// digests. Reading from disk rather than the index means index corruption
// cannot mask file corruption.
func (s *Store) VerifyIntegrity(ctx context.Context) (*audit.IntegrityReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("ledger verify open: %w", err)
	}
	defer f.Close()

	report := &audit.IntegrityReport{VerifiedAt: s.clock.Now().UTC()}
	r := bufio.NewReader(f)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var hdr [4]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			break
		}
		n := binary.BigEndian.Uint32(hdr[:])
		if n == 0 || n > maxRecordSize {
			break
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			break
		}
		var e audit.Entry
		if err := json.Unmarshal(buf, &e); err != nil {
			report.Mismatches = append(report.Mismatches, audit.Mismatch{
				Field: "structure", Expected: "parsable record", Actual: "unparsable record",
			})
			report.Checked++
			continue
		}
		report.Mismatches = append(report.Mismatches, e.Verify()...)
		report.Checked++
	}
	// A scan that stops short of the index means record framing was
	// destroyed; the unreachable tail is itself a mismatch.
	if report.Checked < len(s.entries) {
		report.Mismatches = append(report.Mismatches, audit.Mismatch{
			Field:    "structure",
			Expected: fmt.Sprintf("%d records", len(s.entries)),
			Actual:   fmt.Sprintf("%d records", report.Checked),
		})
	}
	return report, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
