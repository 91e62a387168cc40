package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/euii-ii/NovaGuard-sub005/internal/application"
	"github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
	"github.com/euii-ii/NovaGuard-sub005/internal/domain/audit"
)

const topFindingsLimit = 5

type Store struct {
	db    *sql.DB
	clock application.Clock
}

func NewStore(db *sql.DB, clock application.Clock) *Store {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Store{db: db, clock: clock}
}

// EnsureSchema creates the ledger table. Entries are append-only: there is
// no UPDATE or DELETE anywhere in this store.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS audit_ledger (
 id            VARCHAR(64)  NOT NULL PRIMARY KEY,
 ts            DATETIME(3)  NOT NULL,
 contract_name VARCHAR(255) NOT NULL,
 status        VARCHAR(16)  NOT NULL,
 risk_level    VARCHAR(16)  NOT NULL,
 overall_score INT          NOT NULL,
 hash          CHAR(64)     NOT NULL,
 checksum      CHAR(32)     NOT NULL,
 integrity_ver VARCHAR(8)   NOT NULL,
 payload       MEDIUMTEXT   NOT NULL,
 INDEX idx_ledger_ts (ts),
 INDEX idx_ledger_contract (contract_name)
);`
	_, err := s.db.ExecContext(ctx, q)
	return err
}

// Append inserts one stamped entry.
func (s *Store) Append(ctx context.Context, e *audit.Entry) error {
	payload, err := audit.CanonicalPayload(&e.Data)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO audit_ledger
(id, ts, contract_name, status, risk_level, overall_score, hash, checksum, integrity_ver, payload)
VALUES (?,?,?,?,?,?,?,?,?,?);
`
	_, err = s.db.ExecContext(ctx, q,
		e.ID, e.Timestamp, e.Data.ContractName, e.Data.Status, e.Data.RiskLevel,
		e.Data.OverallScore, e.Hash, e.Integrity.Checksum, e.Integrity.Version, payload,
	)
	return err
}

// filterClause appends WHERE terms for every set constraint.
func filterClause(f audit.QueryFilter, args []interface{}) (string, []interface{}) {
	clause := ""
	if !f.From.IsZero() {
		clause += " AND ts >= ?"
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		clause += " AND ts <= ?"
		args = append(args, f.To)
	}
	if f.Status != "" {
		clause += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.RiskLevel != "" {
		clause += " AND risk_level = ?"
		args = append(args, f.RiskLevel)
	}
	if f.ContractName != "" {
		clause += " AND contract_name = ?"
		args = append(args, f.ContractName)
	}
	return clause, args
}

// Query returns matching entries newest-first with offset/limit pagination.
func (s *Store) Query(ctx context.Context, f audit.QueryFilter) ([]*audit.Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q := `
SELECT id, ts, hash, checksum, integrity_ver, payload
FROM audit_ledger
WHERE 1=1`
	clause, args := filterClause(f, nil)
	q += clause + "\nORDER BY ts DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	var out []*audit.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of entries matching the filter.
func (s *Store) Count(ctx context.Context, f audit.QueryFilter) (int64, error) {
	q := "SELECT COUNT(*) FROM audit_ledger WHERE 1=1"
	clause, args := filterClause(f, nil)
	q += clause

	var n int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Statistics aggregates in SQL where the dialect allows and finishes the
// finding-frequency ranking from payloads in Go.
func (s *Store) Statistics(ctx context.Context) (*audit.Statistics, error) {
	stats := &audit.Statistics{RiskDistribution: map[analysis.RiskLevel]int{}}
	now := s.clock.Now()

	const totals = `
SELECT COUNT(*)                                        AS total,
       COALESCE(SUM(status = 'failed'), 0)             AS failed,
       COALESCE(AVG(CASE WHEN status <> 'failed' THEN overall_score END), 0) AS avg_score,
       COALESCE(SUM(ts >= ?), 0)                       AS last24h,
       COALESCE(SUM(ts >= ?), 0)                       AS last7d
FROM audit_ledger;`
	var failed int
	if err := s.db.QueryRowContext(ctx, totals,
		now.Add(-24*time.Hour), now.Add(-7*24*time.Hour),
	).Scan(&stats.TotalAudits, &failed, &stats.AverageScore, &stats.Last24h, &stats.Last7d); err != nil {
		return nil, err
	}
	stats.FailedAudits = failed
	stats.SuccessfulAudits = stats.TotalAudits - failed

	const byRisk = `SELECT risk_level, COUNT(*) FROM audit_ledger GROUP BY risk_level;`
	rows, err := s.db.QueryContext(ctx, byRisk)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, err
		}
		stats.RiskDistribution[analysis.RiskLevel(level)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totalFindings, top, err := findingFrequencies(ctx, s.db)
	if err != nil {
		return nil, err
	}
	stats.TotalFindings = totalFindings
	stats.TopFindings = top
	return stats, nil
}

// findingFrequencies scans payloads for the (category, severity) ranking;
// exploding JSON arrays portably across dialects is not worth the SQL.
func findingFrequencies(ctx context.Context, db *sql.DB) (int, []audit.FindingFrequency, error) {
	rows, err := db.QueryContext(ctx, "SELECT payload FROM audit_ledger")
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	type pair struct {
		category string
		severity analysis.Severity
	}
	freq := map[pair]int{}
	total := 0
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return 0, nil, err
		}
		var data audit.ReportData
		if err := json.Unmarshal(payload, &data); err != nil {
			continue
		}
		total += len(data.Findings)
		for _, f := range data.Findings {
			freq[pair{f.Category, f.Severity}]++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}

	out := make([]audit.FindingFrequency, 0, len(freq))
	for p, n := range freq {
		out = append(out, audit.FindingFrequency{Category: p.category, Severity: p.severity, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > topFindingsLimit {
		out = out[:topFindingsLimit]
	}
	return total, out, nil
}

// VerifyIntegrity recomputes both digests for every row.
func (s *Store) VerifyIntegrity(ctx context.Context) (*audit.IntegrityReport, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, ts, hash, checksum, integrity_ver, payload FROM audit_ledger ORDER BY ts, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	report := &audit.IntegrityReport{VerifiedAt: s.clock.Now().UTC()}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		report.Mismatches = append(report.Mismatches, e.Verify()...)
		report.Checked++
	}
	return report, rows.Err()
}

// Export rebuilds the envelope snapshot from all rows, oldest first.
func (s *Store) Export(ctx context.Context) (*audit.Envelope, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, ts, hash, checksum, integrity_ver, payload FROM audit_ledger ORDER BY ts, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	env := &audit.Envelope{Version: audit.EnvelopeVersion, Created: s.clock.Now().UTC()}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		env.Audits = append(env.Audits, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	env.Metadata.TotalAudits = len(env.Audits)
	if n := len(env.Audits); n > 0 {
		env.Metadata.LastAudit = env.Audits[n-1].Timestamp
	}
	return env, nil
}

func (s *Store) Close() error { return s.db.Close() }

// scanEntry decodes one ledger row.
func scanEntry(rows *sql.Rows) (*audit.Entry, error) {
	var e audit.Entry
	var payload []byte
	if err := rows.Scan(&e.ID, &e.Timestamp, &e.Hash, &e.Integrity.Checksum, &e.Integrity.Version, &payload); err != nil {
		return nil, fmt.Errorf("scanning ledger row: %w", err)
	}
	if err := json.Unmarshal(payload, &e.Data); err != nil {
		return nil, fmt.Errorf("decoding ledger payload: %w", err)
	}
	return &e, nil
}
