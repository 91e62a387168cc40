package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "github.com/lib/pq"

	"github.com/euii-ii/NovaGuard-sub005/internal/application"
	"github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
	"github.com/euii-ii/NovaGuard-sub005/internal/domain/audit"
)

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

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the ledger table. Append-only by convention: no
// UPDATE or DELETE exists in this store.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{`
CREATE TABLE IF NOT EXISTS audit_ledger (
 id            VARCHAR(64)  NOT NULL PRIMARY KEY,
 ts            TIMESTAMPTZ  NOT NULL,
 contract_name VARCHAR(255) NOT NULL,
 status        VARCHAR(16)  NOT NULL,
 risk_level    VARCHAR(16)  NOT NULL,
 overall_score INT          NOT NULL,
 hash          CHAR(64)     NOT NULL,
 checksum      CHAR(32)     NOT NULL,
 integrity_ver VARCHAR(8)   NOT NULL,
 payload       TEXT         NOT NULL
);`,
		"CREATE INDEX IF NOT EXISTS idx_ledger_ts ON audit_ledger (ts);",
		"CREATE INDEX IF NOT EXISTS idx_ledger_contract ON audit_ledger (contract_name);",
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Append(ctx context.Context, e *audit.Entry) error {
	payload, err := audit.CanonicalPayload(&e.Data)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO audit_ledger
(id, ts, contract_name, status, risk_level, overall_score, hash, checksum, integrity_ver, payload)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);
`
	_, err = s.db.ExecContext(ctx, q,
		e.ID, e.Timestamp, e.Data.ContractName, e.Data.Status, e.Data.RiskLevel,
		e.Data.OverallScore, e.Hash, e.Integrity.Checksum, e.Integrity.Version, payload,
	)
	return err
}

func filterClause(f audit.QueryFilter, args []interface{}) (string, []interface{}) {
	clause := ""
	if !f.From.IsZero() {
		args = append(args, f.From)
		clause += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		clause += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		clause += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.RiskLevel != "" {
		args = append(args, f.RiskLevel)
		clause += fmt.Sprintf(" AND risk_level = $%d", len(args))
	}
	if f.ContractName != "" {
		args = append(args, f.ContractName)
		clause += fmt.Sprintf(" AND contract_name = $%d", len(args))
	}
	return clause, args
}

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
	q += clause
	args = append(args, limit)
	q += fmt.Sprintf("\nORDER BY ts DESC, id DESC LIMIT $%d", len(args))
	args = append(args, f.Offset)
	q += fmt.Sprintf(" OFFSET $%d", len(args))

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

func (s *Store) Statistics(ctx context.Context) (*audit.Statistics, error) {
	stats := &audit.Statistics{RiskDistribution: map[analysis.RiskLevel]int{}}
	now := s.clock.Now()

	const totals = `
SELECT COUNT(*)                                                AS total,
       COUNT(*) FILTER (WHERE status = 'failed')               AS failed,
       COALESCE(AVG(overall_score) FILTER (WHERE status <> 'failed'), 0) AS avg_score,
       COUNT(*) FILTER (WHERE ts >= $1)                        AS last24h,
       COUNT(*) FILTER (WHERE ts >= $2)                        AS last7d
FROM audit_ledger;`
	var failed int
	if err := s.db.QueryRowContext(ctx, totals,
		now.Add(-24*time.Hour), now.Add(-7*24*time.Hour),
	).Scan(&stats.TotalAudits, &failed, &stats.AverageScore, &stats.Last24h, &stats.Last7d); err != nil {
		return nil, err
	}
	stats.FailedAudits = failed
	stats.SuccessfulAudits = stats.TotalAudits - failed

	rows, err := s.db.QueryContext(ctx, "SELECT risk_level, COUNT(*) FROM audit_ledger GROUP BY risk_level")
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

	total, top, err := findingFrequencies(ctx, s.db)
	if err != nil {
		return nil, err
	}
	stats.TotalFindings = total
	stats.TopFindings = top
	return stats, nil
}

const topFindingsLimit = 5

// findingFrequencies scans payloads for the (category, severity) ranking.
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
