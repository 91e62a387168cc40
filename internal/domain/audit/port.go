package audit

import "context"

// Store port (interface for ledger persistence). Append is called from a
// single writer goroutine; implementations still guard their backing store
// because Verify/Query may run concurrently with writes.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	Query(ctx context.Context, f QueryFilter) ([]*Entry, error)
	Count(ctx context.Context, f QueryFilter) (int64, error)
	Statistics(ctx context.Context) (*Statistics, error)
	VerifyIntegrity(ctx context.Context) (*IntegrityReport, error)
	Export(ctx context.Context) (*Envelope, error)
	Close() error
}
