// Package audit wires finished analysis reports into the tamper-evident
// ledger. Writes go through a bounded queue drained by a single goroutine:
// the backing stores require a single-writer discipline and the analysis
// response path must never wait on ledger IO.
package audit

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/euii-ii/NovaGuard-sub005/internal/application"
	analysisdom "github.com/euii-ii/NovaGuard-sub005/internal/domain/analysis"
	domain "github.com/euii-ii/NovaGuard-sub005/internal/domain/audit"
)

// appendTimeout bounds one ledger write.
const appendTimeout = 10 * time.Second

// ArtifactStore is the optional object store for full sanitized report
// payloads. A nil store disables artifact upload.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Service implements the ledger use-cases over a Store backend.
type Service struct {
	Store     domain.Store
	Artifacts ArtifactStore
	Clock     application.Clock

	queue   chan *analysisdom.Report
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
	dropped uint64
}

// NewService starts the writer goroutine. queueSize bounds pending writes;
// overflow drops the entry with a logged warning.
func NewService(store domain.Store, artifacts ArtifactStore, clock application.Clock, queueSize int) *Service {
	if clock == nil {
		clock = application.SystemClock{}
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	s := &Service{
		Store:     store,
		Artifacts: artifacts,
		Clock:     clock,
		queue:     make(chan *analysisdom.Report, queueSize),
	}
	s.wg.Add(1)
	go s.writer()
	return s
}

// Enqueue hands a finished report to the ledger writer. Never blocks.
func (s *Service) Enqueue(report *analysisdom.Report) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- report:
	default:
		s.dropped++
		log.Printf("audit queue full, dropping entry analysis_id=%s dropped_total=%d",
			report.Metadata.AnalysisID, s.dropped)
	}
}

// writer is the single writer; ledger entries commit in queue order.
func (s *Service) writer() {
	defer s.wg.Done()
	for report := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		if err := s.append(ctx, report); err != nil {
			// Append errors never reach the analysis caller.
			log.Printf("audit append failed analysis_id=%s: %v", report.Metadata.AnalysisID, err)
		}
		cancel()
	}
}

// append sanitizes, stamps, and persists one entry.
func (s *Service) append(ctx context.Context, report *analysisdom.Report) error {
	data := domain.Sanitize(report)

	if s.Artifacts != nil {
		payload, err := domain.CanonicalPayload(&data)
		if err == nil {
			key := fmt.Sprintf("audits/%s.json", data.AnalysisID)
			url, uerr := s.Artifacts.Put(ctx, key, payload, "application/json")
			if uerr != nil {
				log.Printf("audit artifact upload failed analysis_id=%s: %v", data.AnalysisID, uerr)
			} else {
				// Set before stamping so the URL is integrity-covered.
				data.ArtifactURL = url
			}
		}
	}

	entry := &domain.Entry{
		ID:        domain.EntryID(uuid.New().String()),
		Timestamp: s.Clock.Now().UTC(),
		Data:      data,
	}
	if err := entry.Stamp(); err != nil {
		return err
	}
	return s.Store.Append(ctx, entry)
}

// Query returns matching entries newest-first with offset/limit pagination.
func (s *Service) Query(ctx context.Context, f domain.QueryFilter) ([]*domain.Entry, error) {
	return s.Store.Query(ctx, f)
}

// Count returns the number of entries matching the filter.
func (s *Service) Count(ctx context.Context, f domain.QueryFilter) (int64, error) {
	return s.Store.Count(ctx, f)
}

// Statistics aggregates the whole ledger.
func (s *Service) Statistics(ctx context.Context) (*domain.Statistics, error) {
	return s.Store.Statistics(ctx)
}

// VerifyIntegrity recomputes every entry's digests. Detection only.
func (s *Service) VerifyIntegrity(ctx context.Context) (*domain.IntegrityReport, error) {
	return s.Store.VerifyIntegrity(ctx)
}

// Export returns the full-ledger envelope snapshot.
func (s *Service) Export(ctx context.Context) (*domain.Envelope, error) {
	return s.Store.Export(ctx)
}

// Dropped reports how many entries overflowed the queue.
func (s *Service) Dropped() uint64 {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.dropped
}

// Close drains pending writes and stops the writer.
func (s *Service) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.closeMu.Unlock()

	s.wg.Wait()
	return s.Store.Close()
}
