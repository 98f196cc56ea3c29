package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/courtsync-io/courtsync/internal/backoff"
	"github.com/courtsync-io/courtsync/internal/chrono"
	"github.com/courtsync-io/courtsync/internal/logging"
	"github.com/courtsync-io/courtsync/internal/partition"
	"github.com/courtsync-io/courtsync/internal/record"
	"github.com/courtsync-io/courtsync/internal/source"
)

// ScannerConfig configures the discovery scan.
type ScannerConfig struct {
	// Retry is the backoff policy for a partition's enumeration.
	Retry backoff.Policy

	// Order is the precedence order for owner assignment.
	// Nil means partition.DefaultOrder.
	Order partition.Order
}

// DefaultScannerConfig returns a ScannerConfig with sensible defaults.
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{Retry: backoff.DefaultPolicy()}
}

// MetricsRecorder receives per-partition scan outcomes.
type MetricsRecorder interface {
	RecordScan(partition string, durationSeconds float64, success bool)
	RecordCandidates(partition string, count int)
}

// Scanner enumerates candidates across partitions and builds the index.
type Scanner struct {
	cfg     ScannerConfig
	lister  source.Lister
	logger  *logging.Logger
	metrics MetricsRecorder
}

// NewScanner creates a Scanner.
func NewScanner(cfg ScannerConfig, lister source.Lister, logger *logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.Global()
	}
	return &Scanner{cfg: cfg, lister: lister, logger: logger}
}

// WithMetrics attaches a metrics recorder and returns the scanner.
func (s *Scanner) WithMetrics(m MetricsRecorder) *Scanner {
	s.metrics = m
	return s
}

// Scan enumerates every partition's candidates concurrently and builds the
// discovery index for the date.
//
// A partition whose enumeration fails after retries is flagged partial and
// excluded; the scan itself only fails when the context is cancelled. Owner
// assignment depends only on the candidate sets, never on the completion
// order of the concurrent scans.
func (s *Scanner) Scan(ctx context.Context, date chrono.Date, keys []partition.Key) (*Index, error) {
	type scanResult struct {
		key partition.Key
		ids []record.GameID
		err error
	}

	results := make(chan scanResult, len(keys))
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key partition.Key) {
			defer wg.Done()
			start := time.Now()
			var ids []record.GameID
			err := backoff.Do(ctx, s.cfg.Retry, source.IsTransient, func(ctx context.Context) error {
				var listErr error
				ids, listErr = s.lister.ListCandidates(ctx, date, key)
				return listErr
			})
			if s.metrics != nil {
				s.metrics.RecordScan(key.String(), time.Since(start).Seconds(), err == nil)
				if err == nil {
					s.metrics.RecordCandidates(key.String(), len(ids))
				}
			}
			results <- scanResult{key: key, ids: ids, err: err}
		}(key)
	}
	wg.Wait()
	close(results)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := make(map[partition.Key][]record.GameID, len(keys))
	var partial []partition.Key
	for res := range results {
		if res.err != nil {
			s.logger.Warnf("partition enumeration failed, flagging partial", map[string]any{
				"partition": res.key.String(),
				"date":      date.ISO(),
				"error":     res.err.Error(),
			})
			partial = append(partial, res.key)
			continue
		}
		s.logger.Infof("enumerated partition candidates", map[string]any{
			"partition": res.key.String(),
			"date":      date.ISO(),
			"games":     len(res.ids),
		})
		candidates[res.key] = res.ids
	}

	return Build(date, candidates, partial, s.cfg.Order), nil
}
