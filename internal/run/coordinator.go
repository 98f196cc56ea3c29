// Package run executes partition work plans concurrently and reports
// per-partition outcomes.
package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/courtsync-io/courtsync/internal/backoff"
	"github.com/courtsync-io/courtsync/internal/chrono"
	"github.com/courtsync-io/courtsync/internal/logging"
	"github.com/courtsync-io/courtsync/internal/partition"
	"github.com/courtsync-io/courtsync/internal/plan"
	"github.com/courtsync-io/courtsync/internal/record"
	"github.com/courtsync-io/courtsync/internal/source"
)

// Config configures plan execution.
type Config struct {
	// Retry is the backoff policy applied to each fetch item.
	Retry backoff.Policy

	// ItemTimeoutMs bounds a single fetch attempt.
	ItemTimeoutMs int64

	// CopyWaitMs bounds how long a copy item waits for the owning partition
	// to complete before degrading to a fetch.
	CopyWaitMs int64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Retry:         backoff.DefaultPolicy(),
		ItemTimeoutMs: 60000,
		CopyWaitMs:    300000,
	}
}

func (c Config) normalize() Config {
	if c.ItemTimeoutMs <= 0 {
		c.ItemTimeoutMs = 60000
	}
	if c.CopyWaitMs <= 0 {
		c.CopyWaitMs = 300000
	}
	return c
}

// Report aggregates one partition's outcome.
type Report struct {
	Partition partition.Key

	// Fetched counts games scraped from the source.
	Fetched int
	// Copied counts games copied from the owning partition's artifact.
	Copied int
	// Skipped counts games skipped (already present, or unparseable pages).
	Skipped int
	// Failed counts items that exhausted retries.
	Failed int

	// Fingerprint is the final artifact fingerprint; zero if no artifact was
	// produced.
	Fingerprint record.Fingerprint

	// Err is set when the partition aborted as a whole (cancellation).
	// Item-level failures are counted in Failed instead.
	Err error
}

// Clean reports whether every item succeeded and the partition finished.
func (r Report) Clean() bool {
	return r.Err == nil && r.Failed == 0
}

func (r Report) String() string {
	return fmt.Sprintf("%s: fetched=%d copied=%d skipped=%d failed=%d",
		r.Partition, r.Fetched, r.Copied, r.Skipped, r.Failed)
}

// MetricsRecorder receives execution metrics. Decouples this package from
// the metrics package; a nil recorder disables recording.
type MetricsRecorder interface {
	RecordItem(action, outcome string)
	RecordPartition(outcome string, durationSeconds float64)
}

// Coordinator executes partition plans in parallel.
//
// Each partition runs in isolation: its plan, a private slice of reports and
// its own artifact file. The only cross-partition coupling is the readiness
// signal a copy item waits on before reading the owner's finished artifact.
type Coordinator struct {
	cfg     Config
	fetcher source.Fetcher
	store   *record.Store
	logger  *logging.Logger
	metrics MetricsRecorder
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg Config, fetcher source.Fetcher, store *record.Store, logger *logging.Logger, metrics MetricsRecorder) *Coordinator {
	if logger == nil {
		logger = logging.Global()
	}
	return &Coordinator{
		cfg:     cfg.normalize(),
		fetcher: fetcher,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Run executes every plan concurrently and returns a report per partition.
//
// One partition's failure never cancels its siblings; cancellation of ctx
// stops new work everywhere while letting in-flight attempts finish or time
// out.
func (c *Coordinator) Run(ctx context.Context, date chrono.Date, plans map[partition.Key]plan.Plan) map[partition.Key]Report {
	// Completion barriers, one per partition. A partition's channel closes
	// when its plan has finished (cleanly or not), which is the point its
	// artifact stops changing and copies may read it.
	done := make(map[partition.Key]chan struct{}, len(plans))
	for key := range plans {
		done[key] = make(chan struct{})
	}

	reports := make(map[partition.Key]Report, len(plans))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for key, p := range plans {
		wg.Add(1)
		go func(key partition.Key, p plan.Plan) {
			defer wg.Done()
			started := time.Now()
			rep := c.runPartition(ctx, date, p, done)
			close(done[key])

			outcome := "clean"
			if !rep.Clean() {
				outcome = "failed"
			}
			if c.metrics != nil {
				c.metrics.RecordPartition(outcome, time.Since(started).Seconds())
			}

			mu.Lock()
			reports[key] = rep
			mu.Unlock()
		}(key, p)
	}
	wg.Wait()

	return reports
}

// runPartition executes one plan sequentially in planner order.
func (c *Coordinator) runPartition(ctx context.Context, date chrono.Date, p plan.Plan, done map[partition.Key]chan struct{}) Report {
	rep := Report{Partition: p.Target}
	log := c.logger.With(map[string]any{
		"partition": p.Target.String(),
		"date":      date.ISO(),
	})

	for _, item := range p.Items {
		if err := ctx.Err(); err != nil {
			rep.Err = err
			break
		}

		switch item.Action {
		case plan.ActionCopy:
			c.runCopy(ctx, date, p.Target, item, done, &rep, log)
		default:
			c.runFetch(ctx, date, p.Target, item, &rep, log)
		}
	}

	if rep.Err == nil && c.store.Exists(date, p.Target) {
		fp, err := c.store.Fingerprint(date, p.Target)
		if err != nil {
			log.Errorf("fingerprint artifact", map[string]any{"error": err.Error()})
			rep.Err = err
		} else {
			rep.Fingerprint = fp
		}
	}

	log.Infof("partition complete", map[string]any{
		"fetched": rep.Fetched,
		"copied":  rep.Copied,
		"skipped": rep.Skipped,
		"failed":  rep.Failed,
	})
	return rep
}

// runCopy waits for the owning partition to finish, then copies the game's
// rows out of the owner's artifact. A missing barrier, a wait timeout or a
// game absent from the owner's output all degrade to fetching.
func (c *Coordinator) runCopy(ctx context.Context, date chrono.Date, target partition.Key, item plan.WorkItem, done map[partition.Key]chan struct{}, rep *Report, log *logging.Logger) {
	ownerDone, ok := done[item.From]
	if ok {
		wait := time.NewTimer(time.Duration(c.cfg.CopyWaitMs) * time.Millisecond)
		defer wait.Stop()
		select {
		case <-ownerDone:
		case <-wait.C:
			log.Warnf("owner not complete in time, fetching instead", map[string]any{
				"game":  item.ID.String(),
				"owner": item.From.String(),
			})
			c.runFetch(ctx, date, target, item, rep, log)
			return
		case <-ctx.Done():
			rep.Err = ctx.Err()
			return
		}
	}

	err := c.store.Copy(date, item.ID, item.From, target)
	if errors.Is(err, record.ErrGameNotFound) || errors.Is(err, os.ErrNotExist) {
		log.Warnf("game missing from owner artifact, fetching instead", map[string]any{
			"game":  item.ID.String(),
			"owner": item.From.String(),
		})
		c.runFetch(ctx, date, target, item, rep, log)
		return
	}
	if err != nil {
		log.Errorf("copy failed", map[string]any{
			"game":  item.ID.String(),
			"owner": item.From.String(),
			"error": err.Error(),
		})
		rep.Failed++
		if c.metrics != nil {
			c.metrics.RecordItem("copy", "failed")
		}
		return
	}

	rep.Copied++
	if c.metrics != nil {
		c.metrics.RecordItem("copy", "ok")
	}
}

// runFetch scrapes one game with bounded retries and appends it to the
// target's artifact.
func (c *Coordinator) runFetch(ctx context.Context, date chrono.Date, target partition.Key, item plan.WorkItem, rep *Report, log *logging.Logger) {
	id := item.ID
	present, err := c.store.HasGame(date, target, id)
	if err == nil && present {
		rep.Skipped++
		if c.metrics != nil {
			c.metrics.RecordItem("fetch", "skipped")
		}
		return
	}

	var game *record.Game
	err = backoff.Do(ctx, c.cfg.Retry, source.IsTransient, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.ItemTimeoutMs)*time.Millisecond)
		defer cancel()
		var fetchErr error
		game, fetchErr = c.fetcher.FetchGame(attemptCtx, date, target, id)
		return fetchErr
	})

	switch {
	case err == nil:
		game.Duplicate = game.Duplicate || item.Duplicate
		if err := c.store.Append(date, target, game); err != nil {
			log.Errorf("persist game", map[string]any{"game": id.String(), "error": err.Error()})
			rep.Failed++
			if c.metrics != nil {
				c.metrics.RecordItem("fetch", "failed")
			}
			return
		}
		rep.Fetched++
		if c.metrics != nil {
			c.metrics.RecordItem("fetch", "ok")
		}
	case source.IsParse(err):
		log.Warnf("unparseable game page, skipping", map[string]any{"game": id.String(), "error": err.Error()})
		rep.Skipped++
		if c.metrics != nil {
			c.metrics.RecordItem("fetch", "skipped")
		}
	default:
		log.Errorf("fetch failed after retries", map[string]any{"game": id.String(), "error": err.Error()})
		rep.Failed++
		if c.metrics != nil {
			c.metrics.RecordItem("fetch", "failed")
		}
	}
}
