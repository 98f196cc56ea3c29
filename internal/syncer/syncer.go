// Package syncer reconciles locally produced artifacts against the remote
// object store and performs idempotent, conflict-detecting uploads.
package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/courtsync-io/courtsync/internal/chrono"
	"github.com/courtsync-io/courtsync/internal/logging"
	"github.com/courtsync-io/courtsync/internal/objectstore"
	"github.com/courtsync-io/courtsync/internal/partition"
	"github.com/courtsync-io/courtsync/internal/record"
)

// Object metadata keys recorded on upload. The sha digest is of the
// uncompressed CSV content, so reconciliation does not depend on the
// compressed representation being byte-stable.
const (
	MetaSHA256     = "artifact-sha256"
	MetaModifiedMs = "artifact-modified-ms"
)

const contentType = "text/csv"

// Action is the outcome of comparing a local artifact to remote state.
type Action string

const (
	// ActionSkip means the remote object already holds this content.
	ActionSkip Action = "skip"

	// ActionUpload means no remote object exists yet.
	ActionUpload Action = "upload"

	// ActionOverwrite means the remote object differs from local content.
	ActionOverwrite Action = "overwrite"
)

// Decision is one planned sync operation. Reconciliation derives decisions
// without mutating anything; Apply performs the write.
type Decision struct {
	Date      chrono.Date
	Partition partition.Key

	// Key is the remote object key.
	Key string

	// LocalPath is the artifact file the decision covers.
	LocalPath string

	// Fingerprint is the local artifact fingerprint at reconcile time.
	Fingerprint record.Fingerprint

	// RemoteETag is the remote object's ETag observed at reconcile time;
	// empty when no remote object existed. Used as the write precondition.
	RemoteETag string

	Action Action
	Reason string
}

// Outcome reports the result of applying one decision.
type Outcome struct {
	Decision

	// Applied is the action actually performed, which can differ from the
	// planned one when the remote changed between reconcile and apply.
	Applied Action

	// Conflict reports an unresolved remote precondition failure.
	Conflict bool

	Err error
}

// Clean reports whether the decision applied without error or unresolved
// conflict.
func (o Outcome) Clean() bool { return o.Err == nil && !o.Conflict }

// MetricsRecorder receives sync metrics; nil disables recording.
type MetricsRecorder interface {
	RecordDecision(action string)
	RecordApply(action string, success bool)
}

// Config configures the sync engine.
type Config struct {
	// Prefix is prepended to every remote key.
	Prefix string

	// Force uploads every artifact regardless of fingerprint comparison.
	Force bool
}

// Engine compares local artifacts with the bucket and writes what differs.
type Engine struct {
	cfg     Config
	remote  objectstore.Store
	local   *record.Store
	logger  *logging.Logger
	metrics MetricsRecorder
}

// New creates a sync engine.
func New(cfg Config, remote objectstore.Store, local *record.Store, logger *logging.Logger, metrics MetricsRecorder) *Engine {
	if logger == nil {
		logger = logging.Global()
	}
	return &Engine{cfg: cfg, remote: remote, local: local, logger: logger, metrics: metrics}
}

// Key returns the remote object key for a partition's artifact.
func (e *Engine) Key(date chrono.Date, key partition.Key) string {
	return objectstore.JoinPrefix(e.cfg.Prefix, e.local.RelKey(date, key)+".gz")
}

// RemoteExists reports whether the partition's artifact is already present
// remotely. Used for the pre-run check that skips already-collected
// partitions.
func (e *Engine) RemoteExists(ctx context.Context, date chrono.Date, key partition.Key) (bool, error) {
	_, err := e.remote.Head(ctx, e.Key(date, key))
	if errors.Is(err, objectstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Reconcile derives a decision for every partition that produced a local
// artifact for the date. Partitions without a local artifact are omitted:
// only cleanly completed partitions are handed to the syncer.
func (e *Engine) Reconcile(ctx context.Context, date chrono.Date, keys []partition.Key) ([]Decision, error) {
	year, month, _ := date.YMD()
	remoteByKey := make(map[string]objectstore.ObjectMeta)
	metas, err := e.remote.List(ctx, objectstore.JoinPrefix(e.cfg.Prefix, year+"/"+month+"/"))
	if err != nil {
		return nil, fmt.Errorf("syncer: list remote: %w", err)
	}
	for _, m := range metas {
		remoteByKey[m.Key] = m
	}

	var decisions []Decision
	for _, pk := range keys {
		if !e.local.Exists(date, pk) {
			continue
		}
		fp, err := e.local.Fingerprint(date, pk)
		if err != nil {
			return nil, err
		}

		d := Decision{
			Date:        date,
			Partition:   pk,
			Key:         e.Key(date, pk),
			LocalPath:   e.local.Path(date, pk),
			Fingerprint: fp,
		}

		remote, ok := remoteByKey[d.Key]
		d.Action, d.Reason = e.decide(fp, remote, ok)
		if ok {
			d.RemoteETag = remote.ETag
		}

		if e.metrics != nil {
			e.metrics.RecordDecision(string(d.Action))
		}
		decisions = append(decisions, d)
	}
	return decisions, nil
}

// decide applies the comparison rule for one artifact.
func (e *Engine) decide(fp record.Fingerprint, remote objectstore.ObjectMeta, exists bool) (Action, string) {
	if !exists {
		return ActionUpload, "no remote object"
	}
	if e.cfg.Force {
		return ActionOverwrite, "forced"
	}
	if sha := remote.Metadata[MetaSHA256]; sha != "" {
		if sha == fp.SHA256 {
			return ActionSkip, "content identical"
		}
		return ActionOverwrite, "content fingerprint differs"
	}
	// Foreign object with no recorded fingerprint: fall back to comparing
	// modification times on the shared millisecond clock.
	if fp.ModifiedMs > remote.LastModified {
		return ActionOverwrite, "local artifact newer than remote"
	}
	return ActionSkip, "remote as new as local, no fingerprint recorded"
}

// Apply performs one decision. Writes are conditional: an upload requires the
// key to still be absent, an overwrite requires the remote ETag observed at
// reconcile time. On a precondition failure the engine refreshes remote
// metadata once, recomputes the decision and retries; a second failure is
// surfaced as a conflict instead of being overwritten blindly.
func (e *Engine) Apply(ctx context.Context, d Decision) Outcome {
	out := Outcome{Decision: d, Applied: d.Action}

	if d.Action == ActionSkip {
		if e.metrics != nil {
			e.metrics.RecordApply(string(ActionSkip), true)
		}
		return out
	}

	err := e.put(ctx, d)
	if err == nil {
		if e.metrics != nil {
			e.metrics.RecordApply(string(d.Action), true)
		}
		return out
	}
	if !errors.Is(err, objectstore.ErrPreconditionFailed) {
		out.Err = err
		if e.metrics != nil {
			e.metrics.RecordApply(string(d.Action), false)
		}
		return out
	}

	// Remote changed between reconcile and write. Refresh and recompute.
	e.logger.Warnf("remote changed during sync, refreshing", map[string]any{
		"key": d.Key,
	})

	refreshed := d
	meta, headErr := e.remote.Head(ctx, d.Key)
	switch {
	case errors.Is(headErr, objectstore.ErrNotFound):
		refreshed.Action, refreshed.Reason = ActionUpload, "remote object deleted concurrently"
		refreshed.RemoteETag = ""
	case headErr != nil:
		out.Err = headErr
		if e.metrics != nil {
			e.metrics.RecordApply(string(d.Action), false)
		}
		return out
	default:
		refreshed.Action, refreshed.Reason = e.decide(d.Fingerprint, meta, true)
		refreshed.RemoteETag = meta.ETag
	}

	out.Applied = refreshed.Action
	if refreshed.Action == ActionSkip {
		// The concurrent writer stored identical content; nothing to do.
		if e.metrics != nil {
			e.metrics.RecordApply(string(ActionSkip), true)
		}
		return out
	}

	if err := e.put(ctx, refreshed); err != nil {
		out.Err = err
		out.Conflict = errors.Is(err, objectstore.ErrPreconditionFailed)
		if e.metrics != nil {
			e.metrics.RecordApply(string(refreshed.Action), false)
		}
		return out
	}

	if e.metrics != nil {
		e.metrics.RecordApply(string(refreshed.Action), true)
	}
	return out
}

// ApplyAll applies every decision in order and returns the outcomes.
func (e *Engine) ApplyAll(ctx context.Context, decisions []Decision) []Outcome {
	outcomes := make([]Outcome, 0, len(decisions))
	for _, d := range decisions {
		out := e.Apply(ctx, d)
		if out.Err != nil {
			e.logger.Errorf("sync apply failed", map[string]any{
				"key":      d.Key,
				"action":   string(d.Action),
				"conflict": out.Conflict,
				"error":    out.Err.Error(),
			})
		} else {
			e.logger.Infof("sync applied", map[string]any{
				"key":    d.Key,
				"action": string(out.Applied),
				"reason": d.Reason,
			})
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// put gzips the local artifact and writes it with the decision's
// precondition.
func (e *Engine) put(ctx context.Context, d Decision) error {
	content, err := os.ReadFile(d.LocalPath)
	if err != nil {
		return fmt.Errorf("syncer: read artifact %s: %w", d.LocalPath, err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(content); err != nil {
		return fmt.Errorf("syncer: compress artifact: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("syncer: compress artifact: %w", err)
	}

	opts := objectstore.PutOptions{
		Metadata: map[string]string{
			MetaSHA256:     d.Fingerprint.SHA256,
			MetaModifiedMs: fmt.Sprintf("%d", d.Fingerprint.ModifiedMs),
		},
	}
	switch d.Action {
	case ActionUpload:
		opts.IfNoneMatch = "*"
	case ActionOverwrite:
		opts.IfMatch = d.RemoteETag
	}

	return e.remote.PutWithOptions(ctx, d.Key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), contentType, opts)
}
