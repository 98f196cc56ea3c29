package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/courtsync-io/courtsync/internal/backoff"
	"github.com/courtsync-io/courtsync/internal/chrono"
	"github.com/courtsync-io/courtsync/internal/config"
	"github.com/courtsync-io/courtsync/internal/logging"
	"github.com/courtsync-io/courtsync/internal/metrics"
	"github.com/courtsync-io/courtsync/internal/notify"
	"github.com/courtsync-io/courtsync/internal/objectstore"
	"github.com/courtsync-io/courtsync/internal/objectstore/s3"
	"github.com/courtsync-io/courtsync/internal/partition"
	"github.com/courtsync-io/courtsync/internal/record"
	"github.com/courtsync-io/courtsync/internal/run"
	"github.com/courtsync-io/courtsync/internal/source/ncaa"
	"github.com/courtsync-io/courtsync/internal/syncer"
)

// app bundles the collaborators every subcommand wires the same way.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	store    *record.Store
	source   *ncaa.Client
	notifier notify.Notifier

	discoveryMetrics *metrics.DiscoveryMetrics
	runMetrics       *metrics.RunMetrics
	syncMetrics      *metrics.SyncMetrics
	objMetrics       *metrics.ObjectStoreMetrics

	metricsServer *metrics.Server
	remote        objectstore.Store
}

// newApp loads config, sets up the logger with a fresh run ID, and builds the
// local collaborators. Remote object store construction is deferred to
// remoteStore since not every subcommand needs it.
func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	logger := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Observability.LogLevel),
		Format: logging.ParseFormat(cfg.Observability.LogFormat),
	}).WithRunID(runID)
	logging.SetGlobal(logger)

	a := &app{
		cfg:    cfg,
		logger: logger,
		store:  record.NewStore(cfg.Storage.DataDir),
		source: ncaa.New(ncaa.Config{
			BaseURL:   cfg.Source.BaseURL,
			TimeoutMs: cfg.Source.TimeoutMs,
			UserAgent: cfg.Source.UserAgent,
		}),
		discoveryMetrics: metrics.NewDiscoveryMetrics(),
		runMetrics:       metrics.NewRunMetrics(),
		syncMetrics:      metrics.NewSyncMetrics(),
		objMetrics:       metrics.NewObjectStoreMetrics(),
	}

	if cfg.Notify.DiscordWebhookURL != "" {
		a.notifier = notify.NewDiscord(cfg.Notify.DiscordWebhookURL, logger)
	} else {
		a.notifier = notify.Nop{}
	}

	return a, nil
}

// startMetrics exposes /metrics for the duration of the run.
func (a *app) startMetrics() {
	if a.cfg.Observability.MetricsAddr == "" {
		return
	}
	srv := metrics.NewServer(a.cfg.Observability.MetricsAddr)
	if err := srv.Start(); err != nil {
		a.logger.Warnf("metrics server failed to start", map[string]any{
			"addr":  a.cfg.Observability.MetricsAddr,
			"error": err.Error(),
		})
		return
	}
	a.metricsServer = srv
}

func (a *app) close() {
	if a.metricsServer != nil {
		_ = a.metricsServer.Close()
	}
	if a.remote != nil {
		_ = a.remote.Close()
	}
}

// remoteStore lazily builds the instrumented S3 store.
func (a *app) remoteStore(ctx context.Context) (objectstore.Store, error) {
	if a.remote != nil {
		return a.remote, nil
	}
	if a.cfg.ObjectStore.Bucket == "" {
		return nil, fmt.Errorf("object store bucket not configured")
	}
	store, err := s3.New(ctx, s3.Config{
		Bucket:          a.cfg.ObjectStore.Bucket,
		Region:          a.cfg.ObjectStore.Region,
		Endpoint:        a.cfg.ObjectStore.Endpoint,
		AccessKeyID:     a.cfg.ObjectStore.AccessKey,
		SecretAccessKey: a.cfg.ObjectStore.SecretKey,
		UsePathStyle:    a.cfg.ObjectStore.Endpoint != "",
	})
	if err != nil {
		return nil, err
	}
	a.remote = objectstore.NewInstrumentedStore(store, a.objMetrics)
	return a.remote, nil
}

// syncEngine builds the sync engine over the remote store.
func (a *app) syncEngine(ctx context.Context, force bool) (*syncer.Engine, error) {
	remote, err := a.remoteStore(ctx)
	if err != nil {
		return nil, err
	}
	cfg := syncer.Config{
		Prefix: a.cfg.Sync.Prefix,
		Force:  force || a.cfg.Sync.Force,
	}
	return syncer.New(cfg, remote, a.store, a.logger, a.syncMetrics), nil
}

// retryPolicy converts the run config into a backoff policy.
func (a *app) retryPolicy() backoff.Policy {
	return backoff.Policy{
		MaxAttempts:    a.cfg.Run.MaxAttempts,
		InitialDelayMs: a.cfg.Run.InitialDelayMs,
		MaxDelayMs:     a.cfg.Run.MaxDelayMs,
		Multiplier:     a.cfg.Run.Multiplier,
	}
}

// runConfig converts the run config for the coordinator.
func (a *app) runConfig() run.Config {
	return run.Config{
		Retry:         a.retryPolicy(),
		ItemTimeoutMs: a.cfg.Run.ItemTimeoutMs,
		CopyWaitMs:    a.cfg.Run.CopyWaitMs,
	}
}

// mappingPath returns where the date's discovery artifact lives.
func (a *app) mappingPath(date chrono.Date) string {
	return filepath.Join(a.cfg.Storage.DiscoveryDir, date.ISO()+".json")
}

// selectPartitions narrows the partition set from --divisions/--genders flag
// values. Empty values select everything.
func selectPartitions(divisions, genders string) ([]partition.Key, error) {
	wantDiv := map[partition.Division]bool{}
	if divisions != "" {
		for _, s := range strings.Split(divisions, ",") {
			d, err := partition.ParseDivision(strings.TrimSpace(s))
			if err != nil {
				return nil, err
			}
			wantDiv[d] = true
		}
	}
	wantGen := map[partition.Gender]bool{}
	if genders != "" {
		for _, s := range strings.Split(genders, ",") {
			g, err := partition.ParseGender(strings.TrimSpace(s))
			if err != nil {
				return nil, err
			}
			wantGen[g] = true
		}
	}

	var keys []partition.Key
	for _, k := range partition.All() {
		if len(wantDiv) > 0 && !wantDiv[k.Division] {
			continue
		}
		if len(wantGen) > 0 && !wantGen[k.Gender] {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no partitions match divisions=%q genders=%q", divisions, genders)
	}
	return keys, nil
}

// resolveDate parses the --date flag, defaulting to yesterday.
func resolveDate(flagValue string) (chrono.Date, error) {
	if flagValue == "" {
		return chrono.Yesterday(), nil
	}
	return chrono.ParseDate(flagValue)
}

func fatal(msg string, err error) int {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	return 1
}
