// Package metrics provides Prometheus metrics for observability.
//
// This package exposes metrics for the main courtsync stages:
//   - Discovery scan latency and candidate counts per partition
//   - Work item outcomes (ok, skipped, failed) per action
//   - Partition plan durations broken down by outcome
//   - Sync decisions, apply attempts and unresolved conflicts
//   - Object store operation latency and bytes transferred
//
// Metrics are exposed via a dedicated HTTP server on /metrics in Prometheus format.
//
// Usage:
//
//	// Create and register metrics
//	discoveryMetrics := metrics.NewDiscoveryMetrics()
//	runMetrics := metrics.NewRunMetrics()
//	syncMetrics := metrics.NewSyncMetrics()
//
//	// Wire into the stages
//	scanner := discovery.NewScanner(cfg, lister, logger).WithMetrics(discoveryMetrics)
//	coordinator := run.NewCoordinator(runCfg, fetcher, store, logger, runMetrics)
//
//	// Start metrics server
//	metricsServer := metrics.NewServer(":9090")
//	metricsServer.Start()
package metrics
