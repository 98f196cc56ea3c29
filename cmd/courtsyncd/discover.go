package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/courtsync-io/courtsync/internal/chrono"
	"github.com/courtsync-io/courtsync/internal/discovery"
	"github.com/courtsync-io/courtsync/internal/notify"
	"github.com/courtsync-io/courtsync/internal/partition"
)

func runDiscover(args []string) int {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	dateFlag := fs.String("date", "", "Date to scan as YYYY/MM/DD (default: yesterday)")
	divisions := fs.String("divisions", "", "Comma-separated divisions to scan (d1,d2,d3; default: all)")
	genders := fs.String("genders", "", "Comma-separated genders to scan (men,women; default: all)")
	out := fs.String("out", "", "Override mapping artifact path")

	fs.Usage = func() {
		fmt.Println(`Usage: courtsyncd discover [options]

Enumerate candidate games across the selected partitions, resolve
cross-partition duplicates to an owning partition, and write the mapping
artifact.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}

	a, err := newApp(*configPath)
	if err != nil {
		return fatal("failed to load config", err)
	}
	defer a.close()

	date, err := resolveDate(*dateFlag)
	if err != nil {
		return fatal("invalid date", err)
	}
	keys, err := selectPartitions(*divisions, *genders)
	if err != nil {
		return fatal("invalid partition selection", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := *out
	if path == "" {
		path = a.mappingPath(date)
	}

	index, err := discover(ctx, a, date, keys, path)
	if err != nil {
		return fatal("discovery failed", err)
	}

	stats := index.Stats()
	fmt.Printf("discovered %d games (%d duplicates) across %d partitions for %s\n",
		stats.TotalGames, stats.DuplicateGames, stats.Partitions, date.ISO())
	fmt.Printf("mapping written to %s\n", path)
	if index.IsPartial() {
		fmt.Fprintf(os.Stderr, "enumeration failed for partitions %v\n", index.Partial)
		return 1
	}
	return 0
}

// discover scans the partitions, persists the mapping artifact and sends the
// operator notification. Shared by the discover and all subcommands.
func discover(ctx context.Context, a *app, date chrono.Date, keys []partition.Key, path string) (*discovery.Index, error) {
	scanner := discovery.NewScanner(discovery.ScannerConfig{Retry: a.retryPolicy()}, a.source, a.logger).
		WithMetrics(a.discoveryMetrics)

	index, err := scanner.Scan(ctx, date, keys)
	if err != nil {
		a.notifier.Notify(ctx, notify.SeverityError,
			fmt.Sprintf("discovery aborted for %s: %v", date.ISO(), err))
		return nil, err
	}

	stats := index.Stats()
	a.discoveryMetrics.RecordDuplicates(stats.DuplicateGames)

	if err := os.MkdirAll(a.cfg.Storage.DiscoveryDir, 0o755); err != nil {
		return nil, err
	}
	if err := discovery.Save(index, path); err != nil {
		return nil, err
	}

	if index.IsPartial() {
		a.notifier.Notify(ctx, notify.SeverityWarning,
			fmt.Sprintf("discovery for %s is partial: %d games found, partitions %v failed",
				date.ISO(), stats.TotalGames, index.Partial))
	}
	return index, nil
}
