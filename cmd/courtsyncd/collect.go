package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/courtsync-io/courtsync/internal/chrono"
	"github.com/courtsync-io/courtsync/internal/discovery"
	"github.com/courtsync-io/courtsync/internal/notify"
	"github.com/courtsync-io/courtsync/internal/partition"
	"github.com/courtsync-io/courtsync/internal/plan"
	"github.com/courtsync-io/courtsync/internal/run"
)

// collectOptions controls one date's collection pass.
type collectOptions struct {
	// mappingPath loads a previously written mapping artifact instead of
	// scanning; empty means scan fresh.
	mappingPath string

	// force disables the remote pre-check that skips partitions whose
	// artifact already exists in the bucket.
	force bool

	// skipRemoteCheck disables the pre-check without implying force
	// elsewhere, for running with no bucket configured.
	skipRemoteCheck bool
}

func runCollect(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	dateFlag := fs.String("date", "", "Date to collect as YYYY/MM/DD (default: yesterday)")
	divisions := fs.String("divisions", "", "Comma-separated divisions to collect (d1,d2,d3; default: all)")
	genders := fs.String("genders", "", "Comma-separated genders to collect (men,women; default: all)")
	mapping := fs.String("mapping", "", "Reuse an existing mapping artifact instead of scanning")
	force := fs.Bool("force", false, "Collect even when the remote artifact already exists")
	skipRemoteCheck := fs.Bool("skip-remote-check", false, "Skip the remote existence pre-check")

	fs.Usage = func() {
		fmt.Println(`Usage: courtsyncd run [options]

Collect per-game box scores for a date: discover candidates (or reuse a
mapping artifact), build per-partition work plans, and execute them in
parallel. Duplicate games are fetched once by the owning partition and
copied everywhere else.

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
	a.startMetrics()

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

	reports, err := collect(ctx, a, date, keys, collectOptions{
		mappingPath:     *mapping,
		force:           *force,
		skipRemoteCheck: *skipRemoteCheck,
	})
	if err != nil {
		return fatal("collection failed", err)
	}

	return printReports(date, reports)
}

// collect runs one date's full collection pass and returns the per-partition
// reports. Shared by the run and all subcommands.
func collect(ctx context.Context, a *app, date chrono.Date, keys []partition.Key, opts collectOptions) (map[partition.Key]run.Report, error) {
	keys, err := filterCollected(ctx, a, date, keys, opts)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		a.logger.Info("all selected partitions already collected remotely")
		return map[partition.Key]run.Report{}, nil
	}

	var index *discovery.Index
	if opts.mappingPath != "" {
		index, err = discovery.LoadFile(opts.mappingPath)
		if err != nil {
			return nil, fmt.Errorf("load mapping artifact: %w", err)
		}
	} else {
		index, err = discover(ctx, a, date, keys, a.mappingPath(date))
		if err != nil {
			return nil, err
		}
	}

	resolved := discovery.Resolve(index)
	plans := plan.BuildAll(keys, index, resolved)

	coordinator := run.NewCoordinator(a.runConfig(), a.source, a.store, a.logger, a.runMetrics)
	reports := coordinator.Run(ctx, date, plans)
	markPartialFailures(index, keys, reports)

	notifyReports(ctx, a, date, reports)
	return reports, nil
}

// errEnumerationFailed marks a partition whose scoreboard enumeration
// exhausted its retries during discovery.
var errEnumerationFailed = errors.New("partition enumeration failed after retries")

// markPartialFailures turns partial discovery into failed partitions. A
// partition excluded from the index gets an empty plan and would otherwise
// report clean with an incomplete artifact; the run must not report success
// for it.
func markPartialFailures(x *discovery.Index, keys []partition.Key, reports map[partition.Key]run.Report) {
	selected := make(map[partition.Key]bool, len(keys))
	for _, k := range keys {
		selected[k] = true
	}
	for _, k := range x.Partial {
		if !selected[k] {
			continue
		}
		rep := reports[k]
		rep.Partition = k
		rep.Err = errEnumerationFailed
		reports[k] = rep
	}
}

// filterCollected drops partitions whose artifact already exists remotely,
// unless forced. With no bucket configured the check is skipped entirely.
func filterCollected(ctx context.Context, a *app, date chrono.Date, keys []partition.Key, opts collectOptions) ([]partition.Key, error) {
	if opts.force || opts.skipRemoteCheck || a.cfg.ObjectStore.Bucket == "" {
		return keys, nil
	}

	engine, err := a.syncEngine(ctx, false)
	if err != nil {
		return nil, err
	}

	var remaining []partition.Key
	for _, k := range keys {
		exists, err := engine.RemoteExists(ctx, date, k)
		if err != nil {
			return nil, fmt.Errorf("remote pre-check for %s: %w", k, err)
		}
		if exists {
			a.logger.Infof("remote artifact exists, skipping partition", map[string]any{
				"partition": k.String(),
				"date":      date.ISO(),
			})
			continue
		}
		remaining = append(remaining, k)
	}
	return remaining, nil
}

// notifyReports sends the run summary notification.
func notifyReports(ctx context.Context, a *app, date chrono.Date, reports map[partition.Key]run.Report) {
	var fetched, copied, skipped, failed, dirty int
	for _, rep := range reports {
		fetched += rep.Fetched
		copied += rep.Copied
		skipped += rep.Skipped
		failed += rep.Failed
		if !rep.Clean() {
			dirty++
		}
	}

	msg := fmt.Sprintf("collection for %s: fetched=%d copied=%d skipped=%d failed=%d",
		date.ISO(), fetched, copied, skipped, failed)
	if dirty > 0 {
		a.notifier.Notify(ctx, notify.SeverityError,
			fmt.Sprintf("%s (%d partitions unclean)", msg, dirty))
		return
	}
	a.notifier.Notify(ctx, notify.SeveritySuccess, msg)
}

// printReports prints per-partition results and returns the exit code.
func printReports(date chrono.Date, reports map[partition.Key]run.Report) int {
	keys := make([]partition.Key, 0, len(reports))
	for k := range reports {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return partition.DefaultOrder(keys[i], keys[j]) })

	code := 0
	for _, k := range keys {
		rep := reports[k]
		fmt.Printf("%s %s\n", date.ISO(), rep.String())
		if rep.Err != nil {
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", date.ISO(), rep.Partition, rep.Err)
		}
		if !rep.Clean() {
			code = 1
		}
	}
	if code != 0 {
		fmt.Fprintln(os.Stderr, "one or more partitions did not complete cleanly")
	}
	return code
}
