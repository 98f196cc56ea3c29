package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/courtsync-io/courtsync/internal/chrono"
	"github.com/courtsync-io/courtsync/internal/notify"
	"github.com/courtsync-io/courtsync/internal/partition"
	"github.com/courtsync-io/courtsync/internal/syncer"
)

func runSync(args []string) int {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	dateFlag := fs.String("date", "", "Date to sync as YYYY/MM/DD (default: yesterday)")
	divisions := fs.String("divisions", "", "Comma-separated divisions to sync (d1,d2,d3; default: all)")
	genders := fs.String("genders", "", "Comma-separated genders to sync (men,women; default: all)")
	force := fs.Bool("force", false, "Overwrite remote artifacts regardless of fingerprints")

	fs.Usage = func() {
		fmt.Println(`Usage: courtsyncd sync [options]

Reconcile local artifacts for a date against the object store and upload
what differs. Uploads are conditional: a concurrent remote change is
retried once against refreshed state and otherwise surfaced as a conflict.

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

	outcomes, err := sync(ctx, a, date, keys, *force)
	if err != nil {
		return fatal("sync failed", err)
	}

	return printOutcomes(outcomes)
}

// sync reconciles and applies one date's artifacts. Shared by the sync and
// all subcommands.
func sync(ctx context.Context, a *app, date chrono.Date, keys []partition.Key, force bool) ([]syncer.Outcome, error) {
	engine, err := a.syncEngine(ctx, force)
	if err != nil {
		return nil, err
	}

	decisions, err := engine.Reconcile(ctx, date, keys)
	if err != nil {
		return nil, err
	}
	if len(decisions) == 0 {
		a.logger.Infof("no local artifacts to sync", map[string]any{"date": date.ISO()})
		return nil, nil
	}

	outcomes := engine.ApplyAll(ctx, decisions)

	var conflicts, failures int
	for _, out := range outcomes {
		if out.Conflict {
			conflicts++
			a.syncMetrics.RecordConflict()
		} else if out.Err != nil {
			failures++
		}
	}
	if conflicts > 0 || failures > 0 {
		a.notifier.Notify(ctx, notify.SeverityError,
			fmt.Sprintf("sync for %s: %d conflicts, %d failures out of %d artifacts",
				date.ISO(), conflicts, failures, len(outcomes)))
	}
	return outcomes, nil
}

// printOutcomes prints per-artifact results and returns the exit code.
func printOutcomes(outcomes []syncer.Outcome) int {
	code := 0
	for _, out := range outcomes {
		switch {
		case out.Conflict:
			fmt.Fprintf(os.Stderr, "%s: conflict (%v)\n", out.Key, out.Err)
			code = 1
		case out.Err != nil:
			fmt.Fprintf(os.Stderr, "%s: %v\n", out.Key, out.Err)
			code = 1
		default:
			fmt.Printf("%s: %s (%s)\n", out.Key, out.Applied, out.Reason)
		}
	}
	return code
}
