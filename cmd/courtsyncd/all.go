package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/courtsync-io/courtsync/internal/chrono"
	"github.com/courtsync-io/courtsync/internal/partition"
	"github.com/courtsync-io/courtsync/internal/run"
)

func runAll(args []string) int {
	fs := flag.NewFlagSet("all", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	dateFlag := fs.String("date", "", "Date to process as YYYY/MM/DD (default: yesterday)")
	fromFlag := fs.String("from", "", "Backfill range start as YYYY/MM/DD (inclusive)")
	toFlag := fs.String("to", "", "Backfill range end as YYYY/MM/DD (inclusive, default: --from)")
	divisions := fs.String("divisions", "", "Comma-separated divisions to process (d1,d2,d3; default: all)")
	genders := fs.String("genders", "", "Comma-separated genders to process (men,women; default: all)")
	force := fs.Bool("force", false, "Collect and upload even when remote artifacts already exist")
	noSync := fs.Bool("no-sync", false, "Skip the upload stage")

	fs.Usage = func() {
		fmt.Println(`Usage: courtsyncd all [options]

Discover, collect and sync one date, or a backfill range with --from/--to.
Each date runs the full pipeline; a dirty date does not stop the range but
fails the exit code.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *dateFlag != "" && *fromFlag != "" {
		return fatal("invalid flags", fmt.Errorf("--date and --from are mutually exclusive"))
	}

	a, err := newApp(*configPath)
	if err != nil {
		return fatal("failed to load config", err)
	}
	defer a.close()
	a.startMetrics()

	dates, err := resolveDates(*dateFlag, *fromFlag, *toFlag)
	if err != nil {
		return fatal("invalid date range", err)
	}
	keys, err := selectPartitions(*divisions, *genders)
	if err != nil {
		return fatal("invalid partition selection", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	code := 0
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return fatal("interrupted", err)
		}

		reports, err := collect(ctx, a, date, keys, collectOptions{force: *force})
		if err != nil {
			fmt.Printf("%s: collection failed: %v\n", date.ISO(), err)
			code = 1
			continue
		}
		if c := printReports(date, reports); c != 0 {
			code = 1
		}

		if *noSync {
			continue
		}
		outcomes, err := sync(ctx, a, date, cleanKeys(keys, reports), *force)
		if err != nil {
			fmt.Printf("%s: sync failed: %v\n", date.ISO(), err)
			code = 1
			continue
		}
		if c := printOutcomes(outcomes); c != 0 {
			code = 1
		}
	}
	return code
}

// cleanKeys drops partitions whose collection did not finish cleanly, so an
// incomplete artifact is never uploaded. Keys without a report were skipped
// by the remote pre-check and pass through.
func cleanKeys(keys []partition.Key, reports map[partition.Key]run.Report) []partition.Key {
	out := make([]partition.Key, 0, len(keys))
	for _, k := range keys {
		if rep, ok := reports[k]; ok && !rep.Clean() {
			continue
		}
		out = append(out, k)
	}
	return out
}

// resolveDates expands the date flags into the list of dates to process.
func resolveDates(dateFlag, fromFlag, toFlag string) ([]chrono.Date, error) {
	if fromFlag == "" {
		d, err := resolveDate(dateFlag)
		if err != nil {
			return nil, err
		}
		return []chrono.Date{d}, nil
	}

	from, err := chrono.ParseDate(fromFlag)
	if err != nil {
		return nil, err
	}
	to := from
	if toFlag != "" {
		to, err = chrono.ParseDate(toFlag)
		if err != nil {
			return nil, err
		}
	}
	dates := chrono.Range(from, to)
	if len(dates) == 0 {
		return nil, fmt.Errorf("empty range %s..%s", fromFlag, toFlag)
	}
	return dates, nil
}
