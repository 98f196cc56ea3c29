package main

import (
	"fmt"
	"os"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	// Handle version flag before subcommand parsing
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-version") {
		fmt.Printf("courtsyncd version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Check for subcommand
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	switch subcommand {
	case "discover":
		os.Exit(runDiscover(os.Args[2:]))
	case "run":
		os.Exit(runCollect(os.Args[2:]))
	case "sync":
		os.Exit(runSync(os.Args[2:]))
	case "all":
		os.Exit(runAll(os.Args[2:]))
	case "version":
		fmt.Printf("courtsyncd version %s (built %s, commit %s)\n", version, buildTime, gitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: courtsyncd <command> [options]

Commands:
  discover    Enumerate candidate games for a date and write the mapping artifact
  run         Collect box scores for a date (discovery plus plan execution)
  sync        Upload finished artifacts to the object store
  all         Discover, collect and sync in one pass (supports backfill ranges)
  version     Print version information

Run 'courtsyncd <command> --help' for more information on a command.`)
}
