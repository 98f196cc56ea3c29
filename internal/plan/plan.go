// Package plan turns a resolved discovery index into per-partition work
// plans.
package plan

import (
	"sort"

	"github.com/courtsync-io/courtsync/internal/discovery"
	"github.com/courtsync-io/courtsync/internal/partition"
	"github.com/courtsync-io/courtsync/internal/record"
)

// Action says how a partition obtains one game.
type Action string

const (
	// ActionFetch scrapes the game from the source.
	ActionFetch Action = "fetch"

	// ActionCopy reads the game from the owning partition's local artifact.
	ActionCopy Action = "copy"
)

// WorkItem is one unit of a partition's plan.
type WorkItem struct {
	ID     record.GameID
	Action Action

	// From is the owning partition for copy actions; zero for fetches.
	From partition.Key

	// Duplicate reports whether more than one partition listed the game.
	// Carried into the artifact rows so the flag is consistent across every
	// partition's output, the owner's included.
	Duplicate bool
}

// Plan lists the work for one target partition, in ascending game id so the
// produced artifact is reproducible across runs.
type Plan struct {
	Target partition.Key
	Items  []WorkItem
}

// Build produces the target partition's plan.
//
// Only ids the target itself listed are planned: a partition never copies a
// game its own scoreboard did not show, so copying cannot smuggle unrelated
// games into its output. The target fetches games it owns and games whose
// assignment disallows copying; everything else is copied from the owner.
func Build(target partition.Key, x *discovery.Index, resolved map[record.GameID]discovery.Assignment) Plan {
	p := Plan{Target: target}
	for _, id := range x.ListedBy(target) {
		a, ok := resolved[id]
		if !ok {
			continue
		}
		dup := x.Entries[id].Duplicate()
		switch {
		case a.Owner == target, !a.CopyOK:
			p.Items = append(p.Items, WorkItem{ID: id, Action: ActionFetch, Duplicate: dup})
		default:
			p.Items = append(p.Items, WorkItem{ID: id, Action: ActionCopy, From: a.Owner, Duplicate: dup})
		}
	}
	sort.Slice(p.Items, func(i, j int) bool { return p.Items[i].ID < p.Items[j].ID })
	return p
}

// BuildAll produces a plan for every partition that listed at least one game,
// plus every requested target (so empty partitions still report).
func BuildAll(targets []partition.Key, x *discovery.Index, resolved map[record.GameID]discovery.Assignment) map[partition.Key]Plan {
	out := make(map[partition.Key]Plan, len(targets))
	for _, target := range targets {
		out[target] = Build(target, x, resolved)
	}
	return out
}
