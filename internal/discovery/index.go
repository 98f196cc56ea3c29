// Package discovery builds the per-date index of candidate games across all
// partitions, identifies cross-partition duplicates, and assigns each game a
// canonical owning partition.
//
// The index is built once per date and is immutable after Build returns. It
// is the only state shared between partition workers, which treat it as
// read-only.
package discovery

import (
	"sort"

	"github.com/courtsync-io/courtsync/internal/chrono"
	"github.com/courtsync-io/courtsync/internal/partition"
	"github.com/courtsync-io/courtsync/internal/record"
)

// Entry describes one discovered game.
type Entry struct {
	// ID is the game's contest identifier.
	ID record.GameID

	// Listings are the partitions whose scoreboard listed the game, sorted
	// by precedence. Always non-empty.
	Listings []partition.Key

	// Owner is the partition responsible for fetching the game: the minimum
	// listing partition under the precedence order. Owner is always a member
	// of Listings.
	Owner partition.Key
}

// Duplicate reports whether the game was listed by more than one partition.
func (e Entry) Duplicate() bool { return len(e.Listings) > 1 }

// listedBy reports whether key is among the entry's listings.
func (e Entry) listedBy(key partition.Key) bool {
	for _, k := range e.Listings {
		if k == key {
			return true
		}
	}
	return false
}

// Index is the complete discovery result for one date.
type Index struct {
	Date    chrono.Date
	Entries map[record.GameID]Entry

	// Partial lists partitions whose enumeration failed. Their candidates are
	// absent from Entries; resolution degrades copying that would depend on
	// them to fetching.
	Partial []partition.Key
}

// Build constructs the index from per-partition candidate sets.
//
// Owner assignment uses only the candidate sets and the order, so the result
// is identical regardless of the order partitions were scanned in. Partitions
// whose enumeration failed are passed in partial and excluded from the index
// rather than silently shrinking it.
func Build(date chrono.Date, candidates map[partition.Key][]record.GameID, partial []partition.Key, less partition.Order) *Index {
	if less == nil {
		less = partition.DefaultOrder
	}

	listings := make(map[record.GameID][]partition.Key)
	for key, ids := range candidates {
		seen := make(map[record.GameID]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			listings[id] = append(listings[id], key)
		}
	}

	entries := make(map[record.GameID]Entry, len(listings))
	for id, keys := range listings {
		sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
		entries[id] = Entry{
			ID:       id,
			Listings: keys,
			Owner:    keys[0],
		}
	}

	partialSorted := append([]partition.Key(nil), partial...)
	sort.Slice(partialSorted, func(i, j int) bool { return less(partialSorted[i], partialSorted[j]) })

	return &Index{
		Date:    date,
		Entries: entries,
		Partial: partialSorted,
	}
}

// IsPartial reports whether any partition's enumeration failed.
func (x *Index) IsPartial() bool { return len(x.Partial) > 0 }

// partialSet returns the partial partitions as a set.
func (x *Index) partialSet() map[partition.Key]bool {
	set := make(map[partition.Key]bool, len(x.Partial))
	for _, k := range x.Partial {
		set[k] = true
	}
	return set
}

// ListedBy returns the ids the given partition listed, in ascending order.
func (x *Index) ListedBy(key partition.Key) []record.GameID {
	var ids []record.GameID
	for id, e := range x.Entries {
		if e.listedBy(key) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Stats summarizes the index for reporting.
type Stats struct {
	TotalGames     int
	DuplicateGames int
	Partitions     int
}

// Stats computes summary counts.
func (x *Index) Stats() Stats {
	s := Stats{TotalGames: len(x.Entries)}
	seen := make(map[partition.Key]struct{})
	for _, e := range x.Entries {
		if e.Duplicate() {
			s.DuplicateGames++
		}
		for _, k := range e.Listings {
			seen[k] = struct{}{}
		}
	}
	s.Partitions = len(seen)
	return s
}
