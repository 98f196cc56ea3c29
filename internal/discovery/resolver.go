package discovery

import (
	"github.com/courtsync-io/courtsync/internal/partition"
	"github.com/courtsync-io/courtsync/internal/record"
)

// Assignment is the resolved action template for one game id. It is derived
// purely from the index; planners specialize it per target partition.
type Assignment struct {
	// Owner is the partition that fetches the game.
	Owner partition.Key

	// CopyOK reports whether non-owning listers may copy the owner's
	// artifact. False when the owner is flagged partial, forcing every
	// lister to fetch rather than propagate a hole.
	CopyOK bool
}

// Resolve classifies every indexed game. Pure function of the index: no I/O,
// no mutation.
//
// For every id the owner fetches. Other listers copy from the owner, unless
// the owner is among the partial partitions, in which case each lister
// degrades to fetching the game itself. Redundant fetching under degradation
// is accepted; dropped data is not.
func Resolve(x *Index) map[record.GameID]Assignment {
	partial := x.partialSet()

	out := make(map[record.GameID]Assignment, len(x.Entries))
	for id, e := range x.Entries {
		out[id] = Assignment{
			Owner:  e.Owner,
			CopyOK: !partial[e.Owner],
		}
	}
	return out
}
