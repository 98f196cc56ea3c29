package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/courtsync-io/courtsync/internal/chrono"
	"github.com/courtsync-io/courtsync/internal/partition"
	"github.com/courtsync-io/courtsync/internal/record"
)

// The mapping artifact is the serialized form of an Index. Discovery writes
// it once; partition workers load it read-only, possibly from separate
// processes.

type mappingFile struct {
	Date              string                  `json:"date"`
	TotalGames        int                     `json:"totalGames"`
	DuplicateGames    int                     `json:"duplicateGames"`
	PartialPartitions []string                `json:"partialPartitions,omitempty"`
	Games             map[string]mappingEntry `json:"games"`
}

type mappingEntry struct {
	Owner    string   `json:"owner"`
	Listings []string `json:"listings"`
}

// Save writes the index as a JSON mapping artifact.
func Save(x *Index, path string) error {
	stats := x.Stats()
	mf := mappingFile{
		Date:           x.Date.ISO(),
		TotalGames:     stats.TotalGames,
		DuplicateGames: stats.DuplicateGames,
		Games:          make(map[string]mappingEntry, len(x.Entries)),
	}
	for _, k := range x.Partial {
		mf.PartialPartitions = append(mf.PartialPartitions, k.String())
	}
	for id, e := range x.Entries {
		me := mappingEntry{Owner: e.Owner.String()}
		for _, k := range e.Listings {
			me.Listings = append(me.Listings, k.String())
		}
		mf.Games[string(id)] = me
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("discovery: create mapping dir: %w", err)
	}

	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return fmt.Errorf("discovery: encode mapping: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("discovery: write mapping %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a mapping artifact back into an Index.
func LoadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("discovery: read mapping %s: %w", path, err)
	}

	var mf mappingFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("discovery: decode mapping %s: %w", path, err)
	}

	if len(mf.Date) != 10 {
		return nil, fmt.Errorf("discovery: mapping %s has invalid date %q", path, mf.Date)
	}
	t, err := chrono.ParseDate(mf.Date[0:4] + "/" + mf.Date[5:7] + "/" + mf.Date[8:10])
	if err != nil {
		return nil, fmt.Errorf("discovery: mapping %s has invalid date %q", path, mf.Date)
	}

	x := &Index{
		Date:    t,
		Entries: make(map[record.GameID]Entry, len(mf.Games)),
	}
	for _, s := range mf.PartialPartitions {
		k, err := partition.ParseKey(s)
		if err != nil {
			return nil, fmt.Errorf("discovery: mapping %s: %w", path, err)
		}
		x.Partial = append(x.Partial, k)
	}
	for id, me := range mf.Games {
		owner, err := partition.ParseKey(me.Owner)
		if err != nil {
			return nil, fmt.Errorf("discovery: mapping %s: %w", path, err)
		}
		e := Entry{ID: record.GameID(id), Owner: owner}
		for _, s := range me.Listings {
			k, err := partition.ParseKey(s)
			if err != nil {
				return nil, fmt.Errorf("discovery: mapping %s: %w", path, err)
			}
			e.Listings = append(e.Listings, k)
		}
		if len(e.Listings) == 0 || !e.listedBy(owner) {
			return nil, fmt.Errorf("discovery: mapping %s: entry %s owner not among listings", path, id)
		}
		x.Entries[record.GameID(id)] = e
	}
	return x, nil
}
