// Package source defines the capability interfaces the collector consumes to
// enumerate and fetch games. Concrete backends (the stats.ncaa.org shim, test
// fakes) satisfy these contracts and are substitutable.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/courtsync-io/courtsync/internal/chrono"
	"github.com/courtsync-io/courtsync/internal/partition"
	"github.com/courtsync-io/courtsync/internal/record"
)

// Lister enumerates the candidate game ids visible under one partition's
// scoreboard listing for a date.
type Lister interface {
	ListCandidates(ctx context.Context, date chrono.Date, key partition.Key) ([]record.GameID, error)
}

// Fetcher retrieves and extracts a single game.
type Fetcher interface {
	FetchGame(ctx context.Context, date chrono.Date, key partition.Key, id record.GameID) (*record.Game, error)
}

// Source combines listing and fetching.
type Source interface {
	Lister
	Fetcher
}

// TransientError marks a failure worth retrying: network errors, timeouts,
// rate limiting, 5xx responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("source: transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError. Returns nil if err is nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ParseError marks a page whose structure did not match what the extractor
// expects. Not retryable; the item is skipped and the partition continues.
type ParseError struct {
	ID  record.GameID
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("source: parse %s: %v", e.ID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParse reports whether err is (or wraps) a ParseError.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
