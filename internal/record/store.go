package record

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/courtsync-io/courtsync/internal/chrono"
	"github.com/courtsync-io/courtsync/internal/partition"
)

// ErrGameNotFound is returned when a game id is absent from an artifact.
var ErrGameNotFound = errors.New("record: game not found in artifact")

// Fingerprint identifies the content of a local artifact.
type Fingerprint struct {
	// SHA256 is the hex digest of the file content.
	SHA256 string
	// Size is the file size in bytes.
	Size int64
	// ModifiedMs is the file mtime as Unix milliseconds.
	ModifiedMs int64
}

// Store manages the local per-partition CSV artifacts.
//
// Layout mirrors the remote store:
//
//	<base>/<year>/<month>/<gender>/<division>/basketball_<gender>_<division>_<year>_<month>_<day>.csv
//
// Files are partition-private while a run is in progress; the sync engine
// reads them only after a partition reports completion.
type Store struct {
	base string
}

// NewStore creates a store rooted at base.
func NewStore(base string) *Store {
	return &Store{base: base}
}

// Path returns the artifact path for a date and partition.
func (s *Store) Path(date chrono.Date, key partition.Key) string {
	year, month, day := date.YMD()
	name := fmt.Sprintf("basketball_%s_%s_%s_%s_%s.csv", key.Gender, key.Division, year, month, day)
	return filepath.Join(s.base, year, month, string(key.Gender), string(key.Division), name)
}

// RelKey returns the artifact path relative to the store base, using forward
// slashes. This doubles as the remote object key suffix.
func (s *Store) RelKey(date chrono.Date, key partition.Key) string {
	year, month, day := date.YMD()
	name := fmt.Sprintf("basketball_%s_%s_%s_%s_%s.csv", key.Gender, key.Division, year, month, day)
	return year + "/" + month + "/" + string(key.Gender) + "/" + string(key.Division) + "/" + name
}

// Exists reports whether the artifact exists and is non-empty.
func (s *Store) Exists(date chrono.Date, key partition.Key) bool {
	info, err := os.Stat(s.Path(date, key))
	return err == nil && info.Size() > 0
}

// Append writes a game's rows to the partition's artifact, creating the file
// with a header row if needed. Games already present are skipped.
func (s *Store) Append(date chrono.Date, key partition.Key, game *Game) error {
	path := s.Path(date, key)

	has, err := s.hasGame(path, game.ID)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("record: create artifact dir: %w", err)
	}

	info, err := os.Stat(path)
	writeHeader := err != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("record: open artifact %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("record: write header: %w", err)
		}
	}
	for _, row := range game.rows() {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("record: write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// Copy transfers a game's rows from the owning partition's artifact into the
// target partition's artifact. Copied rows are re-labeled with the target
// partition and flagged as cross-division duplicates.
func (s *Store) Copy(date chrono.Date, id GameID, from, to partition.Key) error {
	rows, err := s.gameRows(s.Path(date, from), id)
	if err != nil {
		return err
	}

	toPath := s.Path(date, to)
	has, err := s.hasGame(toPath, id)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(toPath), 0o755); err != nil {
		return fmt.Errorf("record: create artifact dir: %w", err)
	}

	info, err := os.Stat(toPath)
	writeHeader := err != nil || info.Size() == 0

	f, err := os.OpenFile(toPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("record: open artifact %s: %w", toPath, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("record: write header: %w", err)
		}
	}
	for _, row := range rows {
		row[colIndex("DIVISION")] = string(to.Division)
		row[colIndex("GENDER")] = string(to.Gender)
		row[colIndex("DUPLICATE_ACROSS_DIVISIONS")] = strconv.FormatBool(true)
		if err := w.Write(row); err != nil {
			return fmt.Errorf("record: write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// HasGame reports whether the partition's artifact already contains the game.
func (s *Store) HasGame(date chrono.Date, key partition.Key, id GameID) (bool, error) {
	return s.hasGame(s.Path(date, key), id)
}

// Fingerprint computes the artifact's content fingerprint.
func (s *Store) Fingerprint(date chrono.Date, key partition.Key) (Fingerprint, error) {
	path := s.Path(date, key)
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("record: stat artifact: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("record: open artifact: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Fingerprint{}, fmt.Errorf("record: hash artifact: %w", err)
	}

	return Fingerprint{
		SHA256:     hex.EncodeToString(h.Sum(nil)),
		Size:       info.Size(),
		ModifiedMs: info.ModTime().UnixMilli(),
	}, nil
}

func (s *Store) hasGame(path string, id GameID) (bool, error) {
	rows, err := s.gameRows(path, id)
	if errors.Is(err, ErrGameNotFound) || errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// gameRows reads all CSV rows for a game id. The header row is excluded.
func (s *Store) gameRows(path string, id GameID) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("record: open artifact: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("record: read header: %w", err)
	}

	idCol := -1
	for i, name := range header {
		if name == "GAMEID" {
			idCol = i
			break
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("record: artifact %s has no GAMEID column", path)
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record: read row: %w", err)
		}
		if idCol < len(row) && GameID(row[idCol]) == id {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, ErrGameNotFound
	}
	return rows, nil
}

func colIndex(name string) int {
	for i, h := range csvHeader {
		if h == name {
			return i
		}
	}
	return -1
}
