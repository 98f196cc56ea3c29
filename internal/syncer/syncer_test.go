package syncer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/courtsync-io/courtsync/internal/chrono"
	"github.com/courtsync-io/courtsync/internal/objectstore"
	"github.com/courtsync-io/courtsync/internal/partition"
	"github.com/courtsync-io/courtsync/internal/record"
)

var (
	d1men = partition.Key{Division: partition.DivisionD1, Gender: partition.GenderMen}
	d2men = partition.Key{Division: partition.DivisionD2, Gender: partition.GenderMen}

	syncDate = chrono.Date{Year: 2026, Month: time.January, Day: 15}
)

func writeArtifact(t *testing.T, local *record.Store, key partition.Key, body string) {
	t.Helper()
	path := local.Path(syncDate, key)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newEngine(t *testing.T, cfg Config) (*Engine, *objectstore.MockStore, *record.Store) {
	t.Helper()
	remote := objectstore.NewMockStore()
	local := record.NewStore(t.TempDir())
	return New(cfg, remote, local, nil, nil), remote, local
}

func TestKeyLayout(t *testing.T) {
	e, _, _ := newEngine(t, Config{Prefix: "stats"})

	want := "stats/2026/01/men/d1/basketball_men_d1_2026_01_15.csv.gz"
	require.Equal(t, want, e.Key(syncDate, d1men))
}

func TestReconcileUploadWhenAbsent(t *testing.T) {
	e, _, local := newEngine(t, Config{Prefix: "stats"})
	writeArtifact(t, local, d1men, "PLAYER\nSmith\n")

	decisions, err := e.Reconcile(context.Background(), syncDate, partition.All())
	require.NoError(t, err)

	require.Len(t, decisions, 1)
	d := decisions[0]
	require.Equal(t, ActionUpload, d.Action)
	require.Equal(t, d1men, d.Partition)
	require.Empty(t, d.RemoteETag)
	require.NotEmpty(t, d.Fingerprint.SHA256)
}

func TestReconcileOmitsMissingArtifacts(t *testing.T) {
	e, _, _ := newEngine(t, Config{Prefix: "stats"})

	decisions, err := e.Reconcile(context.Background(), syncDate, partition.All())
	require.NoError(t, err)
	require.Empty(t, decisions)
}

func TestApplyUploadStoresCompressedContent(t *testing.T) {
	e, remote, local := newEngine(t, Config{Prefix: "stats"})
	writeArtifact(t, local, d1men, "PLAYER\nSmith\n")

	decisions, err := e.Reconcile(context.Background(), syncDate, partition.All())
	require.NoError(t, err)

	out := e.Apply(context.Background(), decisions[0])
	require.True(t, out.Clean())
	require.Equal(t, ActionUpload, out.Applied)

	rc, err := remote.Get(context.Background(), decisions[0].Key)
	require.NoError(t, err)
	defer rc.Close()
	gz, err := gzip.NewReader(rc)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	require.Equal(t, "PLAYER\nSmith\n", string(body))

	meta, err := remote.Head(context.Background(), decisions[0].Key)
	require.NoError(t, err)
	require.Equal(t, decisions[0].Fingerprint.SHA256, meta.Metadata[MetaSHA256])
	require.NotEmpty(t, meta.Metadata[MetaModifiedMs])
}

// A second sync of unchanged content must not write.
func TestSecondPassSkips(t *testing.T) {
	e, _, local := newEngine(t, Config{Prefix: "stats"})
	writeArtifact(t, local, d1men, "PLAYER\nSmith\n")

	first, err := e.Reconcile(context.Background(), syncDate, partition.All())
	require.NoError(t, err)
	e.ApplyAll(context.Background(), first)

	second, err := e.Reconcile(context.Background(), syncDate, partition.All())
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, ActionSkip, second[0].Action)

	outcomes := e.ApplyAll(context.Background(), second)
	require.True(t, outcomes[0].Clean())
	require.Equal(t, ActionSkip, outcomes[0].Applied)
}

func TestChangedContentOverwrites(t *testing.T) {
	e, remote, local := newEngine(t, Config{Prefix: "stats"})
	writeArtifact(t, local, d1men, "PLAYER\nSmith\n")

	first, err := e.Reconcile(context.Background(), syncDate, partition.All())
	require.NoError(t, err)
	e.ApplyAll(context.Background(), first)

	writeArtifact(t, local, d1men, "PLAYER\nSmith\nJones\n")

	second, err := e.Reconcile(context.Background(), syncDate, partition.All())
	require.NoError(t, err)
	require.Equal(t, ActionOverwrite, second[0].Action)
	require.NotEmpty(t, second[0].RemoteETag)

	out := e.Apply(context.Background(), second[0])
	require.True(t, out.Clean())

	meta, err := remote.Head(context.Background(), second[0].Key)
	require.NoError(t, err)
	require.Equal(t, second[0].Fingerprint.SHA256, meta.Metadata[MetaSHA256])
}

func TestForceOverwritesIdenticalContent(t *testing.T) {
	e, _, local := newEngine(t, Config{Prefix: "stats"})
	writeArtifact(t, local, d1men, "PLAYER\nSmith\n")

	first, err := e.Reconcile(context.Background(), syncDate, partition.All())
	require.NoError(t, err)
	e.ApplyAll(context.Background(), first)

	forced := New(Config{Prefix: "stats", Force: true}, e.remote, e.local, nil, nil)
	second, err := forced.Reconcile(context.Background(), syncDate, partition.All())
	require.NoError(t, err)
	require.Equal(t, ActionOverwrite, second[0].Action)

	out := forced.Apply(context.Background(), second[0])
	require.True(t, out.Clean())
	require.Equal(t, ActionOverwrite, out.Applied)
}

// One precondition failure triggers a refresh and recompute; a concurrent
// writer that stored identical content resolves to a skip.
func TestApplyRefreshResolvesToSkip(t *testing.T) {
	e, remote, local := newEngine(t, Config{Prefix: "stats"})
	writeArtifact(t, local, d1men, "PLAYER\nSmith\n")

	decisions, err := e.Reconcile(context.Background(), syncDate, partition.All())
	require.NoError(t, err)
	d := decisions[0]

	// Concurrent writer lands the same fingerprint before our upload.
	require.NoError(t, remote.PutWithOptions(context.Background(), d.Key,
		gzipped(t, "PLAYER\nSmith\n"), 0, "text/csv",
		objectstore.PutOptions{Metadata: map[string]string{MetaSHA256: d.Fingerprint.SHA256}}))

	out := e.Apply(context.Background(), d)
	require.True(t, out.Clean())
	require.Equal(t, ActionSkip, out.Applied)
}

// conflictingStore fails every conditional write, standing in for a remote
// that keeps changing under the engine.
type conflictingStore struct {
	*objectstore.MockStore
}

func (s conflictingStore) PutWithOptions(ctx context.Context, key string, reader io.Reader, size int64, contentType string, opts objectstore.PutOptions) error {
	return &objectstore.ObjectError{Op: "Put", Key: key, Err: objectstore.ErrPreconditionFailed}
}

// A second precondition failure after the refresh is a conflict, not a blind
// overwrite.
func TestApplySecondPreconditionFailureIsConflict(t *testing.T) {
	mock := objectstore.NewMockStore()
	local := record.NewStore(t.TempDir())
	e := New(Config{Prefix: "stats"}, conflictingStore{mock}, local, nil, nil)
	writeArtifact(t, local, d1men, "PLAYER\nSmith\n")

	decisions, err := e.Reconcile(context.Background(), syncDate, partition.All())
	require.NoError(t, err)
	d := decisions[0]

	// Concurrent writer stored different content before our upload.
	require.NoError(t, mock.PutWithOptions(context.Background(), d.Key,
		gzipped(t, "PLAYER\nOther\n"), 0, "text/csv",
		objectstore.PutOptions{Metadata: map[string]string{MetaSHA256: "deadbeef"}}))

	out := e.Apply(context.Background(), d)
	require.False(t, out.Clean())
	require.True(t, out.Conflict)
	require.ErrorIs(t, out.Err, objectstore.ErrPreconditionFailed)
	require.Equal(t, ActionOverwrite, out.Applied)
}

func TestApplyNonPreconditionErrorSurfaces(t *testing.T) {
	e, remote, local := newEngine(t, Config{Prefix: "stats"})
	writeArtifact(t, local, d1men, "PLAYER\nSmith\n")

	decisions, err := e.Reconcile(context.Background(), syncDate, partition.All())
	require.NoError(t, err)

	wantErr := errors.New("bucket gone")
	remote.PutErr = wantErr

	out := e.Apply(context.Background(), decisions[0])
	require.False(t, out.Clean())
	require.False(t, out.Conflict)
	require.ErrorIs(t, out.Err, wantErr)
}

func TestRemoteExists(t *testing.T) {
	e, _, local := newEngine(t, Config{Prefix: "stats"})

	exists, err := e.RemoteExists(context.Background(), syncDate, d1men)
	require.NoError(t, err)
	require.False(t, exists)

	writeArtifact(t, local, d1men, "PLAYER\nSmith\n")
	decisions, err := e.Reconcile(context.Background(), syncDate, partition.All())
	require.NoError(t, err)
	e.ApplyAll(context.Background(), decisions)

	exists, err = e.RemoteExists(context.Background(), syncDate, d1men)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = e.RemoteExists(context.Background(), syncDate, d2men)
	require.NoError(t, err)
	require.False(t, exists)
}

func gzipped(t *testing.T, body string) io.Reader {
	t.Helper()
	pr, pw := io.Pipe()
	go func() {
		gz := gzip.NewWriter(pw)
		_, err := gz.Write([]byte(body))
		if err == nil {
			err = gz.Close()
		}
		pw.CloseWithError(err)
	}()
	return pr
}
