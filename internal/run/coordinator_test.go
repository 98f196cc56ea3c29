package run

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/courtsync-io/courtsync/internal/backoff"
	"github.com/courtsync-io/courtsync/internal/chrono"
	"github.com/courtsync-io/courtsync/internal/partition"
	"github.com/courtsync-io/courtsync/internal/plan"
	"github.com/courtsync-io/courtsync/internal/record"
	"github.com/courtsync-io/courtsync/internal/source"
)

var (
	d1men = partition.Key{Division: partition.DivisionD1, Gender: partition.GenderMen}
	d2men = partition.Key{Division: partition.DivisionD2, Gender: partition.GenderMen}
	d3men = partition.Key{Division: partition.DivisionD3, Gender: partition.GenderMen}

	runDate = chrono.Date{Year: 2026, Month: time.January, Day: 15}
)

// fakeFetcher serves synthetic games and programmable per-id failures.
type fakeFetcher struct {
	mu    sync.Mutex
	fail  map[record.GameID]error
	delay time.Duration
	calls map[record.GameID]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		fail:  make(map[record.GameID]error),
		calls: make(map[record.GameID]int),
	}
}

func (f *fakeFetcher) FetchGame(ctx context.Context, date chrono.Date, key partition.Key, id record.GameID) (*record.Game, error) {
	f.mu.Lock()
	f.calls[id]++
	err := f.fail[id]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, source.Transient(ctx.Err())
		}
	}
	if err != nil {
		return nil, err
	}
	return &record.Game{
		ID:        id,
		Link:      "/contests/" + string(id) + "/box_score",
		Date:      date.ISO(),
		Partition: key,
		Home:      teamBoxFixture("Duke", "UNC"),
		Away:      teamBoxFixture("UNC", "Duke"),
	}, nil
}

func teamBoxFixture(team, opp string) record.TeamBox {
	return record.TeamBox{
		Team:     team,
		Opponent: opp,
		Lines:    []record.StatLine{{Player: "Smith, J.", Position: "G", Minutes: "30:00", Points: 10}},
	}
}

func testConfig() Config {
	return Config{
		Retry:         backoff.Policy{MaxAttempts: 2, InitialDelayMs: 1, MaxDelayMs: 2, Multiplier: 1},
		ItemTimeoutMs: 2000,
		CopyWaitMs:    2000,
	}
}

func TestRunFetchesAndCopies(t *testing.T) {
	store := record.NewStore(t.TempDir())
	fetcher := newFakeFetcher()
	c := NewCoordinator(testConfig(), fetcher, store, nil, nil)

	plans := map[partition.Key]plan.Plan{
		d1men: {Target: d1men, Items: []plan.WorkItem{
			{ID: "100", Action: plan.ActionFetch},
			{ID: "200", Action: plan.ActionFetch},
		}},
		d2men: {Target: d2men, Items: []plan.WorkItem{
			{ID: "100", Action: plan.ActionCopy, From: d1men},
		}},
	}

	reports := c.Run(context.Background(), runDate, plans)

	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	owner := reports[d1men]
	if !owner.Clean() || owner.Fetched != 2 {
		t.Errorf("owner report = %+v, want clean with 2 fetched", owner)
	}
	dep := reports[d2men]
	if !dep.Clean() || dep.Copied != 1 || dep.Fetched != 0 {
		t.Errorf("dependent report = %+v, want clean with 1 copied", dep)
	}
	if fetcher.calls["100"] != 1 {
		t.Errorf("game 100 fetched %d times, want 1", fetcher.calls["100"])
	}

	has, err := store.HasGame(runDate, d2men, "100")
	if err != nil || !has {
		t.Errorf("copied game missing from dependent artifact: %v %v", has, err)
	}
	if owner.Fingerprint.SHA256 == "" {
		t.Error("owner report has no fingerprint")
	}
}

func TestRunIsolatesPartitionFailure(t *testing.T) {
	store := record.NewStore(t.TempDir())
	fetcher := newFakeFetcher()
	fetcher.fail["100"] = source.Transient(errors.New("503"))
	c := NewCoordinator(testConfig(), fetcher, store, nil, nil)

	plans := map[partition.Key]plan.Plan{
		d1men: {Target: d1men, Items: []plan.WorkItem{{ID: "100", Action: plan.ActionFetch}}},
		d3men: {Target: d3men, Items: []plan.WorkItem{{ID: "300", Action: plan.ActionFetch}}},
	}

	reports := c.Run(context.Background(), runDate, plans)

	if reports[d1men].Clean() || reports[d1men].Failed != 1 {
		t.Errorf("failing partition report = %+v, want 1 failed", reports[d1men])
	}
	if !reports[d3men].Clean() || reports[d3men].Fetched != 1 {
		t.Errorf("sibling report = %+v, want clean", reports[d3men])
	}
	if fetcher.calls["100"] != 2 {
		t.Errorf("failing game attempted %d times, want 2", fetcher.calls["100"])
	}
}

func TestRunParseErrorSkipsItem(t *testing.T) {
	store := record.NewStore(t.TempDir())
	fetcher := newFakeFetcher()
	fetcher.fail["100"] = &source.ParseError{ID: "100", Err: errors.New("no box score table")}
	c := NewCoordinator(testConfig(), fetcher, store, nil, nil)

	plans := map[partition.Key]plan.Plan{
		d1men: {Target: d1men, Items: []plan.WorkItem{
			{ID: "100", Action: plan.ActionFetch},
			{ID: "200", Action: plan.ActionFetch},
		}},
	}

	reports := c.Run(context.Background(), runDate, plans)

	rep := reports[d1men]
	if !rep.Clean() || rep.Skipped != 1 || rep.Fetched != 1 {
		t.Errorf("report = %+v, want clean with 1 skipped and 1 fetched", rep)
	}
	if fetcher.calls["100"] != 1 {
		t.Errorf("parse failure retried: %d calls", fetcher.calls["100"])
	}
}

func TestRunSkipsPresentGames(t *testing.T) {
	store := record.NewStore(t.TempDir())
	fetcher := newFakeFetcher()
	c := NewCoordinator(testConfig(), fetcher, store, nil, nil)

	plans := map[partition.Key]plan.Plan{
		d1men: {Target: d1men, Items: []plan.WorkItem{{ID: "100", Action: plan.ActionFetch}}},
	}

	first := c.Run(context.Background(), runDate, plans)
	second := c.Run(context.Background(), runDate, plans)

	if first[d1men].Fetched != 1 {
		t.Errorf("first run = %+v, want 1 fetched", first[d1men])
	}
	if second[d1men].Skipped != 1 || second[d1men].Fetched != 0 {
		t.Errorf("second run = %+v, want 1 skipped", second[d1men])
	}
	if fetcher.calls["100"] != 1 {
		t.Errorf("game refetched on second run: %d calls", fetcher.calls["100"])
	}
	if first[d1men].Fingerprint.SHA256 != second[d1men].Fingerprint.SHA256 {
		t.Error("artifact fingerprint changed across idempotent runs")
	}
}

// When the owner failed to produce the game, the dependent falls back to
// fetching it rather than dropping it.
func TestRunCopyDegradesToFetchWhenOwnerLacksGame(t *testing.T) {
	store := record.NewStore(t.TempDir())
	fetcher := newFakeFetcher()
	fetcher.fail["100"] = source.Transient(errors.New("503"))
	c := NewCoordinator(testConfig(), fetcher, store, nil, nil)

	plans := map[partition.Key]plan.Plan{
		d1men: {Target: d1men, Items: []plan.WorkItem{{ID: "100", Action: plan.ActionFetch}}},
		d2men: {Target: d2men, Items: []plan.WorkItem{{ID: "100", Action: plan.ActionCopy, From: d1men}}},
	}

	// Owner exhausts both attempts, then the dependent's fallback fetch
	// succeeds.
	go func() {
		time.Sleep(50 * time.Millisecond)
		fetcher.mu.Lock()
		delete(fetcher.fail, "100")
		fetcher.mu.Unlock()
	}()

	reports := c.Run(context.Background(), runDate, plans)

	dep := reports[d2men]
	if dep.Copied != 0 {
		t.Errorf("dependent copied from failed owner: %+v", dep)
	}
	if dep.Fetched+dep.Failed != 1 {
		t.Errorf("dependent report = %+v, want exactly one fetch outcome", dep)
	}
}

// A slow owner only stalls its dependents for the bounded wait; past that
// the dependent fetches the game itself instead of blocking on the owner.
func TestRunCopyWaitTimeoutDegradesToFetch(t *testing.T) {
	store := record.NewStore(t.TempDir())
	fetcher := newFakeFetcher()
	fetcher.delay = 150 * time.Millisecond

	cfg := testConfig()
	cfg.CopyWaitMs = 20
	c := NewCoordinator(cfg, fetcher, store, nil, nil)

	plans := map[partition.Key]plan.Plan{
		d1men: {Target: d1men, Items: []plan.WorkItem{{ID: "100", Action: plan.ActionFetch}}},
		d2men: {Target: d2men, Items: []plan.WorkItem{{ID: "100", Action: plan.ActionCopy, From: d1men}}},
	}

	reports := c.Run(context.Background(), runDate, plans)

	dep := reports[d2men]
	if !dep.Clean() || dep.Fetched != 1 || dep.Copied != 0 {
		t.Errorf("dependent report = %+v, want 1 fetched after wait timeout", dep)
	}
	if fetcher.calls["100"] != 2 {
		t.Errorf("game fetched %d times, want 2 (owner and dependent)", fetcher.calls["100"])
	}
}

// A missing readiness barrier (plan references a partition outside this run)
// copies immediately from whatever artifact exists.
func TestRunCopyWithoutBarrier(t *testing.T) {
	store := record.NewStore(t.TempDir())
	fetcher := newFakeFetcher()
	c := NewCoordinator(testConfig(), fetcher, store, nil, nil)

	// Owner artifact produced by an earlier run.
	seed := map[partition.Key]plan.Plan{
		d1men: {Target: d1men, Items: []plan.WorkItem{{ID: "100", Action: plan.ActionFetch}}},
	}
	c.Run(context.Background(), runDate, seed)

	plans := map[partition.Key]plan.Plan{
		d2men: {Target: d2men, Items: []plan.WorkItem{{ID: "100", Action: plan.ActionCopy, From: d1men}}},
	}
	reports := c.Run(context.Background(), runDate, plans)

	if rep := reports[d2men]; !rep.Clean() || rep.Copied != 1 {
		t.Errorf("report = %+v, want clean with 1 copied", rep)
	}
}

// A duplicate game's rows carry the cross-division flag in the fetching
// partition's own artifact, not only in copies taken from it.
func TestRunFetchMarksDuplicateOnOwner(t *testing.T) {
	store := record.NewStore(t.TempDir())
	fetcher := newFakeFetcher()
	c := NewCoordinator(testConfig(), fetcher, store, nil, nil)

	plans := map[partition.Key]plan.Plan{
		d1men: {Target: d1men, Items: []plan.WorkItem{
			{ID: "100", Action: plan.ActionFetch, Duplicate: true},
			{ID: "200", Action: plan.ActionFetch},
		}},
	}
	if rep := c.Run(context.Background(), runDate, plans)[d1men]; !rep.Clean() {
		t.Fatalf("report = %+v, want clean", rep)
	}

	f, err := os.Open(store.Path(runDate, d1men))
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}

	col := func(name string) int {
		for i, h := range rows[0] {
			if h == name {
				return i
			}
		}
		t.Fatalf("column %s missing from header %v", name, rows[0])
		return -1
	}
	idCol, dupCol := col("GAMEID"), col("DUPLICATE_ACROSS_DIVISIONS")

	flags := make(map[string]string)
	for _, row := range rows[1:] {
		flags[row[idCol]] = row[dupCol]
	}
	if flags["100"] != "true" {
		t.Errorf("duplicate game flag = %q, want true", flags["100"])
	}
	if flags["200"] != "false" {
		t.Errorf("single-listing game flag = %q, want false", flags["200"])
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := record.NewStore(t.TempDir())
	c := NewCoordinator(testConfig(), newFakeFetcher(), store, nil, nil)

	plans := map[partition.Key]plan.Plan{
		d1men: {Target: d1men, Items: []plan.WorkItem{{ID: "100", Action: plan.ActionFetch}}},
	}
	reports := c.Run(ctx, runDate, plans)

	rep := reports[d1men]
	if rep.Clean() || !errors.Is(rep.Err, context.Canceled) {
		t.Errorf("report = %+v, want context.Canceled", rep)
	}
}

// itemCounter counts item outcomes delivered to the metrics recorder.
type itemCounter struct {
	mu    sync.Mutex
	items map[[2]string]int
	parts map[string]int
}

func (m *itemCounter) RecordItem(action, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[[2]string]int)
	}
	m.items[[2]string{action, outcome}]++
}

func (m *itemCounter) RecordPartition(outcome string, durationSeconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.parts == nil {
		m.parts = make(map[string]int)
	}
	m.parts[outcome]++
}

func TestRunRecordsMetrics(t *testing.T) {
	store := record.NewStore(t.TempDir())
	fetcher := newFakeFetcher()
	fetcher.fail["300"] = errors.New("permanent")
	metrics := &itemCounter{}
	c := NewCoordinator(testConfig(), fetcher, store, nil, metrics)

	plans := map[partition.Key]plan.Plan{
		d1men: {Target: d1men, Items: []plan.WorkItem{
			{ID: "100", Action: plan.ActionFetch},
			{ID: "300", Action: plan.ActionFetch},
		}},
		d2men: {Target: d2men, Items: []plan.WorkItem{
			{ID: "100", Action: plan.ActionCopy, From: d1men},
		}},
	}

	c.Run(context.Background(), runDate, plans)

	if got := metrics.items[[2]string{"fetch", "ok"}]; got != 1 {
		t.Errorf("fetch ok = %d, want 1", got)
	}
	if got := metrics.items[[2]string{"fetch", "failed"}]; got != 1 {
		t.Errorf("fetch failed = %d, want 1", got)
	}
	if got := metrics.items[[2]string{"copy", "ok"}]; got != 1 {
		t.Errorf("copy ok = %d, want 1", got)
	}
	if metrics.parts["clean"] != 1 || metrics.parts["failed"] != 1 {
		t.Errorf("partition outcomes = %v, want one clean one failed", metrics.parts)
	}
}
