package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

// opCall captures one recorded operation.
type opCall struct {
	duration float64
	success  bool
	bytes    int64
}

// mockMetrics records all metric calls for testing.
type mockMetrics struct {
	puts    []opCall
	gets    []opCall
	heads   []opCall
	deletes []opCall
	lists   []opCall
}

func (m *mockMetrics) RecordPut(duration float64, success bool, bytes int64) {
	m.puts = append(m.puts, opCall{duration, success, bytes})
}

func (m *mockMetrics) RecordGet(duration float64, success bool, bytes int64) {
	m.gets = append(m.gets, opCall{duration, success, bytes})
}

func (m *mockMetrics) RecordHead(duration float64, success bool) {
	m.heads = append(m.heads, opCall{duration: duration, success: success})
}

func (m *mockMetrics) RecordDelete(duration float64, success bool) {
	m.deletes = append(m.deletes, opCall{duration: duration, success: success})
}

func (m *mockMetrics) RecordList(duration float64, success bool) {
	m.lists = append(m.lists, opCall{duration: duration, success: success})
}

// closableStore wraps MockStore to observe Close.
type closableStore struct {
	*MockStore
	closed bool
}

func (s *closableStore) Close() error {
	s.closed = true
	return nil
}

func putObject(t *testing.T, s Store, key, body string) {
	t.Helper()
	if err := s.Put(context.Background(), key, bytes.NewReader([]byte(body)), int64(len(body)), "text/csv"); err != nil {
		t.Fatalf("Put %s: %v", key, err)
	}
}

func TestInstrumentedStorePut(t *testing.T) {
	metrics := &mockMetrics{}
	instrumented := NewInstrumentedStore(NewMockStore(), metrics)

	data := []byte("PLAYER\nSmith\n")
	err := instrumented.Put(context.Background(), "key1", bytes.NewReader(data), int64(len(data)), "text/csv")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if len(metrics.puts) != 1 {
		t.Fatalf("Expected 1 put call, got %d", len(metrics.puts))
	}
	if !metrics.puts[0].success {
		t.Error("Expected success=true")
	}
	if metrics.puts[0].bytes != int64(len(data)) {
		t.Errorf("Expected bytes=%d, got %d", len(data), metrics.puts[0].bytes)
	}
}

func TestInstrumentedStorePutWithOptionsFailure(t *testing.T) {
	metrics := &mockMetrics{}
	mock := NewMockStore()
	instrumented := NewInstrumentedStore(mock, metrics)

	ctx := context.Background()
	data := []byte("PLAYER\nSmith\n")
	putObject(t, mock, "key1", "existing")

	err := instrumented.PutWithOptions(ctx, "key1", bytes.NewReader(data), int64(len(data)), "text/csv", PutOptions{IfNoneMatch: "*"})
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("Expected ErrPreconditionFailed, got: %v", err)
	}

	if len(metrics.puts) != 1 {
		t.Fatalf("Expected 1 put call, got %d", len(metrics.puts))
	}
	if metrics.puts[0].success {
		t.Error("Expected success=false")
	}
}

func TestInstrumentedStoreGetSuccess(t *testing.T) {
	metrics := &mockMetrics{}
	mock := NewMockStore()
	instrumented := NewInstrumentedStore(mock, metrics)

	data := "PLAYER\nSmith\n"
	putObject(t, mock, "key1", data)

	rc, err := instrumented.Get(context.Background(), "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	readData, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(readData) != data {
		t.Error("Read data doesn't match")
	}
	if err := rc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Metrics are recorded once the body is consumed.
	if len(metrics.gets) != 1 {
		t.Fatalf("Expected 1 get call, got %d", len(metrics.gets))
	}
	if !metrics.gets[0].success {
		t.Error("Expected success=true")
	}
	if metrics.gets[0].bytes != int64(len(data)) {
		t.Errorf("Expected bytes=%d, got %d", len(data), metrics.gets[0].bytes)
	}
}

func TestInstrumentedStoreGetNotFound(t *testing.T) {
	metrics := &mockMetrics{}
	instrumented := NewInstrumentedStore(NewMockStore(), metrics)

	_, err := instrumented.Get(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got: %v", err)
	}

	// Failure is recorded immediately.
	if len(metrics.gets) != 1 {
		t.Fatalf("Expected 1 get call, got %d", len(metrics.gets))
	}
	if metrics.gets[0].success {
		t.Error("Expected success=false")
	}
	if metrics.gets[0].bytes != 0 {
		t.Errorf("Expected bytes=0, got %d", metrics.gets[0].bytes)
	}
}

func TestInstrumentedStoreHead(t *testing.T) {
	metrics := &mockMetrics{}
	mock := NewMockStore()
	instrumented := NewInstrumentedStore(mock, metrics)

	putObject(t, mock, "key1", "PLAYER\nSmith\n")

	meta, err := instrumented.Head(context.Background(), "key1")
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if meta.Key != "key1" {
		t.Errorf("Expected key='key1', got '%s'", meta.Key)
	}

	if _, err := instrumented.Head(context.Background(), "nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got: %v", err)
	}

	if len(metrics.heads) != 2 {
		t.Fatalf("Expected 2 head calls, got %d", len(metrics.heads))
	}
	if !metrics.heads[0].success || metrics.heads[1].success {
		t.Errorf("head outcomes = %v", metrics.heads)
	}
}

func TestInstrumentedStoreDelete(t *testing.T) {
	metrics := &mockMetrics{}
	mock := NewMockStore()
	instrumented := NewInstrumentedStore(mock, metrics)

	putObject(t, mock, "key1", "x")

	if err := instrumented.Delete(context.Background(), "key1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(metrics.deletes) != 1 || !metrics.deletes[0].success {
		t.Errorf("delete calls = %v", metrics.deletes)
	}
}

func TestInstrumentedStoreList(t *testing.T) {
	metrics := &mockMetrics{}
	mock := NewMockStore()
	instrumented := NewInstrumentedStore(mock, metrics)

	putObject(t, mock, "stats/2026/01/key1", "1")
	putObject(t, mock, "stats/2026/01/key2", "2")

	result, err := instrumented.List(context.Background(), "stats/2026/01/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("Expected 2 results, got %d", len(result))
	}
	if len(metrics.lists) != 1 || !metrics.lists[0].success {
		t.Errorf("list calls = %v", metrics.lists)
	}
}

func TestInstrumentedStoreClose(t *testing.T) {
	store := &closableStore{MockStore: NewMockStore()}
	instrumented := NewInstrumentedStore(store, &mockMetrics{})

	if err := instrumented.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !store.closed {
		t.Error("Underlying store should be closed")
	}
}

func TestInstrumentedStoreNilMetrics(t *testing.T) {
	instrumented := NewInstrumentedStore(NewMockStore(), nil)

	ctx := context.Background()
	data := []byte("PLAYER\nSmith\n")

	// All operations must work without a recorder.
	if err := instrumented.Put(ctx, "key1", bytes.NewReader(data), int64(len(data)), "text/csv"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	rc, err := instrumented.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	rc.Close()
	if _, err := instrumented.Head(ctx, "key1"); err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if _, err := instrumented.List(ctx, ""); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if err := instrumented.Delete(ctx, "key1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := instrumented.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestInstrumentedReadCloserDoubleClose(t *testing.T) {
	metrics := &mockMetrics{}
	mock := NewMockStore()
	instrumented := NewInstrumentedStore(mock, metrics)

	putObject(t, mock, "key1", "PLAYER\nSmith\n")

	rc, err := instrumented.Get(context.Background(), "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if err := rc.Close(); err != nil {
		t.Fatalf("First close failed: %v", err)
	}
	if err := rc.Close(); err != nil {
		t.Fatalf("Second close failed: %v", err)
	}

	// Recorded once despite the double close.
	if len(metrics.gets) != 1 {
		t.Errorf("Expected 1 get call, got %d", len(metrics.gets))
	}
}

func TestInstrumentedReadCloserPartialRead(t *testing.T) {
	metrics := &mockMetrics{}
	mock := NewMockStore()
	instrumented := NewInstrumentedStore(mock, metrics)

	putObject(t, mock, "key1", "0123456789")

	rc, err := instrumented.Get(context.Background(), "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	buf := make([]byte, 5)
	n, err := rc.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Expected to read 5 bytes, got %d", n)
	}
	if err := rc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Only the bytes actually read count.
	if len(metrics.gets) != 1 {
		t.Fatalf("Expected 1 get call, got %d", len(metrics.gets))
	}
	if metrics.gets[0].bytes != 5 {
		t.Errorf("Expected bytes=5 (partial read), got %d", metrics.gets[0].bytes)
	}
}
