package bookmarkd

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestBuildStateBackendFromDSNSchemes(t *testing.T) {
	dir := t.TempDir()

	backend, err := BuildStateBackendFromDSN("")
	if err != nil || backend != nil {
		t.Fatalf("empty DSN should yield no backend, got %v %v", backend, err)
	}

	backend, err = BuildStateBackendFromDSN(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("bare path DSN failed: %v", err)
	}
	if _, ok := backend.(*JSONFileStateBackend); !ok {
		t.Fatalf("bare path should map to the JSON file backend, got %T", backend)
	}

	backend, err = BuildStateBackendFromDSN("file://" + filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("file DSN failed: %v", err)
	}
	if _, ok := backend.(*JSONFileStateBackend); !ok {
		t.Fatalf("file scheme should map to the JSON file backend, got %T", backend)
	}

	backend, err = BuildStateBackendFromDSN("memory://")
	if err != nil {
		t.Fatalf("memory DSN failed: %v", err)
	}
	if _, ok := backend.(*InMemoryStateBackend); !ok {
		t.Fatalf("memory scheme should map to the in-memory backend, got %T", backend)
	}

	if _, err = BuildStateBackendFromDSN("mysql://localhost/bookmarkd"); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("mysql should be recognized but unimplemented, got %v", err)
	}
	if _, err = BuildStateBackendFromDSN("carrierpigeon://coop"); err == nil {
		t.Fatalf("unknown scheme must be rejected")
	}
}

func TestBuildEventQueueFromDSNSchemes(t *testing.T) {
	dir := t.TempDir()

	queue, err := BuildEventQueueFromDSN("", 8)
	if err != nil || queue != nil {
		t.Fatalf("empty DSN should yield no queue, got %v %v", queue, err)
	}

	queue, err = BuildEventQueueFromDSN("memory://", 8)
	if err != nil {
		t.Fatalf("memory DSN failed: %v", err)
	}
	if queue.Capacity() != 8 {
		t.Fatalf("expected capacity 8, got %d", queue.Capacity())
	}

	queue, err = BuildEventQueueFromDSN("file://"+filepath.Join(dir, "queue.json"), 4)
	if err != nil {
		t.Fatalf("file DSN failed: %v", err)
	}
	if queue.Capacity() != 4 {
		t.Fatalf("expected capacity 4, got %d", queue.Capacity())
	}

	if _, err = BuildEventQueueFromDSN("redis://localhost:6379/0", 8); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("redis should be recognized but unimplemented, got %v", err)
	}
	if _, err = BuildEventQueueFromDSN("carrierpigeon://coop", 8); err == nil {
		t.Fatalf("unknown scheme must be rejected")
	}
}

func TestRegisteredFactoryTakesPrecedence(t *testing.T) {
	marker := NewInMemoryStateBackend()
	RegisterStateBackendFactory("custom", func(dsn string) (StateBackend, error) {
		return marker, nil
	})
	backend, err := BuildStateBackendFromDSN("custom://anything")
	if err != nil {
		t.Fatalf("custom factory failed: %v", err)
	}
	if backend != marker {
		t.Fatalf("registered factory should be used for its scheme")
	}

	queueMarker := NewInMemoryEventQueue(1)
	RegisterEventQueueFactory("customq", func(dsn string, capacity int) (EventQueue, error) {
		return queueMarker, nil
	})
	queue, err := BuildEventQueueFromDSN("customq://anything", 8)
	if err != nil {
		t.Fatalf("custom queue factory failed: %v", err)
	}
	if queue != queueMarker {
		t.Fatalf("registered queue factory should be used for its scheme")
	}
}
