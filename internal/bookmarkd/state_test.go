package bookmarkd

import (
	"path/filepath"
	"testing"
	"time"
)

func sampleState() *persistedState {
	return &persistedState{
		Associations: map[string][]Association{
			"ws": {{BookmarkID: "b1", URL: "https://a.com", Timestamp: time.Now().UTC().Truncate(time.Second)}},
		},
		EventCounter: 42,
	}
}

func TestJSONFileStateBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	backend := NewJSONFileStateBackend(path)

	loaded, err := backend.Load()
	if err != nil {
		t.Fatalf("load before first save: %v", err)
	}
	if loaded != nil {
		t.Fatalf("missing file should load as nil state, got %+v", loaded)
	}

	if err := backend.Save(sampleState()); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err = backend.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil || loaded.EventCounter != 42 {
		t.Fatalf("unexpected loaded state %+v", loaded)
	}
	if len(loaded.Associations["ws"]) != 1 || loaded.Associations["ws"][0].URL != "https://a.com" {
		t.Fatalf("associations did not round trip: %+v", loaded.Associations)
	}
}

func TestInMemoryStateBackendIsolatesSnapshots(t *testing.T) {
	backend := NewInMemoryStateBackend()
	state := sampleState()
	if err := backend.Save(state); err != nil {
		t.Fatalf("save: %v", err)
	}

	state.Associations["ws"] = append(state.Associations["ws"], Association{URL: "https://b.com"})

	loaded, err := backend.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Associations["ws"]) != 1 {
		t.Fatalf("saved snapshot must be isolated from later mutation, got %d entries", len(loaded.Associations["ws"]))
	}
}
