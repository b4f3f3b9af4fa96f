package bookmarkd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/devshelf/bookmarkd/internal/classify"
)

type fakeBookmarkStore struct {
	mu      sync.Mutex
	roots   []Node
	nextID  int
	moves   []string
	creates []CreateRequest

	treeErr   error
	createErr error
	moveErr   error
}

func newFakeBookmarkStore(roots []Node) *fakeBookmarkStore {
	return &fakeBookmarkStore{roots: roots, nextID: 100}
}

func (f *fakeBookmarkStore) Get(ctx context.Context, id string) (Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node := findNode(f.roots, id)
	if node == nil {
		return Node{}, ErrNotFound
	}
	return *node, nil
}

func (f *fakeBookmarkStore) Create(ctx context.Context, req CreateRequest) (Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return Node{}, f.createErr
	}
	f.creates = append(f.creates, req)
	node := Node{ID: fmt.Sprintf("f%d", f.nextID), Title: req.Title, URL: req.URL}
	f.nextID++
	parent := findNode(f.roots, req.ParentID)
	if parent != nil {
		parent.Children = append(parent.Children, node)
	}
	return node, nil
}

func (f *fakeBookmarkStore) Move(ctx context.Context, id, parentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moves = append(f.moves, id+"->"+parentID)
	return nil
}

func (f *fakeBookmarkStore) GetTree(ctx context.Context) ([]Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.treeErr != nil {
		return nil, f.treeErr
	}
	cloned := make([]Node, 0, len(f.roots))
	for _, root := range f.roots {
		cloned = append(cloned, cloneNode(root))
	}
	return cloned, nil
}

type countingStateBackend struct {
	mu        sync.Mutex
	snapshot  *persistedState
	saveCalls int
	saveErr   error
}

func (b *countingStateBackend) Load() (*persistedState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot, nil
}

func (b *countingStateBackend) Save(state *persistedState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.saveCalls++
	b.snapshot = state
	return nil
}

func browserRoots() []Node {
	return []Node{{
		ID: "0",
		Children: []Node{
			{ID: "1", Title: "Bookmarks Bar"},
			{ID: "2", Title: "Other Bookmarks"},
		},
	}}
}

func newTestEngine(t *testing.T, store BookmarkStore, dir WorkspaceDirectory, settings SettingsStore, backend StateBackend) *Engine {
	t.Helper()
	if settings == nil {
		settings = StaticSettings{SettingAutoOrganize: true}
	}
	if dir == nil {
		dir = StaticWorkspaceDirectory{}
	}
	e := NewEngineWithOptions(Options{
		Bookmarks:      store,
		Workspaces:     dir,
		Settings:       settings,
		StateBackend:   backend,
		DisableWorkers: true,
	})
	t.Cleanup(e.Close)
	return e
}

func TestSubmitEventRejectsEmptyURL(t *testing.T) {
	e := newTestEngine(t, newFakeBookmarkStore(browserRoots()), nil, nil, nil)
	if _, err := e.SubmitEvent(BookmarkEvent{BookmarkID: "5", Title: "no url"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSubmitEventRejectsUnknownType(t *testing.T) {
	e := newTestEngine(t, newFakeBookmarkStore(browserRoots()), nil, nil, nil)
	if _, err := e.SubmitEvent(BookmarkEvent{URL: "https://a.com", Type: "deleted"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown type, got %v", err)
	}
}

func TestSubmitEventQueueFull(t *testing.T) {
	e := NewEngineWithOptions(Options{
		Bookmarks:      newFakeBookmarkStore(browserRoots()),
		Workspaces:     StaticWorkspaceDirectory{},
		Settings:       StaticSettings{},
		EventQueueSize: 1,
		DisableWorkers: true,
	})
	defer e.Close()

	if _, err := e.SubmitEvent(BookmarkEvent{URL: "https://a.com"}); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if _, err := e.SubmitEvent(BookmarkEvent{URL: "https://b.com"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestProcessEventOrganizesBookmark(t *testing.T) {
	store := newFakeBookmarkStore(browserRoots())
	backend := &countingStateBackend{}
	dir := StaticWorkspaceDirectory{
		{ID: "ws-data", TechStack: []string{"python", "docker"}},
		{ID: "ws-web", TechStack: []string{"react", "node"}},
	}
	e := newTestEngine(t, store, dir, nil, backend)

	e.processEvent(context.Background(), BookmarkEvent{
		EventID:    "evt_1",
		BookmarkID: "b1",
		URL:        "https://example.com/react-tutorial",
		Title:      "Learn React and JSX",
	})

	records := e.Records(0)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.Outcome != OutcomeOrganized {
		t.Fatalf("expected organized outcome, got %s (error=%s)", rec.Outcome, rec.Error)
	}
	if rec.WorkspaceID != "ws-web" {
		t.Fatalf("expected association with ws-web, got %q", rec.WorkspaceID)
	}
	if rec.FolderID == "" {
		t.Fatalf("expected a resolved folder id")
	}
	if len(store.creates) != 1 || store.creates[0].Title != "Dev - React" {
		t.Fatalf("expected one folder creation named Dev - React, got %+v", store.creates)
	}
	if store.creates[0].ParentID != "1" {
		t.Fatalf("expected folder created under bookmarks bar, got parent %q", store.creates[0].ParentID)
	}
	if len(store.moves) != 1 || store.moves[0] != "b1->"+rec.FolderID {
		t.Fatalf("expected bookmark moved into resolved folder, got %v", store.moves)
	}

	assocs := e.Associations("ws-web")
	if len(assocs) != 1 {
		t.Fatalf("expected 1 association, got %d", len(assocs))
	}
	if assocs[0].URL != "https://example.com/react-tutorial" || assocs[0].Category.Tech != "react" {
		t.Fatalf("unexpected association %+v", assocs[0])
	}
	if assocs[0].Timestamp.IsZero() {
		t.Fatalf("association timestamp not set")
	}
	if backend.saveCalls != 1 {
		t.Fatalf("expected full-map persist after association, got %d saves", backend.saveCalls)
	}
}

func TestProcessEventUnclassified(t *testing.T) {
	store := newFakeBookmarkStore(browserRoots())
	e := newTestEngine(t, store, nil, nil, nil)

	e.processEvent(context.Background(), BookmarkEvent{
		EventID:    "evt_1",
		BookmarkID: "b1",
		URL:        "https://example.com/cooking",
		Title:      "Sourdough Basics",
	})

	records := e.Records(0)
	if len(records) != 1 || records[0].Outcome != OutcomeUnclassified {
		t.Fatalf("expected unclassified outcome, got %+v", records)
	}
	if len(store.creates) != 0 || len(store.moves) != 0 {
		t.Fatalf("classification miss must have no side effects")
	}
}

func TestProcessEventDisabledFlagSkipsSideEffects(t *testing.T) {
	store := newFakeBookmarkStore(browserRoots())
	dir := StaticWorkspaceDirectory{{ID: "ws", TechStack: []string{"react"}}}
	e := newTestEngine(t, store, dir, StaticSettings{SettingAutoOrganize: false}, nil)

	e.processEvent(context.Background(), BookmarkEvent{
		EventID:    "evt_1",
		BookmarkID: "b1",
		URL:        "https://example.com/react",
		Title:      "React",
	})

	records := e.Records(0)
	if len(records) != 1 || records[0].Outcome != OutcomeDisabled {
		t.Fatalf("expected disabled outcome, got %+v", records)
	}
	if records[0].Category == nil {
		t.Fatalf("classification result should still be recorded")
	}
	if len(store.creates) != 0 || len(store.moves) != 0 {
		t.Fatalf("disabled flag must skip folder and association side effects")
	}
	if len(e.Associations("ws")) != 0 {
		t.Fatalf("no association expected when the flag is off")
	}
}

func TestProcessEventNoMatchingWorkspace(t *testing.T) {
	store := newFakeBookmarkStore(browserRoots())
	dir := StaticWorkspaceDirectory{{ID: "ws", TechStack: []string{"rust"}}}
	e := newTestEngine(t, store, dir, nil, nil)

	e.processEvent(context.Background(), BookmarkEvent{
		EventID:    "evt_1",
		BookmarkID: "b1",
		URL:        "https://example.com/react",
		Title:      "React",
	})

	records := e.Records(0)
	if len(records) != 1 || records[0].Outcome != OutcomeOrganized {
		t.Fatalf("workspace miss is not an error, got %+v", records)
	}
	if records[0].WorkspaceID != "" {
		t.Fatalf("expected no workspace id, got %q", records[0].WorkspaceID)
	}
	if len(store.moves) != 1 {
		t.Fatalf("folder move should still happen, got %v", store.moves)
	}
	if len(e.Associations("ws")) != 0 {
		t.Fatalf("no association expected on workspace miss")
	}
}

func TestProcessEventStoreFailureIsTerminal(t *testing.T) {
	store := newFakeBookmarkStore(browserRoots())
	store.treeErr = errors.New("store unavailable")
	dir := StaticWorkspaceDirectory{{ID: "ws", TechStack: []string{"react"}}}
	e := newTestEngine(t, store, dir, nil, nil)

	e.processEvent(context.Background(), BookmarkEvent{
		EventID:    "evt_1",
		BookmarkID: "b1",
		URL:        "https://example.com/react",
		Title:      "React",
	})

	records := e.Records(0)
	if len(records) != 1 || records[0].Outcome != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %+v", records)
	}
	if records[0].Error == "" {
		t.Fatalf("failure reason should be recorded")
	}
	if len(e.Associations("ws")) != 0 {
		t.Fatalf("failed events must not leave partial associations")
	}
}

func TestProcessEventFirstWorkspaceWins(t *testing.T) {
	store := newFakeBookmarkStore(browserRoots())
	dir := StaticWorkspaceDirectory{
		{ID: "ws-a", TechStack: []string{"react"}},
		{ID: "ws-b", TechStack: []string{"react"}},
	}
	e := newTestEngine(t, store, dir, nil, nil)

	e.processEvent(context.Background(), BookmarkEvent{
		EventID:    "evt_1",
		BookmarkID: "b1",
		URL:        "https://example.com/react",
		Title:      "React",
	})

	if len(e.Associations("ws-a")) != 1 || len(e.Associations("ws-b")) != 0 {
		t.Fatalf("first workspace in directory order must win")
	}
}

func TestAssociationsAreAppendOnlyHistory(t *testing.T) {
	store := newFakeBookmarkStore(browserRoots())
	dir := StaticWorkspaceDirectory{{ID: "ws", TechStack: []string{"react"}}}
	e := newTestEngine(t, store, dir, nil, nil)

	ev := BookmarkEvent{EventID: "evt_1", BookmarkID: "b1", URL: "https://example.com/react", Title: "React"}
	e.processEvent(context.Background(), ev)
	ev.EventID = "evt_2"
	e.processEvent(context.Background(), ev)

	if got := len(e.Associations("ws")); got != 2 {
		t.Fatalf("reclassification appends to history, expected 2 associations, got %d", got)
	}
}

func TestResolveFolderIdempotent(t *testing.T) {
	store := newFakeBookmarkStore(browserRoots())
	e := newTestEngine(t, store, nil, nil, nil)

	ctx := context.Background()
	cat := mustClassify(t, "https://example.com/react", "React")
	first, err := e.resolveFolder(ctx, cat)
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	second, err := e.resolveFolder(ctx, cat)
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if first != second {
		t.Fatalf("resolveFolder not idempotent: %s vs %s", first, second)
	}
	if len(store.creates) != 1 {
		t.Fatalf("expected exactly one folder creation, got %d", len(store.creates))
	}
}

func TestResolveFolderSerializesConcurrentCreation(t *testing.T) {
	store := newFakeBookmarkStore(browserRoots())
	e := newTestEngine(t, store, nil, nil, nil)
	cat := mustClassify(t, "https://example.com/react", "React")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.resolveFolder(context.Background(), cat); err != nil {
				t.Errorf("resolve failed: %v", err)
			}
		}()
	}
	wg.Wait()
	if len(store.creates) != 1 {
		t.Fatalf("concurrent resolves created %d folders, want 1", len(store.creates))
	}
}

func TestEngineLoadsPersistedAssociations(t *testing.T) {
	backend := &countingStateBackend{
		snapshot: &persistedState{
			Associations: map[string][]Association{
				"ws": {{BookmarkID: "b1", URL: "https://a.com", Timestamp: time.Now().UTC()}},
			},
			EventCounter: 7,
		},
	}
	e := newTestEngine(t, newFakeBookmarkStore(browserRoots()), nil, nil, backend)
	if got := len(e.Associations("ws")); got != 1 {
		t.Fatalf("expected persisted association to load, got %d", got)
	}
	ev, err := e.SubmitEvent(BookmarkEvent{URL: "https://b.com"})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if ev.EventID != "evt_8" {
		t.Fatalf("event counter should resume from snapshot, got %s", ev.EventID)
	}
}

func TestEventWorkerDrainsQueue(t *testing.T) {
	store := newFakeBookmarkStore(browserRoots())
	dir := StaticWorkspaceDirectory{{ID: "ws", TechStack: []string{"react"}}}
	e := NewEngineWithOptions(Options{
		Bookmarks:  store,
		Workspaces: dir,
		Settings:   StaticSettings{SettingAutoOrganize: true},
	})
	defer e.Close()

	ch, cancel := e.Subscribe(4)
	defer cancel()

	if _, err := e.SubmitEvent(BookmarkEvent{BookmarkID: "b1", URL: "https://example.com/react", Title: "React"}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	select {
	case rec := <-ch:
		if rec.Outcome != OutcomeOrganized {
			t.Fatalf("expected organized outcome from worker, got %+v", rec)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for worker to process event")
	}
}

func mustClassify(t *testing.T, url, title string) classify.Category {
	t.Helper()
	cat, ok := classify.Classify(url, title)
	if !ok {
		t.Fatalf("expected %q %q to classify", url, title)
	}
	return cat
}
