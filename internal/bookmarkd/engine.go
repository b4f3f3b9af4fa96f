// Package bookmarkd implements the bookmark organization engine: it consumes
// bookmark change events, classifies each bookmark, files it into a derived
// folder, and associates it with a matching developer workspace. The engine
// owns the workspace association map and persists it in full through a
// pluggable state backend after every mutation.
package bookmarkd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/devshelf/bookmarkd/internal/classify"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrQueueFull      = errors.New("event queue full")
	ErrNotImplemented = errors.New("not implemented")
)

// SettingAutoOrganize gates whether classification-triggered folder moves and
// workspace associations run at all. Classification, suggestions, export and
// import stay available regardless of the flag.
const SettingAutoOrganize = "smartBookmarkOrganization"

const (
	EventCreated = "created"
	EventChanged = "changed"
)

// BookmarkEvent is a single "bookmark created/changed" notification from the
// host. Events with an empty URL are rejected at submission.
type BookmarkEvent struct {
	EventID    string `json:"eventId"`
	Type       string `json:"type"`
	BookmarkID string `json:"bookmarkId"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	ReceivedAt string `json:"receivedAt,omitempty"`
}

// Association links a classified bookmark to a workspace. The per-workspace
// association lists are append-only history: reclassifying the same bookmark
// appends a fresh record rather than updating an old one.
type Association struct {
	BookmarkID string            `json:"bookmarkId"`
	URL        string            `json:"url"`
	Title      string            `json:"title,omitempty"`
	Category   classify.Category `json:"category"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Organize outcomes recorded per processed event.
const (
	OutcomeOrganized    = "organized"
	OutcomeUnclassified = "unclassified"
	OutcomeDisabled     = "disabled"
	OutcomeFailed       = "failed"
)

// OrganizeRecord is the terminal result of processing one bookmark event.
// Failures are terminal for the event: they are recorded and logged, never
// retried and never propagated to the caller that submitted the event.
type OrganizeRecord struct {
	EventID     string             `json:"eventId"`
	BookmarkID  string             `json:"bookmarkId"`
	URL         string             `json:"url"`
	Outcome     string             `json:"outcome"`
	Category    *classify.Category `json:"category,omitempty"`
	FolderID    string             `json:"folderId,omitempty"`
	WorkspaceID string             `json:"workspaceId,omitempty"`
	Error       string             `json:"error,omitempty"`
	ProcessedAt string             `json:"processedAt"`
}

type Logger interface {
	Printf(format string, args ...any)
}

type Options struct {
	StateFile      string
	StateBackend   StateBackend
	EventQueue     EventQueue
	EventQueueSize int
	Workers        int
	RecordLimit    int
	Bookmarks      BookmarkStore
	Workspaces     WorkspaceDirectory
	Settings       SettingsStore
	Logger         Logger
	DisableWorkers bool
}

type Engine struct {
	mu           sync.RWMutex
	associations map[string][]Association
	records      []OrganizeRecord
	recordLimit  int
	eventCounter uint64

	folderMu    sync.Mutex
	folderLocks map[string]*sync.Mutex

	subMu       sync.Mutex
	subscribers map[chan OrganizeRecord]struct{}

	stateBackend StateBackend
	queue        EventQueue
	bookmarks    BookmarkStore
	workspaces   WorkspaceDirectory
	settings     SettingsStore
	logger       Logger

	closed      chan struct{}
	queueCtx    context.Context
	queueCancel context.CancelFunc
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

func NewEngine(bookmarks BookmarkStore, workspaces WorkspaceDirectory, settings SettingsStore) *Engine {
	return NewEngineWithOptions(Options{
		Bookmarks:  bookmarks,
		Workspaces: workspaces,
		Settings:   settings,
	})
}

func NewEngineWithOptions(opts Options) *Engine {
	queueSize := opts.EventQueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	queue := opts.EventQueue
	if queue == nil {
		queue = NewInMemoryEventQueue(queueSize)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	recordLimit := opts.RecordLimit
	if recordLimit <= 0 {
		recordLimit = 1000
	}
	stateBackend := opts.StateBackend
	if stateBackend == nil && strings.TrimSpace(opts.StateFile) != "" {
		stateBackend = NewJSONFileStateBackend(opts.StateFile)
	}
	queueCtx, queueCancel := context.WithCancel(context.Background())

	e := &Engine{
		associations: map[string][]Association{},
		recordLimit:  recordLimit,
		folderLocks:  map[string]*sync.Mutex{},
		subscribers:  map[chan OrganizeRecord]struct{}{},
		stateBackend: stateBackend,
		queue:        queue,
		bookmarks:    opts.Bookmarks,
		workspaces:   opts.Workspaces,
		settings:     opts.Settings,
		logger:       opts.Logger,
		closed:       make(chan struct{}),
		queueCtx:     queueCtx,
		queueCancel:  queueCancel,
	}
	if err := e.loadState(); err != nil {
		e.logf("failed to load persisted associations: %v", err)
	}
	if !opts.DisableWorkers {
		e.wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer e.wg.Done()
				e.eventWorker()
			}()
		}
	}
	return e
}

func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.closed)
		e.queueCancel()
		if e.queue != nil {
			_ = e.queue.Close()
		}
		if closer, ok := e.stateBackend.(stateBackendCloser); ok && closer != nil {
			_ = closer.Close()
		}
		e.wg.Wait()
		e.subMu.Lock()
		for ch := range e.subscribers {
			close(ch)
		}
		e.subscribers = map[chan OrganizeRecord]struct{}{}
		e.subMu.Unlock()
	})
}

// SubmitEvent validates and enqueues a bookmark event for asynchronous
// processing. It returns the event with its assigned id, ErrInvalidInput for
// events without a URL, and ErrQueueFull when the queue cannot accept more.
func (e *Engine) SubmitEvent(ev BookmarkEvent) (BookmarkEvent, error) {
	if strings.TrimSpace(ev.URL) == "" {
		return BookmarkEvent{}, fmt.Errorf("%w: bookmark event requires a url", ErrInvalidInput)
	}
	switch ev.Type {
	case "":
		ev.Type = EventChanged
	case EventCreated, EventChanged:
	default:
		return BookmarkEvent{}, fmt.Errorf("%w: unknown event type %q", ErrInvalidInput, ev.Type)
	}
	ev.EventID = e.nextEventID()
	ev.ReceivedAt = time.Now().UTC().Format(time.RFC3339Nano)
	if !e.queue.TryEnqueue(ev) {
		return BookmarkEvent{}, ErrQueueFull
	}
	return ev, nil
}

func (e *Engine) QueueDepth() int {
	return e.queue.Depth()
}

func (e *Engine) QueueCapacity() int {
	return e.queue.Capacity()
}

func (e *Engine) nextEventID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.eventCounter++
	return "evt_" + strconv.FormatUint(e.eventCounter, 10)
}

func (e *Engine) eventWorker() {
	for {
		ev, ok := e.queue.Dequeue(e.queueCtx)
		if !ok {
			return
		}
		e.processEvent(e.queueCtx, ev)
	}
}

// processEvent runs the full pipeline for one event: classify, check the
// feature flag, resolve and move into the category folder, then associate
// with the first workspace sharing the technology tag. Any failure abandons
// the event; the bookmark stays where it is until the next trigger.
func (e *Engine) processEvent(ctx context.Context, ev BookmarkEvent) {
	record := OrganizeRecord{
		EventID:     ev.EventID,
		BookmarkID:  ev.BookmarkID,
		URL:         ev.URL,
		ProcessedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}

	cat, ok := classify.Classify(ev.URL, ev.Title)
	if !ok {
		record.Outcome = OutcomeUnclassified
		e.finishRecord(record)
		return
	}
	record.Category = &cat

	enabled, err := e.settings.Bool(ctx, SettingAutoOrganize)
	if err != nil {
		e.logf("event %s: settings lookup failed: %v", ev.EventID, err)
		record.Outcome = OutcomeFailed
		record.Error = err.Error()
		e.finishRecord(record)
		return
	}
	if !enabled {
		record.Outcome = OutcomeDisabled
		e.finishRecord(record)
		return
	}

	folderID, err := e.resolveFolder(ctx, cat)
	if err != nil {
		e.logf("event %s: folder resolution failed: %v", ev.EventID, err)
		record.Outcome = OutcomeFailed
		record.Error = err.Error()
		e.finishRecord(record)
		return
	}
	record.FolderID = folderID
	if ev.BookmarkID != "" {
		if err := e.bookmarks.Move(ctx, ev.BookmarkID, folderID); err != nil {
			e.logf("event %s: move failed: %v", ev.EventID, err)
			record.Outcome = OutcomeFailed
			record.Error = err.Error()
			e.finishRecord(record)
			return
		}
	}

	workspaceID, err := e.associate(ctx, ev, cat)
	if err != nil {
		e.logf("event %s: association failed: %v", ev.EventID, err)
		record.Outcome = OutcomeFailed
		record.Error = err.Error()
		e.finishRecord(record)
		return
	}
	record.WorkspaceID = workspaceID
	record.Outcome = OutcomeOrganized
	e.finishRecord(record)
}

// associate finds the first workspace, in directory order, whose tech stack
// contains the category tech and appends an association for it. A missing
// match is not an error; the returned workspace id is empty.
func (e *Engine) associate(ctx context.Context, ev BookmarkEvent, cat classify.Category) (string, error) {
	workspaces, err := e.workspaces.ListWorkspaces(ctx)
	if err != nil {
		return "", err
	}
	var match *Workspace
	for i := range workspaces {
		if workspaces[i].HasTech(cat.Tech) {
			match = &workspaces[i]
			break
		}
	}
	if match == nil {
		return "", nil
	}
	assoc := Association{
		BookmarkID: ev.BookmarkID,
		URL:        ev.URL,
		Title:      ev.Title,
		Category:   cat,
		Timestamp:  time.Now().UTC(),
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.associations[match.ID] = append(e.associations[match.ID], assoc)
	if err := e.saveLocked(); err != nil {
		return "", err
	}
	return match.ID, nil
}

// Associations returns a copy of the association history for a workspace.
func (e *Engine) Associations(workspaceID string) []Association {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Association(nil), e.associations[workspaceID]...)
}

func (e *Engine) finishRecord(record OrganizeRecord) {
	e.mu.Lock()
	e.records = append(e.records, record)
	if len(e.records) > e.recordLimit {
		e.records = e.records[len(e.records)-e.recordLimit:]
	}
	e.mu.Unlock()
	e.broadcast(record)
}

// Records returns the most recent organize records, newest last.
func (e *Engine) Records(limit int) []OrganizeRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	records := e.records
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return append([]OrganizeRecord(nil), records...)
}

// Subscribe registers a listener for organize records. Records are dropped
// for subscribers that fall behind rather than blocking the pipeline. The
// returned cancel function must be called exactly once.
func (e *Engine) Subscribe(buffer int) (<-chan OrganizeRecord, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan OrganizeRecord, buffer)
	e.subMu.Lock()
	select {
	case <-e.closed:
		e.subMu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	e.subscribers[ch] = struct{}{}
	e.subMu.Unlock()
	cancel := func() {
		e.subMu.Lock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
		e.subMu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) broadcast(record OrganizeRecord) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for ch := range e.subscribers {
		select {
		case ch <- record:
		default:
		}
	}
}

// CreateBookmark adds a bookmark (or folder, when the URL is empty) to the
// underlying store. Exposed so hosts without direct store access can register
// bookmarks before submitting events for them.
func (e *Engine) CreateBookmark(ctx context.Context, req CreateRequest) (Node, error) {
	if e.bookmarks == nil {
		return Node{}, fmt.Errorf("%w: no bookmark store configured", ErrInvalidInput)
	}
	return e.bookmarks.Create(ctx, req)
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Printf(format, args...)
}
