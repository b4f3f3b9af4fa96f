package booksync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Logger interface {
	Printf(format string, args ...any)
}

type SyncerOptions struct {
	BookmarksFile string
	StateFile     string
	Logger        Logger
}

// Syncer diffs the bookmarks file against its tracked state and reports new
// bookmarks as created events and retitled ones as changed events. Bookmarks
// that disappear locally are just dropped from the state; the server keeps
// its associations.
type Syncer struct {
	client        RemoteClient
	bookmarksFile string
	stateFile     string
	logger        Logger
	state         syncState
	loaded        bool
}

type syncState struct {
	Bookmarks map[string]trackedBookmark `json:"bookmarks"`
}

type trackedBookmark struct {
	ID   string `json:"id"`
	Hash string `json:"hash"`
}

func NewSyncer(client RemoteClient, opts SyncerOptions) (*Syncer, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	bookmarksFile := strings.TrimSpace(opts.BookmarksFile)
	if bookmarksFile == "" {
		return nil, fmt.Errorf("bookmarks file is required")
	}
	stateFile := strings.TrimSpace(opts.StateFile)
	if stateFile == "" {
		stateFile = bookmarksFile + ".bookmarkd-state.json"
	}
	return &Syncer{
		client:        client,
		bookmarksFile: bookmarksFile,
		stateFile:     stateFile,
		logger:        opts.Logger,
		state: syncState{
			Bookmarks: map[string]trackedBookmark{},
		},
	}, nil
}

// SyncOnce parses the bookmarks file, submits events for everything new or
// retitled, and persists the tracked state. A missing bookmarks file is not
// an error; there is simply nothing to report yet.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	if err := s.loadState(); err != nil {
		return err
	}
	data, err := os.ReadFile(s.bookmarksFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logf("bookmarks file %s does not exist yet", s.bookmarksFile)
			return nil
		}
		return err
	}
	bookmarks, err := ParseBookmarksFile(data)
	if err != nil {
		return err
	}

	current := make(map[string]struct{}, len(bookmarks))
	for _, bm := range bookmarks {
		current[bm.URL] = struct{}{}
		hash := hashTitle(bm.Title)
		tracked, known := s.state.Bookmarks[bm.URL]
		switch {
		case !known:
			created, err := s.client.CreateBookmark(ctx, bm.Title, bm.URL)
			if err != nil {
				return fmt.Errorf("create bookmark %s: %w", bm.URL, err)
			}
			if _, err := s.client.SubmitEvent(ctx, BookmarkEvent{
				Type:       "created",
				BookmarkID: created.ID,
				URL:        bm.URL,
				Title:      bm.Title,
			}); err != nil {
				return fmt.Errorf("submit created event for %s: %w", bm.URL, err)
			}
			s.state.Bookmarks[bm.URL] = trackedBookmark{ID: created.ID, Hash: hash}
		case tracked.Hash != hash:
			if _, err := s.client.SubmitEvent(ctx, BookmarkEvent{
				Type:       "changed",
				BookmarkID: tracked.ID,
				URL:        bm.URL,
				Title:      bm.Title,
			}); err != nil {
				return fmt.Errorf("submit changed event for %s: %w", bm.URL, err)
			}
			tracked.Hash = hash
			s.state.Bookmarks[bm.URL] = tracked
		}
	}

	for url := range s.state.Bookmarks {
		if _, ok := current[url]; !ok {
			delete(s.state.Bookmarks, url)
		}
	}
	return s.saveState()
}

func (s *Syncer) loadState() error {
	if s.loaded {
		return nil
	}
	s.loaded = true
	data, err := os.ReadFile(s.stateFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.state.Bookmarks = map[string]trackedBookmark{}
			return nil
		}
		return err
	}
	var state syncState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if state.Bookmarks == nil {
		state.Bookmarks = map[string]trackedBookmark{}
	}
	s.state = state
	return nil
}

func (s *Syncer) saveState() error {
	data, err := json.Marshal(s.state)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.stateFile), 0o755); err != nil {
		return err
	}
	return writeFileAtomic(s.stateFile, data, 0o644)
}

func (s *Syncer) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}

func hashTitle(title string) string {
	sum := sha256.Sum256([]byte(title))
	return hex.EncodeToString(sum[:])
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
