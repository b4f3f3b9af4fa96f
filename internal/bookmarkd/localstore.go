package bookmarkd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// LocalBookmarkStore is a JSON-file-backed BookmarkStore so the service can
// run without a browser attached. The engine only ever sees the interface;
// deployments backed by a real browser bridge swap this out.
type LocalBookmarkStore struct {
	mu     sync.Mutex
	path   string
	roots  []Node
	nextID int
}

type localStoreState struct {
	Roots  []Node `json:"roots"`
	NextID int    `json:"nextId"`
}

func NewLocalBookmarkStore(path string) (*LocalBookmarkStore, error) {
	s := &LocalBookmarkStore{
		path:   strings.TrimSpace(path),
		nextID: 3,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	if len(s.roots) == 0 {
		// Seed a browser-shaped tree: one root whose first child is the
		// bookmarks-bar equivalent, the default container for new folders.
		s.roots = []Node{{
			ID: "0",
			Children: []Node{
				{ID: "1", Title: "Bookmarks Bar"},
				{ID: "2", Title: "Other Bookmarks"},
			},
		}}
		if err := s.saveLocked(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *LocalBookmarkStore) Get(ctx context.Context, id string) (Node, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	node := findNode(s.roots, id)
	if node == nil {
		return Node{}, fmt.Errorf("%w: bookmark %s", ErrNotFound, id)
	}
	return cloneNode(*node), nil
}

func (s *LocalBookmarkStore) Create(ctx context.Context, req CreateRequest) (Node, error) {
	_ = ctx
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.URL) == "" {
		return Node{}, fmt.Errorf("%w: create requires a title or url", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	parentID := strings.TrimSpace(req.ParentID)
	if parentID == "" {
		parentID = s.defaultParentLocked()
	}
	parent := findNode(s.roots, parentID)
	if parent == nil {
		return Node{}, fmt.Errorf("%w: parent %s", ErrNotFound, parentID)
	}
	if !parent.IsFolder() {
		return Node{}, fmt.Errorf("%w: parent %s is not a folder", ErrInvalidInput, parentID)
	}
	node := Node{
		ID:    strconv.Itoa(s.nextID),
		Title: req.Title,
		URL:   req.URL,
	}
	s.nextID++
	parent.Children = append(parent.Children, node)
	if err := s.saveLocked(); err != nil {
		return Node{}, err
	}
	return node, nil
}

func (s *LocalBookmarkStore) Move(ctx context.Context, id, parentID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := detachNode(&s.roots, id)
	if !ok {
		return fmt.Errorf("%w: bookmark %s", ErrNotFound, id)
	}
	parent := findNode(s.roots, parentID)
	if parent == nil || !parent.IsFolder() {
		// Target folder is gone; reattach under the default container so
		// the bookmark is never lost.
		fallback := findNode(s.roots, s.defaultParentLocked())
		if fallback != nil {
			fallback.Children = append(fallback.Children, node)
			_ = s.saveLocked()
		}
		return fmt.Errorf("%w: folder %s", ErrNotFound, parentID)
	}
	parent.Children = append(parent.Children, node)
	return s.saveLocked()
}

func (s *LocalBookmarkStore) GetTree(ctx context.Context) ([]Node, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	cloned := make([]Node, 0, len(s.roots))
	for _, root := range s.roots {
		cloned = append(cloned, cloneNode(root))
	}
	return cloned, nil
}

func (s *LocalBookmarkStore) defaultParentLocked() string {
	if len(s.roots) == 0 {
		return ""
	}
	if len(s.roots[0].Children) > 0 {
		return s.roots[0].Children[0].ID
	}
	return s.roots[0].ID
}

func (s *LocalBookmarkStore) load() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var state localStoreState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	s.roots = state.Roots
	if state.NextID > s.nextID {
		s.nextID = state.NextID
	}
	return nil
}

func (s *LocalBookmarkStore) saveLocked() error {
	if s.path == "" {
		return nil
	}
	state := localStoreState{Roots: s.roots, NextID: s.nextID}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func findNode(nodes []Node, id string) *Node {
	for i := range nodes {
		if nodes[i].ID == id {
			return &nodes[i]
		}
		if found := findNode(nodes[i].Children, id); found != nil {
			return found
		}
	}
	return nil
}

func detachNode(nodes *[]Node, id string) (Node, bool) {
	for i := range *nodes {
		if (*nodes)[i].ID == id {
			node := (*nodes)[i]
			*nodes = append((*nodes)[:i], (*nodes)[i+1:]...)
			return node, true
		}
		if node, ok := detachNode(&(*nodes)[i].Children, id); ok {
			return node, true
		}
	}
	return Node{}, false
}

func cloneNode(node Node) Node {
	clone := node
	if len(node.Children) > 0 {
		clone.Children = make([]Node, 0, len(node.Children))
		for _, child := range node.Children {
			clone.Children = append(clone.Children, cloneNode(child))
		}
	}
	return clone
}
