package bookmarkd

import (
	"context"
	"fmt"
	"sync"

	"github.com/devshelf/bookmarkd/internal/classify"
)

// resolveFolder returns the id of the folder a category maps to, creating it
// when absent. Resolution is serialized per folder name so concurrent
// classifications of the same new category cannot race the check-then-create
// into duplicate folders.
func (e *Engine) resolveFolder(ctx context.Context, cat classify.Category) (string, error) {
	name := classify.FolderName(cat)
	lock := e.folderLock(name)
	lock.Lock()
	defer lock.Unlock()

	roots, err := e.bookmarks.GetTree(ctx)
	if err != nil {
		return "", fmt.Errorf("enumerate bookmark tree: %w", err)
	}
	if id, ok := findFolder(roots, name); ok {
		return id, nil
	}
	parentID, err := defaultFolderParent(roots)
	if err != nil {
		return "", err
	}
	node, err := e.bookmarks.Create(ctx, CreateRequest{ParentID: parentID, Title: name})
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	return node.ID, nil
}

func (e *Engine) folderLock(name string) *sync.Mutex {
	e.folderMu.Lock()
	defer e.folderMu.Unlock()
	lock, ok := e.folderLocks[name]
	if !ok {
		lock = &sync.Mutex{}
		e.folderLocks[name] = lock
	}
	return lock
}

// findFolder walks the forest depth-first for a folder node with an exactly
// matching title. Duplicate names should not exist; when they do, the first
// in traversal order wins.
func findFolder(nodes []Node, name string) (string, bool) {
	for _, node := range nodes {
		if node.IsFolder() && node.Title == name {
			return node.ID, true
		}
		if id, ok := findFolder(node.Children, name); ok {
			return id, true
		}
	}
	return "", false
}

// defaultFolderParent picks the container new category folders are created
// under: the first child of the first root (the bookmarks-bar equivalent),
// falling back to the root itself when it has no children.
func defaultFolderParent(roots []Node) (string, error) {
	if len(roots) == 0 {
		return "", fmt.Errorf("%w: bookmark tree has no root", ErrNotFound)
	}
	root := roots[0]
	if len(root.Children) > 0 {
		return root.Children[0].ID, nil
	}
	return root.ID, nil
}
