package bookmarkd

import (
	"context"
	"encoding/json"
	"os"
	"strings"
)

// Node is one entry in the bookmark store's tree. Folder nodes have no URL;
// leaf bookmarks have a URL and no children.
type Node struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`
	Children []Node `json:"children,omitempty"`
}

func (n Node) IsFolder() bool {
	return n.URL == ""
}

type CreateRequest struct {
	ParentID string `json:"parentId,omitempty"`
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`
}

// BookmarkStore is the external bookmark backend. The engine never deletes
// bookmarks; it only reads the tree, creates folders, and relocates entries.
type BookmarkStore interface {
	Get(ctx context.Context, id string) (Node, error)
	Create(ctx context.Context, req CreateRequest) (Node, error)
	Move(ctx context.Context, id, parentID string) error
	GetTree(ctx context.Context) ([]Node, error)
}

// Workspace is a named developer project tagged with a technology stack.
// Read-only from the engine's perspective.
type Workspace struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	TechStack []string `json:"techStack"`
}

func (w Workspace) HasTech(tech string) bool {
	for _, t := range w.TechStack {
		if strings.EqualFold(t, tech) {
			return true
		}
	}
	return false
}

type WorkspaceDirectory interface {
	ListWorkspaces(ctx context.Context) ([]Workspace, error)
}

// StaticWorkspaceDirectory serves a fixed workspace list in slice order,
// which is the association tie-break order.
type StaticWorkspaceDirectory []Workspace

func (d StaticWorkspaceDirectory) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	_ = ctx
	return append([]Workspace(nil), d...), nil
}

// LoadWorkspacesFile reads a JSON array of workspaces. A missing file yields
// an empty directory rather than an error.
func LoadWorkspacesFile(path string) (StaticWorkspaceDirectory, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return StaticWorkspaceDirectory{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return StaticWorkspaceDirectory{}, nil
		}
		return nil, err
	}
	var workspaces []Workspace
	if err := json.Unmarshal(data, &workspaces); err != nil {
		return nil, err
	}
	return StaticWorkspaceDirectory(workspaces), nil
}

type SettingsStore interface {
	Bool(ctx context.Context, key string) (bool, error)
}

// StaticSettings is a fixed settings map; absent keys read as false.
type StaticSettings map[string]bool

func (s StaticSettings) Bool(ctx context.Context, key string) (bool, error) {
	_ = ctx
	return s[key], nil
}
