package bookmarkd

import (
	"context"
	"sort"

	"github.com/devshelf/bookmarkd/internal/classify"
)

const DefaultSuggestionLimit = 10

// ScoredBookmark is a suggestion candidate: a bookmark whose classification
// matched one of the requested technology tags.
type ScoredBookmark struct {
	BookmarkID string            `json:"bookmarkId"`
	URL        string            `json:"url"`
	Title      string            `json:"title,omitempty"`
	Category   classify.Category `json:"category"`
}

// Suggest classifies the full bookmark corpus and ranks candidates for a
// workspace by confidence, descending. Ties keep the bookmark store's
// enumeration order. When techStack is empty, the workspace's declared stack
// is looked up in the directory. Read-only: no folders or associations are
// created.
func (e *Engine) Suggest(ctx context.Context, workspaceID string, techStack []string, limit int) ([]ScoredBookmark, error) {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	if len(techStack) == 0 {
		workspaces, err := e.workspaces.ListWorkspaces(ctx)
		if err != nil {
			return nil, err
		}
		found := false
		for _, ws := range workspaces {
			if ws.ID == workspaceID {
				techStack = ws.TechStack
				found = true
				break
			}
		}
		if !found {
			return nil, ErrNotFound
		}
	}

	roots, err := e.bookmarks.GetTree(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make([]ScoredBookmark, 0)
	walkBookmarks(roots, func(node Node) {
		cat, ok := classify.Classify(node.URL, node.Title)
		if !ok {
			return
		}
		if !techStackContains(techStack, cat.Tech) {
			return
		}
		candidates = append(candidates, ScoredBookmark{
			BookmarkID: node.ID,
			URL:        node.URL,
			Title:      node.Title,
			Category:   cat,
		})
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Category.Confidence > candidates[j].Category.Confidence
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// walkBookmarks visits every leaf bookmark in tree order, skipping folders.
func walkBookmarks(nodes []Node, visit func(Node)) {
	for _, node := range nodes {
		if !node.IsFolder() {
			visit(node)
			continue
		}
		walkBookmarks(node.Children, visit)
	}
}

func techStackContains(stack []string, tech string) bool {
	ws := Workspace{TechStack: stack}
	return ws.HasTech(tech)
}
