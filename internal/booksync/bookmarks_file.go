package booksync

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// LocalBookmark is one url entry from the browser bookmarks file.
type LocalBookmark struct {
	Title string
	URL   string
}

type chromeBookmarksFile struct {
	Roots map[string]chromeNode `json:"roots"`
}

type chromeNode struct {
	Type     string       `json:"type"`
	Name     string       `json:"name"`
	URL      string       `json:"url"`
	Children []chromeNode `json:"children"`
}

type flatBookmark struct {
	Title string `json:"title"`
	Name  string `json:"name"`
	URL   string `json:"url"`
}

// ParseBookmarksFile reads a Chrome-format bookmarks file (an object with
// "roots") or a flat JSON array of {title,url} entries. Entries without a URL
// are skipped; duplicate URLs keep the first occurrence. The result is sorted
// by URL so diffs are deterministic.
func ParseBookmarksFile(data []byte) ([]LocalBookmark, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var flat []flatBookmark
		if err := json.Unmarshal(data, &flat); err != nil {
			return nil, fmt.Errorf("parse bookmarks array: %w", err)
		}
		return dedupeBookmarks(flattenFlat(flat)), nil
	}

	var file chromeBookmarksFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse bookmarks file: %w", err)
	}
	if len(file.Roots) == 0 {
		return nil, fmt.Errorf("bookmarks file has no roots")
	}

	rootNames := make([]string, 0, len(file.Roots))
	for name := range file.Roots {
		rootNames = append(rootNames, name)
	}
	sort.Strings(rootNames)

	var bookmarks []LocalBookmark
	for _, name := range rootNames {
		root := file.Roots[name]
		bookmarks = append(bookmarks, flattenChrome(root)...)
	}
	return dedupeBookmarks(bookmarks), nil
}

func flattenChrome(node chromeNode) []LocalBookmark {
	if node.Type == "url" || (node.URL != "" && len(node.Children) == 0) {
		if strings.TrimSpace(node.URL) == "" {
			return nil
		}
		return []LocalBookmark{{Title: node.Name, URL: node.URL}}
	}
	var out []LocalBookmark
	for _, child := range node.Children {
		out = append(out, flattenChrome(child)...)
	}
	return out
}

func flattenFlat(entries []flatBookmark) []LocalBookmark {
	out := make([]LocalBookmark, 0, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.URL) == "" {
			continue
		}
		title := entry.Title
		if title == "" {
			title = entry.Name
		}
		out = append(out, LocalBookmark{Title: title, URL: entry.URL})
	}
	return out
}

func dedupeBookmarks(bookmarks []LocalBookmark) []LocalBookmark {
	seen := make(map[string]struct{}, len(bookmarks))
	out := make([]LocalBookmark, 0, len(bookmarks))
	for _, bm := range bookmarks {
		if _, dup := seen[bm.URL]; dup {
			continue
		}
		seen[bm.URL] = struct{}{}
		out = append(out, bm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}
