package bookmarkd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Snapshot is the portable export/import representation of a workspace's
// associated bookmarks.
type Snapshot struct {
	WorkspaceID string        `json:"workspaceId"`
	Bookmarks   []Association `json:"bookmarks"`
	ExportDate  string        `json:"exportDate"`
}

const snapshotSchemaJSON = `{
	"type": "object",
	"required": ["workspaceId", "bookmarks"],
	"properties": {
		"workspaceId": {"type": "string", "minLength": 1},
		"exportDate": {"type": "string"},
		"bookmarks": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["url"],
				"properties": {
					"url": {"type": "string", "minLength": 1}
				}
			}
		}
	}
}`

var compileSnapshotSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(snapshotSchemaJSON))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("snapshot.schema.json", doc); err != nil {
		return nil, err
	}
	return compiler.Compile("snapshot.schema.json")
})

// ParseSnapshot validates raw snapshot JSON against the schema before
// decoding it: bookmarks must be an array and every entry must carry a
// non-empty url. Malformed snapshots are rejected with a descriptive error
// instead of being half-merged.
func ParseSnapshot(data []byte) (Snapshot, error) {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: snapshot is not valid JSON: %v", ErrInvalidInput, err)
	}
	schema, err := compileSnapshotSchema()
	if err != nil {
		return Snapshot{}, fmt.Errorf("compile snapshot schema: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return Snapshot{}, fmt.Errorf("%w: invalid snapshot: %v", ErrInvalidInput, err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("%w: decode snapshot: %v", ErrInvalidInput, err)
	}
	return snapshot, nil
}

// ExportWorkspace captures the current association list for a workspace. An
// unknown workspace exports an empty bookmark list.
func (e *Engine) ExportWorkspace(workspaceID string) Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{
		WorkspaceID: workspaceID,
		Bookmarks:   append([]Association(nil), e.associations[workspaceID]...),
		ExportDate:  time.Now().UTC().Format(time.RFC3339),
	}
}

// ImportWorkspace merges an incoming snapshot into the workspace's existing
// association list, deduplicating by URL with existing entries winning on
// collision. The merge is idempotent: importing the same snapshot twice
// leaves the list unchanged. Errors propagate to the caller; import is an
// explicit operation, not a background reaction.
func (e *Engine) ImportWorkspace(workspaceID string, snapshot Snapshot) error {
	if strings.TrimSpace(workspaceID) == "" {
		return fmt.Errorf("%w: workspace id is required", ErrInvalidInput)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	existing := e.associations[workspaceID]
	merged := make([]Association, 0, len(existing)+len(snapshot.Bookmarks))
	seen := make(map[string]struct{}, len(existing)+len(snapshot.Bookmarks))
	for _, assoc := range existing {
		if _, dup := seen[assoc.URL]; dup {
			continue
		}
		seen[assoc.URL] = struct{}{}
		merged = append(merged, assoc)
	}
	for _, assoc := range snapshot.Bookmarks {
		if _, dup := seen[assoc.URL]; dup {
			continue
		}
		seen[assoc.URL] = struct{}{}
		merged = append(merged, assoc)
	}

	previous := e.associations[workspaceID]
	e.associations[workspaceID] = merged
	if err := e.saveLocked(); err != nil {
		e.associations[workspaceID] = previous
		return fmt.Errorf("persist imported associations: %w", err)
	}
	return nil
}
