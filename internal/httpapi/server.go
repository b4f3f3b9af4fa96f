// Package httpapi exposes the bookmark organization engine over HTTP. One
// handler serves the whole surface; routing is a plain path switch so the
// route table reads top to bottom.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/devshelf/bookmarkd/internal/bookmarkd"
	"github.com/devshelf/bookmarkd/internal/classify"
)

type ServerConfig struct {
	// APIToken enables static bearer auth when non-empty. Health stays open.
	APIToken        string
	RateLimitMax    int
	RateLimitWindow time.Duration
	MaxBodyBytes    int64
}

type Server struct {
	engine      *bookmarkd.Engine
	cfg         ServerConfig
	rateLimiter *rateLimiter
}

type rateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	entries map[string]rateEntry
}

type rateEntry struct {
	count   int
	resetAt time.Time
}

func NewServer(engine *bookmarkd.Engine) *Server {
	return NewServerWithConfig(engine, ServerConfig{})
}

func NewServerWithConfig(engine *bookmarkd.Engine, cfg ServerConfig) *Server {
	if cfg.RateLimitMax < 0 {
		cfg.RateLimitMax = 0
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	var limiter *rateLimiter
	if cfg.RateLimitMax > 0 {
		limiter = &rateLimiter{
			window:  cfg.RateLimitWindow,
			max:     cfg.RateLimitMax,
			entries: map[string]rateEntry{},
		}
	}
	return &Server{
		engine:      engine,
		cfg:         cfg,
		rateLimiter: limiter,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	correlationID := getCorrelationID(r)
	if authErr := authorizeBearer(r.Header.Get("Authorization"), s.cfg.APIToken); authErr != nil {
		writeError(w, authErr.status, authErr.code, authErr.message, correlationID)
		return
	}
	if s.rateLimiter != nil && r.Method != http.MethodGet {
		if !s.rateLimiter.allow(clientKey(r), time.Now().UTC()) {
			retryAfter := int(math.Ceil(s.rateLimiter.window.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded", correlationID)
			return
		}
	}

	switch {
	case r.URL.Path == "/v1/classify" && r.Method == http.MethodPost:
		s.handleClassify(w, r, correlationID)
		return
	case r.URL.Path == "/v1/bookmarks" && r.Method == http.MethodPost:
		s.handleCreateBookmark(w, r, correlationID)
		return
	case r.URL.Path == "/v1/bookmarks/events" && r.Method == http.MethodPost:
		s.handleSubmitEvent(w, r, correlationID)
		return
	case r.URL.Path == "/v1/organize/records" && r.Method == http.MethodGet:
		s.handleOrganizeRecords(w, r)
		return
	case r.URL.Path == "/v1/organize/stream" && r.Method == http.MethodGet:
		s.handleOrganizeStream(w, r)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) != 4 || parts[0] != "v1" || parts[1] != "workspaces" || strings.TrimSpace(parts[2]) == "" {
		writeError(w, http.StatusNotFound, "not_found", "route not found", correlationID)
		return
	}
	workspaceID := parts[2]

	switch {
	case parts[3] == "suggestions" && r.Method == http.MethodGet:
		s.handleSuggestions(w, r, workspaceID, correlationID)
	case parts[3] == "associations" && r.Method == http.MethodGet:
		s.handleAssociations(w, workspaceID)
	case parts[3] == "export" && r.Method == http.MethodGet:
		s.handleExport(w, workspaceID)
	case parts[3] == "import" && r.Method == http.MethodPost:
		s.handleImport(w, r, workspaceID, correlationID)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found", correlationID)
	}
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request, correlationID string) {
	var body struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	}
	if !s.decodeJSONBody(w, r, correlationID, &body) {
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "url is required", correlationID)
		return
	}
	cat, ok := classify.Classify(body.URL, body.Title)
	resp := struct {
		Classified bool               `json:"classified"`
		Category   *classify.Category `json:"category,omitempty"`
		FolderName string             `json:"folderName,omitempty"`
	}{Classified: ok}
	if ok {
		resp.Category = &cat
		resp.FolderName = classify.FolderName(cat)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateBookmark(w http.ResponseWriter, r *http.Request, correlationID string) {
	var req bookmarkd.CreateRequest
	if !s.decodeJSONBody(w, r, correlationID, &req) {
		return
	}
	node, err := s.engine.CreateBookmark(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, bookmarkd.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "bad_request", err.Error(), correlationID)
		case errors.Is(err, bookmarkd.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", err.Error(), correlationID)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error(), correlationID)
		}
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

func (s *Server) handleSubmitEvent(w http.ResponseWriter, r *http.Request, correlationID string) {
	var ev bookmarkd.BookmarkEvent
	if !s.decodeJSONBody(w, r, correlationID, &ev) {
		return
	}
	queued, err := s.engine.SubmitEvent(ev)
	if err != nil {
		switch {
		case errors.Is(err, bookmarkd.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "bad_request", err.Error(), correlationID)
		case errors.Is(err, bookmarkd.ErrQueueFull):
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "queue_full", err.Error(), correlationID)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error(), correlationID)
		}
		return
	}
	writeJSON(w, http.StatusAccepted, struct {
		EventID    string `json:"eventId"`
		Status     string `json:"status"`
		QueueDepth int    `json:"queueDepth"`
	}{
		EventID:    queued.EventID,
		Status:     "queued",
		QueueDepth: s.engine.QueueDepth(),
	})
}

func (s *Server) handleOrganizeRecords(w http.ResponseWriter, r *http.Request) {
	limit := parseBoundedInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	writeJSON(w, http.StatusOK, struct {
		Records []bookmarkd.OrganizeRecord `json:"records"`
	}{Records: s.engine.Records(limit)})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request, workspaceID, correlationID string) {
	limit := parseBoundedInt(r.URL.Query().Get("limit"), bookmarkd.DefaultSuggestionLimit, 1, 1000)
	var techStack []string
	if raw := strings.TrimSpace(r.URL.Query().Get("tech")); raw != "" {
		for _, tech := range strings.Split(raw, ",") {
			if tech = strings.TrimSpace(tech); tech != "" {
				techStack = append(techStack, tech)
			}
		}
	}
	suggestions, err := s.engine.Suggest(r.Context(), workspaceID, techStack, limit)
	if err != nil {
		if errors.Is(err, bookmarkd.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "unknown workspace: "+workspaceID, correlationID)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error(), correlationID)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		WorkspaceID string                     `json:"workspaceId"`
		Suggestions []bookmarkd.ScoredBookmark `json:"suggestions"`
	}{WorkspaceID: workspaceID, Suggestions: suggestions})
}

func (s *Server) handleAssociations(w http.ResponseWriter, workspaceID string) {
	writeJSON(w, http.StatusOK, struct {
		WorkspaceID  string                  `json:"workspaceId"`
		Associations []bookmarkd.Association `json:"associations"`
	}{WorkspaceID: workspaceID, Associations: s.engine.Associations(workspaceID)})
}

func (s *Server) handleExport(w http.ResponseWriter, workspaceID string) {
	writeJSON(w, http.StatusOK, s.engine.ExportWorkspace(workspaceID))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, workspaceID, correlationID string) {
	body, ok := s.readRequestBody(w, r, correlationID)
	if !ok {
		return
	}
	snapshot, err := bookmarkd.ParseSnapshot(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error(), correlationID)
		return
	}
	if err := s.engine.ImportWorkspace(workspaceID, snapshot); err != nil {
		if errors.Is(err, bookmarkd.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error(), correlationID)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error(), correlationID)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		WorkspaceID string `json:"workspaceId"`
		Imported    int    `json:"imported"`
		Total       int    `json:"total"`
	}{
		WorkspaceID: workspaceID,
		Imported:    len(snapshot.Bookmarks),
		Total:       len(s.engine.Associations(workspaceID)),
	})
}

func getCorrelationID(r *http.Request) string {
	return r.Header.Get("X-Correlation-Id")
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) readRequestBody(w http.ResponseWriter, r *http.Request, correlationID string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds configured limit", correlationID)
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body", correlationID)
		return nil, false
	}
	return body, true
}

func (s *Server) decodeJSONBody(w http.ResponseWriter, r *http.Request, correlationID string, dst any) bool {
	body, ok := s.readRequestBody(w, r, correlationID)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body", correlationID)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message, correlationID string) {
	writeJSON(w, status, map[string]any{
		"code":          code,
		"message":       message,
		"correlationId": correlationID,
	})
}

func (r *rateLimiter) allow(key string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok || now.After(entry.resetAt) {
		r.entries[key] = rateEntry{
			count:   1,
			resetAt: now.Add(r.window),
		}
		return true
	}
	if entry.count >= r.max {
		return false
	}
	entry.count++
	r.entries[key] = entry
	return true
}

func parseBoundedInt(raw string, fallback, min, max int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	if parsed < min {
		return fallback
	}
	if parsed > max {
		return max
	}
	return parsed
}
