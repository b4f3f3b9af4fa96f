package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/devshelf/bookmarkd/internal/bookmarkd"
	"github.com/devshelf/bookmarkd/internal/httpapi"
)

func main() {
	addr := os.Getenv("BOOKMARKD_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	stateBackend, eventQueue, err := buildStorageBackendsFromEnv()
	if err != nil {
		log.Fatalf("failed to initialize storage backends: %v", err)
	}
	bookmarks, err := buildBookmarkStoreFromEnv()
	if err != nil {
		log.Fatalf("failed to initialize bookmark store: %v", err)
	}
	workspaces, err := bookmarkd.LoadWorkspacesFile(os.Getenv("BOOKMARKD_WORKSPACES_FILE"))
	if err != nil {
		log.Fatalf("failed to load workspaces file: %v", err)
	}

	engine := bookmarkd.NewEngineWithOptions(bookmarkd.Options{
		StateFile:      os.Getenv("BOOKMARKD_STATE_FILE"),
		StateBackend:   stateBackend,
		EventQueue:     eventQueue,
		EventQueueSize: intEnv("BOOKMARKD_EVENT_QUEUE_SIZE", 0),
		Workers:        intEnv("BOOKMARKD_EVENT_WORKERS", 0),
		RecordLimit:    intEnv("BOOKMARKD_MAX_STORED_RECORDS", 0),
		Bookmarks:      bookmarks,
		Workspaces:     workspaces,
		Settings: bookmarkd.StaticSettings{
			bookmarkd.SettingAutoOrganize: boolEnv("BOOKMARKD_AUTO_ORGANIZE", true),
		},
		Logger: log.Default(),
	})
	defer engine.Close()

	server := httpapi.NewServerWithConfig(engine, httpapi.ServerConfig{
		APIToken:        os.Getenv("BOOKMARKD_API_TOKEN"),
		RateLimitMax:    intEnv("BOOKMARKD_RATE_LIMIT_MAX", 0),
		RateLimitWindow: durationEnv("BOOKMARKD_RATE_LIMIT_WINDOW", time.Minute),
		MaxBodyBytes:    int64Env("BOOKMARKD_MAX_BODY_BYTES", 0),
	})

	log.Printf("bookmarkd listening on %s", addr)
	if err := http.ListenAndServe(addr, server); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func intEnv(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %d", name, raw, fallback)
		return fallback
	}
	return value
}

func int64Env(name string, fallback int64) int64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %d", name, raw, fallback)
		return fallback
	}
	return value
}

func boolEnv(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %t", name, raw, fallback)
		return fallback
	}
	return value
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %s", name, raw, fallback.String())
		return fallback
	}
	return value
}

func buildStorageBackendsFromEnv() (bookmarkd.StateBackend, bookmarkd.EventQueue, error) {
	profileStateDSN, profileQueueDSN, err := storageProfileDefaultsFromEnv()
	if err != nil {
		return nil, nil, err
	}
	stateBackend, err := buildStateBackendFromEnv(profileStateDSN)
	if err != nil {
		return nil, nil, err
	}
	eventQueue, err := buildEventQueueFromEnv(profileQueueDSN)
	if err != nil {
		return nil, nil, err
	}
	return stateBackend, eventQueue, nil
}

func buildStateBackendFromEnv(profileDSN string) (bookmarkd.StateBackend, error) {
	stateBackendDSN := strings.TrimSpace(os.Getenv("BOOKMARKD_STATE_BACKEND_DSN"))
	stateFile := strings.TrimSpace(os.Getenv("BOOKMARKD_STATE_FILE"))
	switch {
	case stateBackendDSN != "":
		return bookmarkd.BuildStateBackendFromDSN(stateBackendDSN)
	case stateFile != "":
		return bookmarkd.BuildStateBackendFromDSN(stateFile)
	case profileDSN != "":
		return bookmarkd.BuildStateBackendFromDSN(profileDSN)
	default:
		return nil, nil
	}
}

func buildEventQueueFromEnv(profileDSN string) (bookmarkd.EventQueue, error) {
	queueSize := intEnv("BOOKMARKD_EVENT_QUEUE_SIZE", 0)
	eventQueueDSN := strings.TrimSpace(os.Getenv("BOOKMARKD_EVENT_QUEUE_DSN"))
	eventQueueFile := strings.TrimSpace(os.Getenv("BOOKMARKD_EVENT_QUEUE_FILE"))
	switch {
	case eventQueueDSN != "":
		return bookmarkd.BuildEventQueueFromDSN(eventQueueDSN, queueSize)
	case eventQueueFile != "":
		return bookmarkd.BuildEventQueueFromDSN(eventQueueFile, queueSize)
	case profileDSN != "":
		return bookmarkd.BuildEventQueueFromDSN(profileDSN, queueSize)
	default:
		return nil, nil
	}
}

func storageProfileDefaultsFromEnv() (stateBackendDSN, eventQueueDSN string, err error) {
	profile := strings.ToLower(strings.TrimSpace(os.Getenv("BOOKMARKD_BACKEND_PROFILE")))
	dataDir := strings.TrimSpace(os.Getenv("BOOKMARKD_DATA_DIR"))
	if dataDir == "" {
		dataDir = ".bookmarkd"
	}
	switch profile {
	case "", "custom":
		return "", "", nil
	case "memory", "inmemory":
		return "memory://", "memory://", nil
	case "production", "prod":
		productionDSN := strings.TrimSpace(os.Getenv("BOOKMARKD_PRODUCTION_DSN"))
		if productionDSN == "" {
			productionDSN = strings.TrimSpace(os.Getenv("BOOKMARKD_POSTGRES_DSN"))
		}
		if productionDSN == "" {
			return "", "", fmt.Errorf("BOOKMARKD_PRODUCTION_DSN or BOOKMARKD_POSTGRES_DSN is required when BOOKMARKD_BACKEND_PROFILE=%s", profile)
		}
		return productionDSN, productionDSN, nil
	case "durable-local", "local-durable":
		return "file://" + filepath.Join(dataDir, "state.json"),
			"file://" + filepath.Join(dataDir, "event-queue.json"),
			nil
	default:
		return "", "", fmt.Errorf("unsupported BOOKMARKD_BACKEND_PROFILE: %s", profile)
	}
}

func buildBookmarkStoreFromEnv() (bookmarkd.BookmarkStore, error) {
	path := strings.TrimSpace(os.Getenv("BOOKMARKD_BOOKMARKS_FILE"))
	if path == "" {
		dataDir := strings.TrimSpace(os.Getenv("BOOKMARKD_DATA_DIR"))
		if dataDir == "" {
			dataDir = ".bookmarkd"
		}
		path = filepath.Join(dataDir, "bookmarks.json")
	}
	return bookmarkd.NewLocalBookmarkStore(path)
}
