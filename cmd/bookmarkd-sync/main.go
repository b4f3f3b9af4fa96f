package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/devshelf/bookmarkd/internal/booksync"
)

func main() {
	baseURL := flag.String("server", envOrDefault("BOOKMARKD_BASE_URL", "http://127.0.0.1:8080"), "bookmarkd base URL")
	token := flag.String("token", strings.TrimSpace(os.Getenv("BOOKMARKD_TOKEN")), "bearer token")
	bookmarksFile := flag.String("file", strings.TrimSpace(os.Getenv("BOOKMARKD_SYNC_BOOKMARKS_FILE")), "browser bookmarks file to watch")
	stateFile := flag.String("state-file", strings.TrimSpace(os.Getenv("BOOKMARKD_SYNC_STATE_FILE")), "sync state file path")
	interval := flag.Duration("interval", durationEnv("BOOKMARKD_SYNC_INTERVAL", time.Minute), "periodic re-sync interval")
	timeout := flag.Duration("timeout", durationEnv("BOOKMARKD_SYNC_TIMEOUT", 15*time.Second), "per-request timeout")
	once := flag.Bool("once", false, "run one sync cycle and exit")
	flag.Parse()

	if strings.TrimSpace(*bookmarksFile) == "" {
		log.Fatalf("bookmarks file is required (--file or BOOKMARKD_SYNC_BOOKMARKS_FILE)")
	}
	if *interval <= 0 {
		*interval = time.Minute
	}
	if *timeout <= 0 {
		*timeout = 15 * time.Second
	}

	client := booksync.NewHTTPClient(*baseURL, *token, &http.Client{Timeout: *timeout})
	syncer, err := booksync.NewSyncer(client, booksync.SyncerOptions{
		BookmarksFile: strings.TrimSpace(*bookmarksFile),
		StateFile:     strings.TrimSpace(*stateFile),
		Logger:        log.Default(),
	})
	if err != nil {
		log.Fatalf("failed to initialize bookmark syncer: %v", err)
	}
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		ctx, cancel := context.WithTimeout(rootCtx, *timeout)
		defer cancel()
		if err := syncer.SyncOnce(ctx); err != nil {
			log.Fatalf("sync cycle failed: %v", err)
		}
		log.Printf("sync cycle completed")
		return
	}

	if err := syncer.Watch(rootCtx, *interval); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bookmark watch failed: %v", err)
	}
	log.Printf("bookmark sync stopping: %v", rootCtx.Err())
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
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
