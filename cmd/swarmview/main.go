// Command swarmview draws a running swarm in the terminal by polling the
// swarmsim HTTP API. Press q or Esc to quit.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/talgya/swarmdrop/internal/viewer"
	"github.com/talgya/swarmdrop/internal/world"
)

func main() {
	// The screen owns stdout, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	apiURL := envOrDefault("SWARMDROP_API_URL", "http://localhost:8080")
	refresh := time.Duration(envIntOrDefault("SWARMDROP_REFRESH_MS", 100)) * time.Millisecond
	extent := float64(envIntOrDefault("SWARMDROP_EXTENT", world.DefaultExtent))

	observer := viewer.NewObserver(apiURL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	err := observer.WaitForAPI(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "swarm API unavailable: %v\n", err)
		os.Exit(1)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	run(screen, observer, viewer.NewRenderer(screen, extent), refresh)
}

func run(screen tcell.Screen, observer *viewer.Observer, r *viewer.Renderer, refresh time.Duration) {
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	for {
		select {
		case ev := <-eventChan:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
					(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
					return
				}
			case *tcell.EventResize:
				screen.Sync()
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), refresh*5)
			snap, err := observer.Snapshot(ctx)
			cancel()
			if err != nil {
				slog.Warn("snapshot fetch failed", "error", err)
				continue
			}
			r.Draw(snap)
		}
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
