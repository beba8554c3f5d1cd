package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/refgraph/pkg/source/fs"
)

func TestCollectChangesBatches(t *testing.T) {
	events := make(chan string, 8)
	for _, id := range []string{"b.png", "a.png", "b.png"} {
		events <- id
	}

	var batches [][]string
	done := make(chan error, 1)
	go func() {
		done <- collectChanges(context.Background(), events, 20*time.Millisecond, func(_ context.Context, ids []string) error {
			batches = append(batches, ids)
			if len(batches) == 1 {
				events <- "c.png"
				close(events)
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("collectChanges did not return")
	}

	want := [][]string{{"a.png", "b.png"}, {"c.png"}}
	if len(batches) != len(want) {
		t.Fatalf("batches = %v, want %v", batches, want)
	}
	for i := range want {
		if !slices.Equal(batches[i], want[i]) {
			t.Errorf("batch %d = %v, want %v", i, batches[i], want[i])
		}
	}
}

func TestCollectChangesStops(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		cancel  bool
		handle  error
		wantErr error
	}{
		{"context done", true, nil, nil},
		{"handler fails", false, boom, boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			events := make(chan string, 1)
			if tt.cancel {
				cancel()
			} else {
				events <- "a.png"
			}
			err := collectChanges(ctx, events, time.Millisecond, func(context.Context, []string) error {
				return tt.handle
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("collectChanges() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestContentWatcherIgnored(t *testing.T) {
	dir := writeContent(t)
	host, err := fs.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	w, err := newContentWatcher(host, filepath.Join(dir, "cache"), log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	tests := []struct {
		path string
		want bool
	}{
		{"textures/a.png", false},
		{"scenes/a.asset.toml", false},
		{".git/HEAD", true},
		{"scenes/.hidden.png", true},
		{"cache/assets_v3.cache", true},
		{"cached/a.png", false},
	}
	for _, tt := range tests {
		if got := w.ignored(filepath.Join(dir, filepath.FromSlash(tt.path))); got != tt.want {
			t.Errorf("ignored(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestContentWatcherEvents(t *testing.T) {
	dir := writeContent(t)
	host, err := fs.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	w, err := newContentWatcher(host, "", log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan string, 64)
	go w.run(ctx, events)

	if err := os.WriteFile(filepath.Join(dir, "textures", "c.png"), []byte("c"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case id := <-events:
			if id == "textures/c.png" {
				return
			}
		case <-deadline:
			t.Fatal("no event for textures/c.png")
		}
	}
}
