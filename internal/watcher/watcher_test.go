package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestNewFileWatcher(t *testing.T) {
	w, err := NewFileWatcher(0, nil)
	require.NoError(t, err)
	defer w.Stop()

	assert.Equal(t, DefaultDelay, w.debouncer.delay)
	assert.Empty(t, w.filters)
	assert.Empty(t, w.handlers)

	w.AddFilter(NoHiddenFilter)
	w.AddHandler(func(context.Context, []ChangeEvent) error { return nil })
	assert.Len(t, w.filters, 1)
	assert.Len(t, w.handlers, 1)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop(), "stop is idempotent")
}

func TestDebouncerMergesByPath(t *testing.T) {
	d := NewDebouncer(time.Hour)
	d.add(ChangeEvent{Path: "b.html", Type: EventTypeCreated})
	d.add(ChangeEvent{Path: "a.html", Type: EventTypeModified})
	d.add(ChangeEvent{Path: "b.html", Type: EventTypeModified})
	d.stop()
	d.flush()

	select {
	case events := <-d.output:
		require.Len(t, events, 2)
		assert.Equal(t, "a.html", events[0].Path)
		assert.Equal(t, "b.html", events[1].Path)
		assert.Equal(t, EventTypeModified, events[1].Type, "latest event wins")
	default:
		t.Fatal("no batch emitted")
	}

	d.flush()
	assert.Empty(t, d.output, "an empty flush emits nothing")
}

func TestFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter FileFilter
		path   string
		want   bool
	}{
		{"plain file", NoHiddenFilter, "/site/content/index.html", true},
		{"dotfile", NoHiddenFilter, "/site/content/.DS_Store", false},
		{"swap file", NoEditorFilter, "/site/content/.index.html.swp", false},
		{"backup file", NoEditorFilter, "/site/content/index.html~", false},
		{"emacs lock", NoEditorFilter, "/site/content/#index.html#", false},
		{"regular", NoEditorFilter, "/site/content/post.md", true},
		{"inside excluded", ExcludeDirFilter("/site/build"), "/site/build/index.html", false},
		{"excluded itself", ExcludeDirFilter("/site/build"), "/site/build", false},
		{"sibling prefix", ExcludeDirFilter("/site/build"), "/site/builder/index.html", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter(tt.path))
		})
	}
}

func TestFileWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "blog"), 0o755))

	w, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()

	var (
		mu    sync.Mutex
		paths = map[string]bool{}
	)
	w.AddFilter(NoHiddenFilter)
	w.AddHandler(func(_ context.Context, events []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			paths[filepath.Base(e.Path)] = true
		}
		return errors.New("handler errors are logged, not fatal")
	})
	require.NoError(t, w.AddRecursive(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "blog", "post.html"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return paths["post.html"]
	}, 3*time.Second, 20*time.Millisecond)

	// Directories created after start are watched too.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "new"), 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new", "page.html"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return paths["page.html"]
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.False(t, paths[".hidden"])
	mu.Unlock()
}

func TestAddRecursiveMissingRoot(t *testing.T) {
	w, err := NewFileWatcher(0, nil)
	require.NoError(t, err)
	defer w.Stop()

	assert.Error(t, w.AddRecursive(filepath.Join(t.TempDir(), "missing")))
}
