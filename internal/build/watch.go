package build

import (
	"context"
	"fmt"
	"os"

	"github.com/conneroisu/folio/internal/watcher"
)

// Watch regenerates the site whenever a file below one of dirs changes,
// until ctx is done. Missing dirs are skipped and changes inside the
// destination are ignored. The watcher is started before Watch returns and
// the caller stops it.
func (g *Generator) Watch(ctx context.Context, w *watcher.FileWatcher, dirs ...string) error {
	w.AddFilter(watcher.NoHiddenFilter)
	w.AddFilter(watcher.NoEditorFilter)
	w.AddFilter(watcher.ExcludeDirFilter(g.opts.Destination))
	w.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		g.logger.Info(ctx, "regenerating", "changes", len(events), "first", events[0].Path)
		_, err := g.Generate(ctx)
		return err
	})

	for _, dir := range dirs {
		if _, err := os.Stat(dir); dir == "" || os.IsNotExist(err) {
			continue
		}
		if err := w.AddRecursive(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.Start(ctx)
	return nil
}
