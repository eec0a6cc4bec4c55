package build

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Report summarizes one Generate run.
type Report struct {
	Pages  int64
	Posts  int64
	Feeds  int64
	Copied int64
	// Files is the number of files written and Bytes their total size.
	Files    int64
	Bytes    int64
	Duration time.Duration

	started time.Time
	mutex   sync.Mutex
}

func (r *Report) add(counter *int64) {
	r.mutex.Lock()
	*counter++
	r.mutex.Unlock()
}

func (r *Report) written(size int64) {
	r.mutex.Lock()
	r.Files++
	r.Bytes += size
	r.mutex.Unlock()
}

// finish stops the clock and returns a copy without the mutex.
func (r *Report) finish() *Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return &Report{
		Pages:    r.Pages,
		Posts:    r.Posts,
		Feeds:    r.Feeds,
		Copied:   r.Copied,
		Files:    r.Files,
		Bytes:    r.Bytes,
		Duration: time.Since(r.started),
	}
}

// Rendered is the number of files produced by a template.
func (r *Report) Rendered() int64 {
	return r.Pages + r.Posts + r.Feeds
}

func (r *Report) String() string {
	return fmt.Sprintf("%s files (%d rendered, %d copied), %s in %s",
		humanize.Comma(r.Files), r.Rendered(), r.Copied,
		humanize.Bytes(uint64(r.Bytes)), r.Duration.Round(time.Millisecond))
}
