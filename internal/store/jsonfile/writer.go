package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

const writeQueueSize = 32

var errWriterClosed = errors.New("writer closed")

// fileWrite is one whole-file replacement.
type fileWrite struct {
	path string
	data []byte
}

type writeJob struct {
	ctx   context.Context
	files []fileWrite
	done  chan<- error

	// failed runs when the files were not all written.
	failed func()
}

func (j writeJob) complete(err error) {
	if err != nil && j.failed != nil {
		j.failed()
	}
	finish(j.done, err)
}

// writer is the single goroutine allowed to write the review files of one
// workspace root. Jobs complete in the order they were enqueued.
type writer struct {
	root string
	log  zerolog.Logger
	jobs chan writeJob

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func newWriter(root string, logger zerolog.Logger) *writer {
	w := &writer{
		root: root,
		log:  logger,
		jobs: make(chan writeJob, writeQueueSize),
	}

	w.wg.Add(1)
	go w.run()

	return w
}

// enqueue hands a job to the writer goroutine. The job's done channel always
// receives exactly one value.
func (w *writer) enqueue(job writeJob) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		job.complete(fmt.Errorf("write %s: %w", w.root, errWriterClosed))
		return
	}

	select {
	case w.jobs <- job:
	case <-job.ctx.Done():
		job.complete(job.ctx.Err())
	}
}

// close stops accepting jobs and waits for queued ones to be written.
func (w *writer) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *writer) run() {
	defer w.wg.Done()

	for job := range w.jobs {
		if err := job.ctx.Err(); err != nil {
			job.complete(err)
			continue
		}

		var err error
		for _, f := range job.files {
			if err = writeFileAtomic(f.path, f.data); err != nil {
				err = fmt.Errorf("write %s: %w", f.path, err)
				break
			}
		}

		if err != nil {
			w.log.Error().Err(err).Str("root", w.root).Msg("failed to persist review data")
		} else {
			w.log.Debug().Str("root", w.root).Int("files", len(job.files)).Msg("review data persisted")
		}

		job.complete(err)
	}
}

func finish(done chan<- error, err error) {
	done <- err
	close(done)
}

// writeFileAtomic replaces path with data via a temporary file and rename.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
