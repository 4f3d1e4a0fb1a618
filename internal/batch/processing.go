package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
)

// Processor runs one image through the pipeline.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

// taskPool is the subset of *ants.Pool the runner uses.
type taskPool interface {
	Submit(task func()) error
	Release()
}

var newTaskPool = func(size int) (taskPool, error) { return ants.NewPool(size) }

// Item is the outcome for one file. Exactly one of Response and Err is set.
type Item struct {
	File     string
	Response *pipeline.Response
	Err      error
}

// processFiles runs every file through proc on a pool of workers. Results keep
// the order of files. With failFast the first failure cancels the files not
// yet started.
func processFiles(ctx context.Context, proc Processor, files []string, workers int,
	failFast bool, progress ProgressCallback, logger *slog.Logger) ([]Item, error) {
	items := make([]Item, len(files))
	for i, f := range files {
		items[i].File = f
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := newTaskPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	if progress != nil {
		progress.OnStart(len(files))
	}

	var (
		wg        sync.WaitGroup
		done      atomic.Int64
		firstErr  error
		firstOnce sync.Once
	)
	for i := range files {
		wg.Add(1)
		idx := i
		task := func() {
			defer wg.Done()
			items[idx] = processFile(ctx, proc, files[idx], logger)
			if items[idx].Err != nil {
				if progress != nil {
					progress.OnError(files[idx], items[idx].Err)
				}
				if failFast {
					firstOnce.Do(func() {
						firstErr = fmt.Errorf("%s: %w", files[idx], items[idx].Err)
						cancel()
					})
				}
			}
			if progress != nil {
				progress.OnProgress(int(done.Add(1)), len(files))
			}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			cancel()
			wg.Wait()
			return nil, fmt.Errorf("submit %s: %w", files[idx], err)
		}
	}
	wg.Wait()

	if progress != nil {
		progress.OnComplete()
	}
	if firstErr != nil {
		return items, firstErr
	}
	return items, nil
}

// processFile reads and processes one file. A canceled context skips the file.
func processFile(ctx context.Context, proc Processor, path string, logger *slog.Logger) Item {
	item := Item{File: path}
	if err := ctx.Err(); err != nil {
		item.Err = &pipeline.Error{Kind: pipeline.KindCanceled, Stage: pipeline.StageAdmitted, Err: err}
		return item
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from discovery over user-supplied args
	if err != nil {
		item.Err = fmt.Errorf("read %s: %w", path, err)
		return item
	}

	resp, err := proc.Process(ctx, pipeline.Request{Data: data, RequestID: path})
	if err != nil {
		var perr *pipeline.Error
		if !errors.As(err, &perr) {
			err = fmt.Errorf("process %s: %w", path, err)
		}
		logger.Debug("batch item failed", "file", path, "kind", pipeline.KindOf(err), "error", err)
		item.Err = err
		return item
	}
	item.Response = resp
	return item
}
