package checkrun

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"tsload/internal/emit"
	"tsload/internal/registry"
	"tsload/internal/require"
	"tsload/internal/service"
)

// ServiceFactory builds one private compilation service per worker.
type ServiceFactory func() *service.Service

// CollectFiles walks root and returns, sorted, every file the instance both
// recognizes and does not exclude.
func CollectFiles(root string, in *registry.Instance) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if require.Ignored(in, path+"/x") {
				return filepath.SkipDir
			}
			return nil
		}
		if in.Handles(path) && !require.Ignored(in, path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// Run checks every file on a pool of workers and returns per-file results in
// input order. A file that fails does not stop the rest of the batch; only
// context cancellation does.
func Run(ctx context.Context, files []string, factory ServiceFactory, workers int, sink ProgressSink) []FileResult {
	if workers < 1 {
		workers = 1
	}
	if sink != nil {
		for _, f := range files {
			sink.OnEvent(Event{File: f, Stage: StageRead, Status: StatusQueued})
		}
	}

	results := make([]FileResult, len(files))
	jobs := make(chan int)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			svc := factory()
			for idx := range jobs {
				results[idx] = checkOne(svc, files[idx], sink)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(jobs)
		for idx := range files {
			select {
			case jobs <- idx:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	// Ошибка возможна только от отмены контекста; результаты частичны.
	_ = g.Wait()
	return results
}

func checkOne(svc *service.Service, file string, sink ProgressSink) FileResult {
	start := time.Now()
	emitEvent(sink, Event{File: file, Stage: StageRead, Status: StatusWorking})

	data, err := os.ReadFile(file)
	if err != nil {
		emitEvent(sink, Event{File: file, Stage: StageRead, Status: StatusError, Err: err})
		return FileResult{File: file, Err: err, Elapsed: time.Since(start)}
	}

	emitEvent(sink, Event{File: file, Stage: StageCompile, Status: StatusWorking})
	_, err = svc.Compile(string(data), file, emit.CommonJS)
	elapsed := time.Since(start)
	if err != nil {
		emitEvent(sink, Event{File: file, Stage: StageCompile, Status: StatusError, Err: err, Elapsed: elapsed})
		return FileResult{File: file, Err: err, Elapsed: elapsed}
	}
	emitEvent(sink, Event{File: file, Stage: StageCompile, Status: StatusDone, Elapsed: elapsed})
	return FileResult{File: file, Elapsed: elapsed}
}

func emitEvent(sink ProgressSink, ev Event) {
	if sink != nil {
		sink.OnEvent(ev)
	}
}
