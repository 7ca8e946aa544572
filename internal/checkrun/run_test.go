package checkrun

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"tsload/internal/registry"
	"tsload/internal/service"
	"tsload/internal/source"
	"tsload/internal/sourcemap"
)

func writeFile(t *testing.T, dir, name, text string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func newInstance(cfg registry.Config) *registry.Instance {
	svc := service.New(source.NewFileSet(), sourcemap.NewIndex(), service.Options{})
	return registry.NewInstance(cfg, svc)
}

func newFactory() ServiceFactory {
	return func() *service.Service {
		return service.New(source.NewFileSet(), sourcemap.NewIndex(), service.Options{})
	}
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ts", "let a = 1;")
	writeFile(t, dir, "sub/b.ts", "let b = 1;")
	writeFile(t, dir, "readme.md", "# not code")
	writeFile(t, dir, "plain.js", "let c = 1;")
	writeFile(t, dir, "node_modules/dep/d.ts", "let d = 1;")

	files, err := CollectFiles(dir, newInstance(registry.Config{}))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %v", files)
	}
	if filepath.Base(files[0]) != "a.ts" || filepath.Base(files[1]) != "b.ts" {
		t.Fatalf("got %v", files)
	}
}

func TestCollectFilesAllowJS(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.ts", "let a = 1;")
	writeFile(t, dir, "b.js", "let b = 1;")

	files, err := CollectFiles(dir, newInstance(registry.Config{AllowJS: true}))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %v", files)
	}
}

func TestRunReportsPerFileResults(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.ts", "export const n: number = 1;")
	bad := writeFile(t, dir, "bad.ts", "const s: string = 1;")

	results := Run(context.Background(), []string{good, bad}, newFactory(), 2, nil)
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].File != good || results[0].Err != nil {
		t.Fatalf("good file result %+v", results[0])
	}
	if results[1].File != bad || results[1].Err == nil {
		t.Fatalf("bad file must carry its error: %+v", results[1])
	}
	var ce *service.CompileError
	if !errors.As(results[1].Err, &ce) {
		t.Fatalf("err is %T", results[1].Err)
	}
	if !strings.Contains(ce.Error(), "TS2322") {
		t.Fatalf("report %q", ce.Error())
	}
}

func TestRunMissingFile(t *testing.T) {
	results := Run(context.Background(), []string{"/does/not/exist.ts"}, newFactory(), 1, nil)
	if results[0].Err == nil {
		t.Fatalf("missing file must fail the read stage")
	}
}

type recordSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordSink) OnEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func TestRunEmitsProgressEvents(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "x.ts", "let x = 1;")

	sink := &recordSink{}
	Run(context.Background(), []string{f}, newFactory(), 1, sink)

	var statuses []Status
	for _, ev := range sink.events {
		if ev.File == f {
			statuses = append(statuses, ev.Status)
		}
	}
	want := []Status{StatusQueued, StatusWorking, StatusWorking, StatusDone}
	if len(statuses) != len(want) {
		t.Fatalf("events %v", statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("event %d = %v, want %v", i, statuses[i], want[i])
		}
	}
	last := sink.events[len(sink.events)-1]
	if last.Stage != StageCompile || last.Elapsed <= 0 {
		t.Fatalf("final event %+v", last)
	}
}

func TestRunManyFilesManyWorkers(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for i := 0; i < 20; i++ {
		name := string(rune('a'+i)) + ".ts"
		files = append(files, writeFile(t, dir, name, "export const v: number = 1;"))
	}

	results := Run(context.Background(), files, newFactory(), 4, nil)
	for i, res := range results {
		if res.File != files[i] {
			t.Fatalf("result %d out of order: %q", i, res.File)
		}
		if res.Err != nil {
			t.Fatalf("file %s failed: %v", res.File, res.Err)
		}
	}
}

func TestRunCancelledContext(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for i := 0; i < 8; i++ {
		name := string(rune('a'+i)) + ".ts"
		files = append(files, writeFile(t, dir, name, "let v = 1;"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := Run(ctx, files, newFactory(), 2, nil)
	// Отменённый прогон возвращается без паники; результаты частичны.
	if len(results) != len(files) {
		t.Fatalf("got %d slots", len(results))
	}
}
