package fuzztests

import (
	"testing"
	"time"

	"tsload/internal/diag"
	"tsload/internal/emit"
	"tsload/internal/parser"
	"tsload/internal/sema"
	"tsload/internal/source"
)

// parseTimeout is the maximum time allowed for one input. Anything longer
// indicates a loop in error recovery.
const parseTimeout = 5 * time.Second

func FuzzParserBuildsAST(f *testing.F) {
	addCorpusSeeds(f)
	f.Fuzz(func(_ *testing.T, input []byte) {
		input = clampInput(input)

		fs := source.NewFileSet()
		file := fs.Get(fs.AddVirtual("fuzz.ts", input))

		bag := diag.NewBag(128)
		_ = parser.ParseUnit(file, diag.BagReporter{Bag: bag})
	})
}

// FuzzPipelineNoHang runs the full compile pipeline under a deadline: parse,
// check, emit both formats. Emit runs only on clean parses, matching the
// service's own gating.
func FuzzPipelineNoHang(f *testing.F) {
	addCorpusSeeds(f)

	// Входы, которые исторически ловили петли восстановления.
	f.Add([]byte("let x: = ;\nlet y = 2;"))
	f.Add([]byte("function f(a: , b: ) {}"))
	f.Add([]byte("import { } from"))
	f.Add([]byte("export export export"))

	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampInput(input)

		done := make(chan struct{})
		go func() {
			defer close(done)

			fs := source.NewFileSet()
			file := fs.Get(fs.AddVirtual("fuzz.ts", input))

			bag := diag.NewBag(128)
			reporter := diag.BagReporter{Bag: bag}
			unit := parser.ParseUnit(file, reporter)
			if bag.HasErrors() {
				return
			}
			sema.Check(unit, file, reporter)
			_, _ = emit.Emit(unit, file, emit.CommonJS)
			_, _ = emit.Emit(unit, file, emit.ESM)
		}()

		select {
		case <-done:
		case <-time.After(parseTimeout):
			t.Fatalf("pipeline hang: input (%d bytes): %q", len(input), truncateForLog(input, 200))
		}
	})
}

func truncateForLog(input []byte, maxLen int) []byte {
	if len(input) <= maxLen {
		return input
	}
	return append(input[:maxLen], []byte("...")...)
}
