package repl

import (
	"bytes"
	"strings"
	"testing"

	"tsload/internal/registry"
	"tsload/internal/service"
	"tsload/internal/source"
	"tsload/internal/sourcemap"
)

func runRepl(t *testing.T, input string) (string, string) {
	t.Helper()
	svc := service.New(source.NewFileSet(), sourcemap.NewIndex(), service.Options{})
	in := registry.NewInstance(registry.Config{}, svc)

	var stdout, stderr bytes.Buffer
	r := New(strings.NewReader(input), &stdout, &stderr)
	r.SetService(in)
	if err := r.Start(); err != nil {
		t.Fatalf("repl: %v", err)
	}
	return stdout.String(), stderr.String()
}

func TestReplEvaluatesExpressions(t *testing.T) {
	stdout, stderr := runRepl(t, "1 + 2\n.exit\n")
	if !strings.Contains(stdout, "3") {
		t.Fatalf("stdout %q", stdout)
	}
	if stderr != "" {
		t.Fatalf("stderr %q", stderr)
	}
}

func TestReplBindingsPersist(t *testing.T) {
	stdout, _ := runRepl(t, "const a = 123\na * 2\n.exit\n")
	if !strings.Contains(stdout, "246") {
		t.Fatalf("stdout %q", stdout)
	}
}

func TestReplDeclarationYieldsUndefined(t *testing.T) {
	stdout, _ := runRepl(t, "let x = 1\n.exit\n")
	if !strings.Contains(stdout, "undefined") {
		t.Fatalf("declaration lines print undefined, got %q", stdout)
	}
}

func TestReplStringResultQuoted(t *testing.T) {
	stdout, _ := runRepl(t, "\"hi\"\n.exit\n")
	if !strings.Contains(stdout, `"hi"`) {
		t.Fatalf("string results keep their quotes, got %q", stdout)
	}
}

func TestReplTypeCommand(t *testing.T) {
	stdout, _ := runRepl(t, "const a = 123\n.type a\n.exit\n")
	if !strings.Contains(stdout, "a: 123") {
		t.Fatalf("stdout %q", stdout)
	}
}

func TestReplTypeCommandDoc(t *testing.T) {
	stdout, _ := runRepl(t, ".type log\n.exit\n")
	if !strings.Contains(stdout, "log: (...args: any[]) => void") {
		t.Fatalf("stdout %q", stdout)
	}
	if !strings.Contains(stdout, "standard output") {
		t.Fatalf("builtin doc missing: %q", stdout)
	}
}

func TestReplCompileErrorLeavesUnitIntact(t *testing.T) {
	// Вторая строка не компилируется (повторное объявление); юнит не должен
	// сдвинуться, и третья строка обязана видеть исходное значение.
	input := "const a = 1\nconst a = 2\na\n.exit\n"
	stdout, stderr := runRepl(t, input)
	if !strings.Contains(stderr, "TS2451") {
		t.Fatalf("stderr %q", stderr)
	}
	if !strings.Contains(stdout, "1") {
		t.Fatalf("stdout %q", stdout)
	}
}

func TestReplTypeErrorDoesNotExecute(t *testing.T) {
	stdout, stderr := runRepl(t, "log(\"ran\")\nlen(1)\n.exit\n")
	if !strings.Contains(stdout, "ran") {
		t.Fatalf("first line must run: %q", stdout)
	}
	if !strings.Contains(stderr, "TS2345") {
		t.Fatalf("stderr %q", stderr)
	}
	if strings.Count(stdout, "ran") != 1 {
		t.Fatalf("rejected line must not re-execute earlier ones: %q", stdout)
	}
}

func TestReplClear(t *testing.T) {
	// После .clear имя свободно для нового объявления на стороне компилятора.
	stdout, stderr := runRepl(t, "const a = 1\n.clear\nconst a = 2\n.exit\n")
	if strings.Contains(stderr, "TS2451") {
		t.Fatalf(".clear must reset the unit: %q", stderr)
	}
	if !strings.Contains(stdout, "undefined") {
		t.Fatalf("stdout %q", stdout)
	}
}

func TestReplUnknownCommand(t *testing.T) {
	stdout, _ := runRepl(t, ".bogus\n.exit\n")
	if !strings.Contains(stdout, "unknown command .bogus") {
		t.Fatalf("stdout %q", stdout)
	}
}

func TestReplHelp(t *testing.T) {
	stdout, _ := runRepl(t, ".help\n.exit\n")
	for _, want := range []string{".type", ".clear", ".exit"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("help lacks %s: %q", want, stdout)
		}
	}
}

func TestReplBlankLinesSkipped(t *testing.T) {
	stdout, stderr := runRepl(t, "\n   \n1\n.exit\n")
	if stderr != "" {
		t.Fatalf("stderr %q", stderr)
	}
	if !strings.Contains(stdout, "1") {
		t.Fatalf("stdout %q", stdout)
	}
}

func TestReplEOFExits(t *testing.T) {
	stdout, _ := runRepl(t, "1 + 1\n")
	if !strings.Contains(stdout, "2") {
		t.Fatalf("stdout %q", stdout)
	}
}

func TestReplRuntimeErrorStackUsesUnitLines(t *testing.T) {
	// Функция объявлена не на первой строке юнита: кадры стека должны
	// указывать на строки накопленного юнита, а не на начало суффикса.
	input := "let filler = 0\nfunction boom(): void { throw \"kaput\"; }\nboom()\n.exit\n"
	_, stderr := runRepl(t, input)
	if !strings.Contains(stderr, "at boom ("+UnitPath+":2:") {
		t.Fatalf("boom frame must point at unit line 2: %q", stderr)
	}
	if !strings.Contains(stderr, "("+UnitPath+":3:") {
		t.Fatalf("call site must point at unit line 3: %q", stderr)
	}
	if strings.Contains(stderr, UnitPath+":1:") {
		t.Fatalf("no frame belongs to unit line 1: %q", stderr)
	}
}

func TestReplRuntimeErrorReported(t *testing.T) {
	_, stderr := runRepl(t, "function boom(): void { throw \"kaput\"; }\nboom()\n.exit\n")
	if !strings.Contains(stderr, "kaput") {
		t.Fatalf("stderr %q", stderr)
	}
	if !strings.Contains(stderr, "at boom") {
		t.Fatalf("stack frame missing: %q", stderr)
	}
}
