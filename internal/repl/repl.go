// Package repl is the interactive loop: one accumulating virtual unit that
// is recompiled in full on every line, while only the newly appended
// statement's emitted code actually executes. Compilation state advances
// only on lines that compile.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"tsload/internal/diag"
	"tsload/internal/emit"
	"tsload/internal/host"
	"tsload/internal/registry"
	"tsload/internal/service"
	"tsload/internal/sourcemap"
)

// UnitPath is the name of the REPL's virtual compilation unit.
const UnitPath = "[repl].ts"

const prompt = "> "

type state uint8

const (
	stateIdle state = iota
	stateAwaitingLine
	stateEvaluating
)

type Repl struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	inst *registry.Instance
	host *host.Host
	eval *host.Evaluator

	state state
	unit  string // accepted source so far
	prev  string // emitted text of the accepted unit, inline map stripped
}

func New(stdin io.Reader, stdout, stderr io.Writer) *Repl {
	return &Repl{stdin: stdin, stdout: stdout, stderr: stderr, state: stateIdle}
}

// SetService binds the instance whose compilation service the loop drives.
// The host shares the instance's source-map index so runtime stacks remap.
func (r *Repl) SetService(in *registry.Instance) {
	r.inst = in
	r.host = host.NewHost(r.stdout, r.stderr, in.Service().Maps())
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	r.eval = host.NewEvaluator(r.host, UnitPath, dir)
}

// Start runs the loop until EOF or .exit.
func (r *Repl) Start() error {
	if r.inst == nil {
		return fmt.Errorf("repl: no compiler instance bound")
	}
	scanner := bufio.NewScanner(r.stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		r.state = stateAwaitingLine
		fmt.Fprint(r.stdout, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(r.stdout)
			r.state = stateIdle
			return scanner.Err()
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		r.state = stateEvaluating
		if strings.HasPrefix(strings.TrimSpace(line), ".") {
			if done := r.command(strings.TrimSpace(line)); done {
				r.state = stateIdle
				return nil
			}
			continue
		}
		r.evaluate(line)
	}
}

// evaluate recompiles the accumulated unit plus the new line and executes
// only the emitted suffix. A failed compile leaves the unit untouched.
func (r *Repl) evaluate(line string) {
	candidate := r.unit + line + "\n"
	art, err := r.inst.Service().Compile(candidate, UnitPath, emit.CommonJS)
	if err != nil {
		r.printError(err)
		return
	}

	emitted := sourcemap.StripInline(art.OutputText)
	suffix := strings.TrimPrefix(emitted, r.prev)
	// Суффикс исполняется отдельным куском, а карта покрывает весь юнит;
	// пустые строки возвращают ему номера строк принятой части.
	pad := strings.Repeat("\n", strings.Count(r.prev, "\n"))

	r.unit = candidate
	r.prev = emitted

	v, err := r.eval.Eval(UnitPath, pad+suffix)
	if err != nil {
		r.printError(err)
		return
	}
	fmt.Fprintln(r.stdout, host.FormatValue(v, true))
}

// command handles dot-commands, which bypass compilation. Returns true when
// the loop should stop.
func (r *Repl) command(line string) bool {
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case ".exit":
		return true
	case ".help":
		fmt.Fprintln(r.stdout, ".type <expr>  show the declared type of an expression")
		fmt.Fprintln(r.stdout, ".clear        forget all accumulated declarations")
		fmt.Fprintln(r.stdout, ".help         show this help")
		fmt.Fprintln(r.stdout, ".exit         leave the repl")
	case ".clear":
		r.unit = ""
		r.prev = ""
	case ".type":
		r.typeOf(strings.TrimSpace(rest))
	default:
		fmt.Fprintf(r.stdout, "unknown command %s, try .help\n", cmd)
	}
	return false
}

// typeOf appends the expression to a probe copy of the unit and asks the
// service for quick info at the expression's first character.
func (r *Repl) typeOf(expr string) {
	if expr == "" {
		fmt.Fprintln(r.stdout, "usage: .type <expr>")
		return
	}
	probe := r.unit + expr + "\n"
	info := r.inst.Service().GetTypeInfo(probe, UnitPath, uint32(len(r.unit)))
	if info.Name == "" {
		fmt.Fprintf(r.stdout, "no type information for %s\n", expr)
		return
	}
	fmt.Fprintf(r.stdout, "%s: %s\n", info.Name, info.Type)
	if info.Doc != "" {
		fmt.Fprintln(r.stdout, info.Doc)
	}
}

func (r *Repl) printError(err error) {
	if ce, ok := err.(*service.CompileError); ok {
		fmt.Fprint(r.stderr, ce.Report(diag.ReportOptions{}))
		return
	}
	fmt.Fprintln(r.stderr, err.Error())
}
