package host

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// builtinEnv builds the shared global environment. Every module and REPL
// environment chains to this one; require is per-module and lives in the
// module environment instead.
func builtinEnv(h *Host) *Env {
	env := NewEnv(nil)

	env.Define("log", &Builtin{
		Name: "log",
		Fn: func(args []Value) (Value, error) {
			writeLine(h, args)
			return Undefined, nil
		},
	}, true)

	// print совпадает с log; отдельное имя ради привычки из скриптов.
	env.Define("print", &Builtin{
		Name: "print",
		Fn: func(args []Value) (Value, error) {
			writeLine(h, args)
			return Undefined, nil
		},
	}, true)

	env.Define("len", &Builtin{
		Name: "len",
		Fn: func(args []Value) (Value, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("len expects exactly one argument")
			}
			switch x := args[0].(type) {
			case string:
				return float64(len(x)), nil
			case *Object:
				return float64(len(x.Props)), nil
			}
			return nil, fmt.Errorf("len expects a string or an object")
		},
	}, true)

	env.Define("normalize", &Builtin{
		Name: "normalize",
		Fn: func(args []Value) (Value, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("normalize expects exactly one argument")
			}
			s, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("normalize expects a string")
			}
			return norm.NFC.String(s), nil
		},
	}, true)

	return env
}

func writeLine(h *Host, args []Value) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = FormatValue(a, false)
	}
	fmt.Fprintln(h.stdout, strings.Join(parts, " "))
}
