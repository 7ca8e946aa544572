package host

import (
	"strconv"
	"strings"

	"tsload/internal/ast"
	"tsload/internal/source"
)

// Value is a runtime value of the plain-script dialect: nil (null), float64,
// string, bool, Undefined, *Object, *Function or *Builtin.
type Value any

// Undefined is the absence of a value: uninitialized bindings, void calls,
// REPL lines with no result.
type undefinedType struct{}

var Undefined Value = undefinedType{}

// Object is a property bag: module namespaces, the exports object.
type Object struct {
	Props map[string]Value
}

func NewObject() *Object {
	return &Object{Props: make(map[string]Value)}
}

// Function is a user-defined function closed over its defining environment.
type Function struct {
	Name   string
	Params []string
	Body   *ast.Block
	Env    *Env
	File   *source.File // generated text the body's spans point into
	Path   string       // module path for stack frames
}

// Builtin is a host-provided function.
type Builtin struct {
	Name string
	Fn   func(args []Value) (Value, error)
}

// Truthy implements the dialect's boolean coercion.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case undefinedType:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	}
	return true
}

// FormatValue renders a value for output. When quoted is set, strings keep
// their quotes (REPL result framing); log output prints them raw.
func FormatValue(v Value, quoted bool) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case undefinedType:
		return "undefined"
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		if quoted {
			return strconv.Quote(x)
		}
		return x
	case *Function:
		return "[function " + x.Name + "]"
	case *Builtin:
		return "[function " + x.Name + "]"
	case *Object:
		var sb strings.Builder
		sb.WriteString("{ ")
		first := true
		for _, k := range sortedKeys(x.Props) {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			sb.WriteString(k)
			sb.WriteString(": ")
			sb.WriteString(FormatValue(x.Props[k], true))
		}
		sb.WriteString(" }")
		return sb.String()
	}
	return "unknown"
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Детерминированный вывод важен для тестов и golden-сравнений.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
