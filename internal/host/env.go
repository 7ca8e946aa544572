package host

type binding struct {
	value    Value
	constant bool
}

// Env is a lexical environment. Lookups walk the parent chain.
type Env struct {
	parent *Env
	vars   map[string]*binding
}

func NewEnv(parent *Env) *Env {
	return &Env{parent: parent, vars: make(map[string]*binding)}
}

func (e *Env) Define(name string, v Value, constant bool) {
	e.vars[name] = &binding{value: v, constant: constant}
}

func (e *Env) Lookup(name string) (Value, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if b, ok := cur.vars[name]; ok {
			return b.value, true
		}
	}
	return nil, false
}

// Set assigns to an existing binding. Returns false when the name is
// unbound, and constViolation when the binding is a constant.
func (e *Env) Set(name string, v Value) (ok, constViolation bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if b, found := cur.vars[name]; found {
			if b.constant {
				return false, true
			}
			b.value = v
			return true, false
		}
	}
	return false, false
}
