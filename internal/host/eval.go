package host

// Evaluator runs successive plain-text snippets in one persistent
// environment. The REPL compiles its accumulated unit, diffs the emitted
// output and feeds only the new suffix here, so earlier statements never
// re-execute.
type Evaluator struct {
	h   *Host
	mod *Module
	env *Env
}

// NewEvaluator builds an evaluator rooted at dir. The synthetic module gives
// snippets a working require relative to dir.
func NewEvaluator(h *Host, virtualPath, dir string) *Evaluator {
	mod := &Module{Path: virtualPath, Exports: NewObject()}
	env := h.moduleEnv(mod, dir+"/"+"repl")
	return &Evaluator{h: h, mod: mod, env: env}
}

// Eval parses and executes text, returning the value of its last expression
// statement. Runtime errors come back stack-remapped.
func (ev *Evaluator) Eval(virtualPath, text string) (Value, error) {
	file, stmts, err := ev.h.parse(virtualPath, text)
	if err != nil {
		return Undefined, err
	}
	interp := newInterp(ev.h, file, ev.mod.Path)
	v, err := interp.Run(stmts, ev.env)
	if err != nil {
		if re, ok := err.(*RuntimeError); ok {
			re.Remap(ev.h.maps)
		}
		return Undefined, err
	}
	return v, nil
}
