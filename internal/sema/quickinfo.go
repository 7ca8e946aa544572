package sema

// QuickInfo describes the symbol under a buffer offset: its name, declared
// (possibly narrowed) type, and doc comment. All fields empty when the
// offset hits no named symbol — deliberately not an error.
type QuickInfo struct {
	Name string
	Type string
	Doc  string
}

// QuickInfoAt resolves the symbol whose name span contains the offset.
// When several spans qualify the smallest one wins.
func (r *Result) QuickInfoAt(off uint32) QuickInfo {
	var best *ref
	for i := range r.refs {
		rf := &r.refs[i]
		if !rf.span.Contains(off) {
			continue
		}
		if best == nil || rf.span.Len() < best.span.Len() {
			best = rf
		}
	}
	if best == nil || best.sym == nil {
		return QuickInfo{}
	}
	return QuickInfo{
		Name: best.sym.Name,
		Type: best.sym.Type.String(),
		Doc:  best.sym.Doc,
	}
}
