// Package emit lowers a typed unit to plain script. The strategy is
// copy-with-holes: the original text is preserved byte for byte except for
// erased annotations and rewritten module syntax, so emitted lines stay
// aligned with source lines and the source map stays dense.
package emit

import (
	"fmt"
	"sort"
	"strings"

	"tsload/internal/ast"
	"tsload/internal/source"
	"tsload/internal/sourcemap"
)

// Format selects the module flavor of the emitted text.
type Format uint8

const (
	// CommonJS rewrites import declarations to require calls and exports
	// to assignments on the ambient exports object.
	CommonJS Format = iota
	// ESM keeps import/export syntax for the host's async loader.
	ESM
)

type edit struct {
	span source.Span
	text string
}

// Emit produces the plain-script text for the unit plus its source map.
func Emit(unit *ast.Unit, file *source.File, format Format) (string, *sourcemap.Document) {
	e := &emitter{file: file, format: format}
	for _, s := range unit.Stmts {
		e.stmt(s)
	}
	return e.render()
}

type emitter struct {
	file    *source.File
	format  Format
	edits   []edit
	modSeq  int
}

func (e *emitter) erase(sp source.Span) {
	if !sp.Empty() {
		e.edits = append(e.edits, edit{span: sp})
	}
}

func (e *emitter) insertAfter(off uint32, text string) {
	e.edits = append(e.edits, edit{span: source.Span{File: e.file.ID, Start: off, End: off}, text: text})
}

func (e *emitter) replace(sp source.Span, text string) {
	e.edits = append(e.edits, edit{span: sp, text: text})
}

func (e *emitter) stmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.VarDecl:
		e.erase(st.TypeSpan)
		if !st.ExportSpan.Empty() && e.format == CommonJS {
			e.erase(st.ExportSpan)
			e.insertAfter(st.DeclSpan.End, fmt.Sprintf(" exports.%s = %s;", st.Name.Name, st.Name.Name))
		}
	case *ast.FuncDecl:
		for _, p := range st.Params {
			e.erase(p.TypeSpan)
		}
		e.erase(st.RetSpan)
		if !st.ExportSpan.Empty() && e.format == CommonJS {
			e.erase(st.ExportSpan)
			e.insertAfter(st.DeclSpan.End, fmt.Sprintf(" exports.%s = %s;", st.Name.Name, st.Name.Name))
		}
		e.block(st.Body)
	case *ast.ImportDecl:
		if e.format == CommonJS {
			e.replace(st.DeclSpan, e.lowerImport(st))
		}
	case *ast.Block:
		e.block(st)
	case *ast.IfStmt:
		e.block(st.Then)
		if st.Else != nil {
			e.stmt(st.Else)
		}
	case *ast.WhileStmt:
		e.block(st.Body)
	}
}

func (e *emitter) block(b *ast.Block) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		e.stmt(s)
	}
}

// lowerImport rewrites `import { a, b } from "m"` into a require call plus
// member reads. Destructuring is avoided on purpose: the plain dialect the
// host executes does not have it.
func (e *emitter) lowerImport(d *ast.ImportDecl) string {
	tmp := fmt.Sprintf("__mod%d", e.modSeq)
	e.modSeq++
	var sb strings.Builder
	fmt.Fprintf(&sb, "const %s = require(%q);", tmp, d.From.Value)
	for _, n := range d.Names {
		fmt.Fprintf(&sb, " const %s = %s.%s;", n.Name, tmp, n.Name)
	}
	return sb.String()
}

// render applies the edits in order and builds the mapping table. A mapping
// segment is recorded at the start of every copied chunk, at every line start
// inside copied chunks, and at the start of every replacement.
func (e *emitter) render() (string, *sourcemap.Document) {
	sort.SliceStable(e.edits, func(i, j int) bool {
		if e.edits[i].span.Start != e.edits[j].span.Start {
			return e.edits[i].span.Start < e.edits[j].span.Start
		}
		// Вставки после удалений на одной позиции.
		return e.edits[i].span.End < e.edits[j].span.End
	})

	gen := sourcemap.NewGenerator(e.file.Path)
	var out strings.Builder

	content := e.file.Content
	var genLine, genCol, srcLine, srcCol int32
	cur := uint32(0)

	copyChunk := func(to uint32) {
		if to <= cur {
			return
		}
		gen.Add(genLine, genCol, srcLine, srcCol)
		for ; cur < to; cur++ {
			b := content[cur]
			out.WriteByte(b)
			if b == '\n' {
				genLine++
				genCol = 0
				srcLine++
				srcCol = 0
				if cur+1 < to {
					gen.Add(genLine, genCol, srcLine, srcCol)
				}
			} else {
				genCol++
				srcCol++
			}
		}
	}

	skipChunk := func(to uint32) {
		for ; cur < to; cur++ {
			if content[cur] == '\n' {
				// Удаляемые span-ы не содержат переводов строк при
				// корректном парсе, но на всякий случай сохраняем строку.
				out.WriteByte('\n')
				genLine++
				genCol = 0
				srcLine++
				srcCol = 0
			} else {
				srcCol++
			}
		}
	}

	for _, ed := range e.edits {
		copyChunk(ed.span.Start)
		if ed.text != "" {
			gen.Add(genLine, genCol, srcLine, srcCol)
			out.WriteString(ed.text)
			genCol += int32(len(ed.text))
		}
		skipChunk(ed.span.End)
	}
	copyChunk(uint32(len(content)))

	return out.String(), gen.Document(e.file.Path)
}
