package sourcemap

import (
	"tsload/internal/source"
)

// Index holds one decoded consumer per compiled file. It is the lookup table
// the host consults when rewriting stack traces. Accessed only from the
// event-loop goroutine, so it carries no locking.
type Index struct {
	byPath map[string]*Consumer
}

func NewIndex() *Index {
	return &Index{byPath: make(map[string]*Consumer)}
}

// Register decodes the document and stores its consumer under the emitted
// file's path, replacing any map from an older version of the artifact.
func (ix *Index) Register(path string, doc *Document) error {
	c, err := Parse(doc)
	if err != nil {
		return err
	}
	ix.byPath[source.NormalizePath(path)] = c
	return nil
}

// Drop evicts the entry for a path together with its artifact.
func (ix *Index) Drop(path string) {
	delete(ix.byPath, source.NormalizePath(path))
}

// Has reports whether a map is registered for the path.
func (ix *Index) Has(path string) bool {
	_, ok := ix.byPath[source.NormalizePath(path)]
	return ok
}

// Remap rewrites a generated position (1-based line and column, as stack
// frames carry them) into the original source position. When no map covers
// the position the input is returned unchanged with ok=false.
func (ix *Index) Remap(path string, line, col uint32) (string, uint32, uint32, bool) {
	c, ok := ix.byPath[source.NormalizePath(path)]
	if !ok || line == 0 || col == 0 {
		return path, line, col, false
	}
	src, srcLine, srcCol, ok := c.Lookup(int32(line)-1, int32(col)-1)
	if !ok {
		return path, line, col, false
	}
	return src, uint32(srcLine) + 1, uint32(srcCol) + 1, true
}
