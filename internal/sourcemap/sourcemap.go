// Package sourcemap implements the subset of the source map v3 format the
// loader needs: generating maps while emitting, decoding them back, and a
// process-wide index that rewrites generated positions into original ones.
package sourcemap

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Document is a standard source map v3 document. Only the fields the loader
// produces and consumes are modelled; unknown fields are dropped on decode.
type Document struct {
	Version  int      `json:"version"`
	File     string   `json:"file,omitempty"`
	Sources  []string `json:"sources"`
	Names    []string `json:"names"`
	Mappings string   `json:"mappings"`
}

// Mapping связывает позицию в сгенерированном тексте с позицией в исходнике.
// Все поля 0-based, как на проводе.
type Mapping struct {
	GenLine int32
	GenCol  int32
	SrcLine int32
	SrcCol  int32
}

// Generator accumulates mappings during emit and renders a Document.
// A single original source per document is enough for this pipeline: the
// compiler maps one file at a time.
type Generator struct {
	source   string
	mappings []Mapping
}

func NewGenerator(sourcePath string) *Generator {
	return &Generator{source: sourcePath}
}

// Add records one mapping. Positions are 0-based.
func (g *Generator) Add(genLine, genCol, srcLine, srcCol int32) {
	g.mappings = append(g.mappings, Mapping{genLine, genCol, srcLine, srcCol})
}

// Document renders the accumulated mappings into a v3 document.
func (g *Generator) Document(file string) *Document {
	sort.SliceStable(g.mappings, func(i, j int) bool {
		if g.mappings[i].GenLine != g.mappings[j].GenLine {
			return g.mappings[i].GenLine < g.mappings[j].GenLine
		}
		return g.mappings[i].GenCol < g.mappings[j].GenCol
	})

	var sb strings.Builder
	var prevGenCol, prevSrcLine, prevSrcCol int32
	line := int32(0)
	first := true
	for _, m := range g.mappings {
		for line < m.GenLine {
			sb.WriteByte(';')
			line++
			prevGenCol = 0
			first = true
		}
		if !first {
			sb.WriteByte(',')
		}
		first = false
		appendVLQ(&sb, m.GenCol-prevGenCol)
		appendVLQ(&sb, 0) // единственный источник
		appendVLQ(&sb, m.SrcLine-prevSrcLine)
		appendVLQ(&sb, m.SrcCol-prevSrcCol)
		prevGenCol = m.GenCol
		prevSrcLine = m.SrcLine
		prevSrcCol = m.SrcCol
	}

	return &Document{
		Version:  3,
		File:     file,
		Sources:  []string{g.source},
		Names:    []string{},
		Mappings: sb.String(),
	}
}

// segment is one decoded mapping segment on a generated line.
type segment struct {
	genCol  int32
	srcIdx  int32
	srcLine int32
	srcCol  int32
}

// Consumer is a decoded source map ready for position lookups.
type Consumer struct {
	sources []string
	lines   [][]segment
}

// Parse decodes the mappings of a document into a Consumer.
func Parse(doc *Document) (*Consumer, error) {
	if doc.Version != 3 {
		return nil, fmt.Errorf("sourcemap: unsupported version %d", doc.Version)
	}
	c := &Consumer{sources: doc.Sources}

	var srcIdx, srcLine, srcCol int32
	for _, lineStr := range strings.Split(doc.Mappings, ";") {
		var segs []segment
		genCol := int32(0)
		pos := 0
		for pos < len(lineStr) {
			if lineStr[pos] == ',' {
				pos++
				continue
			}
			var d int32
			var err error
			d, pos, err = decodeVLQ(lineStr, pos)
			if err != nil {
				return nil, err
			}
			genCol += d
			seg := segment{genCol: genCol, srcIdx: -1}
			if pos < len(lineStr) && lineStr[pos] != ',' && lineStr[pos] != ';' {
				if d, pos, err = decodeVLQ(lineStr, pos); err != nil {
					return nil, err
				}
				srcIdx += d
				if d, pos, err = decodeVLQ(lineStr, pos); err != nil {
					return nil, err
				}
				srcLine += d
				if d, pos, err = decodeVLQ(lineStr, pos); err != nil {
					return nil, err
				}
				srcCol += d
				seg.srcIdx = srcIdx
				seg.srcLine = srcLine
				seg.srcCol = srcCol
			}
			// Четырёхполевые сегменты нам достаточно, поле имени пропускаем.
			for pos < len(lineStr) && lineStr[pos] != ',' && lineStr[pos] != ';' {
				if _, pos, err = decodeVLQ(lineStr, pos); err != nil {
					return nil, err
				}
			}
			segs = append(segs, seg)
		}
		c.lines = append(c.lines, segs)
	}
	return c, nil
}

// Lookup maps a generated position (0-based) back to an original source
// position. It picks the rightmost segment at or before the column on the
// generated line; a line without segments yields no match.
func (c *Consumer) Lookup(genLine, genCol int32) (source string, srcLine, srcCol int32, ok bool) {
	if genLine < 0 || int(genLine) >= len(c.lines) {
		return "", 0, 0, false
	}
	segs := c.lines[genLine]
	idx := sort.Search(len(segs), func(i int) bool { return segs[i].genCol > genCol }) - 1
	if idx < 0 {
		return "", 0, 0, false
	}
	seg := segs[idx]
	if seg.srcIdx < 0 || int(seg.srcIdx) >= len(c.sources) {
		return "", 0, 0, false
	}
	return c.sources[seg.srcIdx], seg.srcLine, seg.srcCol, true
}

// Marshal renders the document as compact JSON.
func (d *Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// UnmarshalDocument decodes a JSON source map document.
func UnmarshalDocument(raw []byte) (*Document, bool) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Version != 3 {
		return nil, false
	}
	return &doc, true
}
