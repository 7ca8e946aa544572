// Package service is the compilation service: it owns the pipeline from
// source text to plain-script output plus source map, the per-version
// artifact cache, and the translation of blocking diagnostics into
// CompileError values.
//
// The service is not synchronized. Load hooks and the REPL call it from the
// host's single event-loop goroutine; batch tooling that wants parallelism
// creates one service per worker and shares only the DiskCache.
package service

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"tsload/internal/diag"
	"tsload/internal/emit"
	"tsload/internal/parser"
	"tsload/internal/sema"
	"tsload/internal/source"
	"tsload/internal/sourcemap"
)

// Options is the part of an instance configuration the compile pipeline
// cares about. It participates in cache identity: two services with
// different options never share artifacts.
type Options struct {
	// TranspileOnly skips the checker entirely: type diagnostics are never
	// produced. Syntax diagnostics still fail the compile.
	TranspileOnly bool
	// IgnoreDiagnostics lists type-level codes filtered out before the
	// pass/fail decision. Syntax-band codes in the list are not honored.
	IgnoreDiagnostics []uint16
}

// Observer receives the emitted text of every compile the pipeline actually
// performs. It is the formal interception point for tooling and tests.
type Observer func(fileName, outputText string)

const maxDiagnostics = 120

type Service struct {
	fs        *source.FileSet
	maps      *sourcemap.Index
	opts      Options
	ignore    map[diag.Code]struct{}
	cache     map[cacheKey]*Artifact
	disk      *DiskCache
	observer  Observer
	configSum [32]byte
}

// New creates a service over the given file set and source-map index.
func New(fs *source.FileSet, maps *sourcemap.Index, opts Options) *Service {
	ignore := make(map[diag.Code]struct{}, len(opts.IgnoreDiagnostics))
	for _, code := range opts.IgnoreDiagnostics {
		ignore[diag.Code(code)] = struct{}{}
	}
	return &Service{
		fs:        fs,
		maps:      maps,
		opts:      opts,
		ignore:    ignore,
		cache:     make(map[cacheKey]*Artifact),
		configSum: configDigest(opts),
	}
}

func configDigest(opts Options) [32]byte {
	codes := append([]uint16(nil), opts.IgnoreDiagnostics...)
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return sha256.Sum256(fmt.Appendf(nil, "transpile=%v;ignore=%v", opts.TranspileOnly, codes))
}

// Options returns the options the service was built with.
func (s *Service) Options() Options { return s.opts }

// FileSet exposes the underlying file set for diagnostic rendering.
func (s *Service) FileSet() *source.FileSet { return s.fs }

// Maps exposes the source-map index shared with the host.
func (s *Service) Maps() *sourcemap.Index { return s.maps }

// SetDiskCache attaches an optional persistent artifact cache.
func (s *Service) SetDiskCache(dc *DiskCache) { s.disk = dc }

// SetObserver installs the emitted-text observer. Passing nil removes it.
func (s *Service) SetObserver(fn Observer) { s.observer = fn }

// intern records the source text in the file set, reusing the latest
// version when the content is unchanged.
func (s *Service) intern(sourceText, fileName string) *source.File {
	path := source.NormalizePath(fileName)
	if id, ok := s.fs.GetLatest(path); ok {
		f := s.fs.Get(id)
		if f.Hash == sha256.Sum256([]byte(sourceText)) {
			return f
		}
	}
	return s.fs.Get(s.fs.AddVirtual(path, []byte(sourceText)))
}

// Compile turns source text into plain-script output with a trailing inline
// source map. A (path, version, format) pair already in cache is returned
// without touching the compiler; the cache entry is published only after the
// compile fully resolves.
func (s *Service) Compile(sourceText, fileName string, format emit.Format) (*Artifact, error) {
	file := s.intern(sourceText, fileName)
	key := cacheKey{path: file.Path, version: file.Version, format: format}
	if art, ok := s.cache[key]; ok {
		return art, nil
	}

	diskKey := s.diskKey(file, format)
	if art, ok := s.diskLookup(diskKey, file, format); ok {
		s.cache[key] = art
		return art, nil
	}

	art, err := s.compile(file, format)
	if err != nil {
		return nil, err
	}
	s.cache[key] = art
	if s.disk != nil {
		raw, mErr := art.SourceMap.Marshal()
		if mErr == nil {
			// Промах дискового кэша не должен ломать загрузку.
			_ = s.disk.Put(diskKey, &DiskPayload{
				Schema:     diskCacheSchemaVersion,
				Path:       file.Path,
				Format:     uint8(format),
				OutputText: art.OutputText,
				SourceMap:  raw,
			})
		}
	}
	return art, nil
}

func (s *Service) diskKey(file *source.File, format emit.Format) [32]byte {
	h := sha256.New()
	h.Write(file.Hash[:])
	h.Write(s.configSum[:])
	h.Write([]byte(file.Path))
	h.Write([]byte{byte(format)})
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (s *Service) diskLookup(key [32]byte, file *source.File, format emit.Format) (*Artifact, bool) {
	if s.disk == nil {
		return nil, false
	}
	var payload DiskPayload
	ok, err := s.disk.Get(key, &payload)
	if err != nil || !ok || payload.Path != file.Path {
		return nil, false
	}
	doc, ok := decodeMap(payload.SourceMap)
	if !ok {
		return nil, false
	}
	if err := s.maps.Register(file.Path, doc); err != nil {
		return nil, false
	}
	return &Artifact{
		Path:       file.Path,
		Version:    file.Version,
		Hash:       file.Hash,
		Format:     format,
		OutputText: payload.OutputText,
		SourceMap:  doc,
	}, true
}

func (s *Service) compile(file *source.File, format emit.Format) (*Artifact, error) {
	bag := diag.NewBag(maxDiagnostics)
	reporter := diag.BagReporter{Bag: bag}

	unit := parser.ParseUnit(file, reporter)
	s.filterIgnored(bag)
	if bag.HasErrors() {
		return nil, s.fail(bag)
	}

	if !s.opts.TranspileOnly {
		sema.Check(unit, file, reporter)
		s.filterIgnored(bag)
		if bag.HasErrors() {
			return nil, s.fail(bag)
		}
	}

	outputText, doc := emit.Emit(unit, file, format)
	inline, err := sourcemap.InlineComment(doc)
	if err != nil {
		return nil, err
	}
	outputText += inline

	if err := s.maps.Register(file.Path, doc); err != nil {
		return nil, err
	}
	if s.observer != nil {
		s.observer(file.Path, outputText)
	}

	return &Artifact{
		Path:       file.Path,
		Version:    file.Version,
		Hash:       file.Hash,
		Format:     format,
		OutputText: outputText,
		SourceMap:  doc,
		Diags:      append([]diag.Diagnostic(nil), bag.Items()...),
	}, nil
}

// filterIgnored drops ignored type-level diagnostics before any pass/fail
// decision is made. Syntax-band codes stay: no mode may downgrade them.
func (s *Service) filterIgnored(bag *diag.Bag) {
	if len(s.ignore) == 0 {
		return
	}
	bag.Filter(func(d diag.Diagnostic) bool {
		if d.Code.Syntax() {
			return true
		}
		_, ignored := s.ignore[d.Code]
		return !ignored
	})
}

func (s *Service) fail(bag *diag.Bag) error {
	bag.Sort()
	return &CompileError{
		Diagnostics: append([]diag.Diagnostic(nil), bag.Items()...),
		fs:          s.fs,
	}
}

// GetTypeInfo resolves the symbol at a byte offset in the source text and
// returns its name, declared type and doc comment. An offset that hits no
// named symbol yields empty strings, not an error.
func (s *Service) GetTypeInfo(sourceText, fileName string, position uint32) sema.QuickInfo {
	file := s.intern(sourceText, fileName)
	bag := diag.NewBag(maxDiagnostics)
	reporter := diag.BagReporter{Bag: bag}
	unit := parser.ParseUnit(file, reporter)
	result := sema.Check(unit, file, reporter)
	return result.QuickInfoAt(position)
}

func decodeMap(raw []byte) (*sourcemap.Document, bool) {
	doc, ok := sourcemap.UnmarshalDocument(raw)
	return doc, ok
}
