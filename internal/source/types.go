package source

type (
	// FileID uniquely identifies one observed version of a source file
	// within a FileSet.
	FileID uint32
	// FileFlags encodes metadata about how a source file was obtained.
	FileFlags uint8
)

const (
	// FileVirtual indicates the file was added from memory (REPL unit,
	// test input, stdin).
	FileVirtual FileFlags = 1 << iota
	FileHadBOM
	FileNormalizedCRLF
)

// File captures metadata and content for a single observed version of a
// source file. Re-adding the same path produces a new File with a bumped
// Version; older versions stay reachable by ID so that diagnostics
// produced against them keep rendering correctly.
type File struct {
	ID      FileID
	Path    string
	Version uint64
	Content []byte
	LineIdx []uint32
	Hash    [32]byte
	Flags   FileFlags
}

// LineCol represents a human-readable position in a source file.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based
}
