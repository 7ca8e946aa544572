// Package checkrun drives batch type-checking: it walks a tree for files an
// instance recognizes and compiles them on a bounded worker pool, reporting
// progress per file. The compilation service is single-threaded on purpose,
// so every worker owns a private service and only the disk cache is shared.
package checkrun

import "time"

// Stage describes a high-level check phase.
type Stage string

const (
	// StageRead is the file-reading stage.
	StageRead Stage = "read"
	// StageCompile is the parse-check-emit stage.
	StageCompile Stage = "compile"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the file is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the file is being processed.
	StatusWorking Status = "working"
	// StatusDone indicates the file checked clean.
	StatusDone Status = "done"
	// StatusError indicates diagnostics or an I/O failure.
	StatusError Status = "error"
)

// Event reports progress for a file (or for the whole run when File is empty).
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// FileResult is the outcome for one checked file.
type FileResult struct {
	File    string
	Err     error
	Elapsed time.Duration
}
