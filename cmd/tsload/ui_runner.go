package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"tsload/internal/checkrun"
	"tsload/internal/ui"
)

type checkOutcome struct {
	results []checkrun.FileResult
}

// runCheckWithUI runs the batch under a Bubble Tea progress display. The
// check itself runs in a goroutine feeding the event channel; the UI owns
// the terminal until the channel closes.
func runCheckWithUI(ctx context.Context, title string, display, files []string, factory checkrun.ServiceFactory, workers int) ([]checkrun.FileResult, error) {
	events := make(chan checkrun.Event, 256)
	outcomeCh := make(chan checkOutcome, 1)

	// Прогресс показываем по коротким именам, проверяем по абсолютным.
	renamed := make(map[string]string, len(files))
	for i, f := range files {
		renamed[f] = display[i]
	}
	go func() {
		sink := renameSink{inner: checkrun.ChannelSink{Ch: events}, names: renamed}
		results := checkrun.Run(ctx, files, factory, workers, sink)
		outcomeCh <- checkOutcome{results: results}
		close(events)
	}()

	model := ui.NewProgressModel(title, display, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, nil
}

type renameSink struct {
	inner checkrun.ProgressSink
	names map[string]string
}

func (s renameSink) OnEvent(ev checkrun.Event) {
	if short, ok := s.names[ev.File]; ok {
		ev.File = short
	}
	s.inner.OnEvent(ev)
}
