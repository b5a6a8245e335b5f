package main

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"pyrite/internal/ui"
)

// runWithUI renders phase progress while work runs in the background.
// The work function posts events through the sink and must not write to
// stdout; its outcome is handed back once the UI drains the event stream.
func runWithUI(title string, phases []ui.Phase, work func(ui.ProgressSink) checkOutcome) checkOutcome {
	events := make(chan ui.Event, 256)
	outcomeCh := make(chan checkOutcome, 1)

	go func() {
		outcomeCh <- work(ui.ChannelSink{Ch: events})
		close(events)
	}()

	model := ui.NewProgressModel(title, phases, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil && outcome.err == nil {
		outcome.err = uiErr
	}
	return outcome
}
