package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// Spinner renders an inline activity indicator on its own goroutine.
// It writes directly to stdout, outside any bubbletea program, so it
// can run before a session loop exists.
type Spinner struct {
	message string
	frames  []string
	ticker  *time.Ticker
	done    chan struct{}
	stopped bool
}

func newSpinner(message string, s spinner.Spinner, interval time.Duration) *Spinner {
	return &Spinner{
		message: message,
		frames:  s.Frames,
		ticker:  time.NewTicker(interval),
		done:    make(chan struct{}),
	}
}

// NewConnectionSpinner indicates network activity.
func NewConnectionSpinner(message string) *Spinner {
	return newSpinner(message, spinner.Globe, 180*time.Millisecond)
}

// NewWaitingSpinner indicates waiting on a peer.
func NewWaitingSpinner(message string) *Spinner {
	return newSpinner(message, spinner.Points, 100*time.Millisecond)
}

func (s *Spinner) Start() {
	go func() {
		for i := 0; ; i++ {
			select {
			case <-s.done:
				return
			case <-s.ticker.C:
				frame := SpinnerStyle.Render(s.frames[i%len(s.frames)])
				fmt.Printf("\r%s %s", frame, s.message)
			}
		}
	}()
}

// Stop halts the spinner and clears its line. Safe to call twice.
func (s *Spinner) Stop() {
	if s.stopped {
		return
	}
	s.stopped = true
	s.ticker.Stop()
	close(s.done)
	fmt.Print("\r\033[K")
}

func (s *Spinner) Success(message string) {
	s.Stop()
	fmt.Printf("%s %s\n", SuccessStyle.Render(IconSuccess), message)
}

func (s *Spinner) Error(message string) {
	s.Stop()
	fmt.Printf("%s %s\n", ErrorStyle.Render(IconError), message)
}
