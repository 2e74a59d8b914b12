package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// TransferDirection selects the icon and label of a live transfer view.
type TransferDirection int

const (
	DirectionSend TransferDirection = iota
	DirectionReceive
)

type progressUpdate struct {
	current int64
	done    bool
	failed  bool
	errMsg  string
}

// TickMsg drives the live transfer render loop.
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

type transferModel struct {
	direction TransferDirection
	name      string
	total     int64
	current   int64
	startTime time.Time
	started   bool
	failed    bool
	errMsg    string
	finished  bool
	bar       progress.Model
	updates   chan progressUpdate
}

func (m *transferModel) Init() tea.Cmd {
	return tickCmd()
}

func (m *transferModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TickMsg:
		m.drain()
		if m.finished {
			return m, tea.Quit
		}
		return m, tickCmd()
	case progress.FrameMsg:
		newBar, cmd := m.bar.Update(msg)
		m.bar = newBar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *transferModel) drain() {
	for {
		select {
		case u := <-m.updates:
			if u.current > 0 && !m.started {
				m.started = true
				m.startTime = time.Now()
			}
			if u.current > m.current {
				m.current = u.current
			}
			if u.failed {
				m.failed = true
				m.errMsg = u.errMsg
				m.finished = true
			}
			if u.done {
				m.current = m.total
				m.finished = true
			}
		default:
			return
		}
	}
}

func (m *transferModel) View() string {
	icon := IconSend
	if m.direction == DirectionReceive {
		icon = IconReceive
	}
	if m.failed {
		return fmt.Sprintf("%s %s %s\n", IconError, ErrorStyle.Render(m.name), ErrorStyle.Render(m.errMsg))
	}

	var percent float64
	if m.total > 0 {
		percent = float64(m.current) / float64(m.total)
	} else if m.finished {
		percent = 1
	}

	var speed float64
	if m.started {
		elapsed := time.Since(m.startTime).Seconds()
		if elapsed > 0 {
			speed = float64(m.current) / elapsed
		}
	}

	line := fmt.Sprintf("%s %s %s %5.1f%%", icon, truncateString(m.name, 30), m.bar.ViewAs(percent), percent*100)
	line += MutedStyle.Render(fmt.Sprintf(" %s (%s/%s)",
		formatSpeed(speed), formatBytes(m.current), formatBytes(m.total)))
	return line + "\n"
}

// TransferView renders one file transfer live while chat input is
// suspended. Updates arrive from the transfer goroutine; the view quits
// on completion or failure.
type TransferView struct {
	program *tea.Program
	updates chan progressUpdate
	wg      sync.WaitGroup
}

func NewTransferView(direction TransferDirection, name string, total int64) *TransferView {
	updates := make(chan progressUpdate, 100)
	model := &transferModel{
		direction: direction,
		name:      name,
		total:     total,
		bar: progress.New(
			progress.WithGradient(ProgressStart, ProgressEnd),
			progress.WithWidth(30),
			progress.WithoutPercentage(),
		),
		updates: updates,
	}
	// Keyboard stays with the chat loop; this program only renders.
	program := tea.NewProgram(model, tea.WithInput(nil), tea.WithoutSignalHandler())
	return &TransferView{program: program, updates: updates}
}

func (v *TransferView) Start() {
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		_, _ = v.program.Run()
	}()
}

func (v *TransferView) Progress(current int64) {
	select {
	case v.updates <- progressUpdate{current: current}:
	default:
	}
}

func (v *TransferView) Done() {
	v.updates <- progressUpdate{done: true}
	v.wg.Wait()
}

func (v *TransferView) Fail(msg string) {
	v.updates <- progressUpdate{failed: true, errMsg: msg}
	v.wg.Wait()
}

// Helper functions
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func formatSpeed(bytesPerSecond float64) string {
	const (
		KB = 1024.0
		MB = KB * 1024.0
		GB = MB * 1024.0
	)

	switch {
	case bytesPerSecond >= GB:
		return fmt.Sprintf("%.2f GB/s", bytesPerSecond/GB)
	case bytesPerSecond >= MB:
		return fmt.Sprintf("%.2f MB/s", bytesPerSecond/MB)
	case bytesPerSecond >= KB:
		return fmt.Sprintf("%.2f KB/s", bytesPerSecond/KB)
	default:
		return fmt.Sprintf("%.0f B/s", bytesPerSecond)
	}
}
