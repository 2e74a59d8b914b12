package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// TranscriptRow is one chat line in the session history table.
type TranscriptRow struct {
	At    time.Time
	From  string
	Text  string
	Local bool
}

// RenderTranscript prints the session chat history so far.
func RenderTranscript(rows []TranscriptRow) {
	if len(rows) == 0 {
		PrintInfo("No chat messages yet")
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(MutedStyle).
		Headers("TIME", "FROM", "MESSAGE")
	for _, row := range rows {
		from := PeerStyle.Render(row.From)
		if row.Local {
			from = SelfStyle.Render("you")
		}
		t = t.Row(row.At.Format("15:04:05"), from, row.Text)
	}
	fmt.Println(t)
}
