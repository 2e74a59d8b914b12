package ui

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Jaypalsingh1/sovereignshare/internal/files"
)

// SessionSummary is the recap printed when a session ends.
type SessionSummary struct {
	Peer          string
	Duration      time.Duration
	ChatMessages  int
	FilesSent     int
	FilesReceived int
	BytesSent     int64
	BytesReceived int64
}

// SessionSummaryView renders the end-of-session recap table.
func SessionSummaryView(s SessionSummary) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Color.Header = text.Colors{text.FgHiGreen, text.Bold}
	t.AppendHeader(table.Row{"Session", "Value"})
	t.AppendRows([]table.Row{
		{"Peer", s.Peer},
		{"Duration", s.Duration.Round(time.Second).String()},
		{"Chat messages", s.ChatMessages},
		{"Files sent", fmt.Sprintf("%d (%s)", s.FilesSent, files.FormatSize(s.BytesSent))},
		{"Files received", fmt.Sprintf("%d (%s)", s.FilesReceived, files.FormatSize(s.BytesReceived))},
	})
	return t.Render()
}

func RenderSessionSummary(s SessionSummary) {
	fmt.Println(SessionSummaryView(s))
}
