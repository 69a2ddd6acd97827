package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/smallnest/ragpipe/rag"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#3B82F6", Dark: "#60A5FA"})
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"})
	replyStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#10B981", Dark: "#34D399"})
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#FBBF24"})
)

// printDocument writes content followed by one line per metadata entry.
func printDocument(w io.Writer, doc rag.Document) {
	fmt.Fprintln(w, doc.Content)
	for key, value := range doc.Meta.All() {
		fmt.Fprintf(w, "%s %s\n", keyStyle.Render(key+":"), value.Text())
	}
}

func printHeader(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf(format, args...)))
}

func printReplies(w io.Writer, replies []string) {
	for _, r := range replies {
		fmt.Fprintln(w, replyStyle.Render(r))
	}
}

func printSources(w io.Writer, docs []rag.Document) {
	for i, doc := range docs {
		label := doc.ID
		if title, ok := doc.Meta.Get("title"); ok && !title.IsNull() && title.Text() != "" {
			label = title.Text()
		}
		fmt.Fprintf(w, "%d. %s %s\n", i+1, label, scoreStyle.Render(fmt.Sprintf("(%.3f)", doc.Score)))
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
