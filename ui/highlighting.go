package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

const transcriptIndent = 2

// highlightStyle marks the sentence being spoken (yellow background, black
// text).
func highlightStyle(color string) lipgloss.Style {
	if color == "" {
		color = "226"
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color(color)).
		Foreground(lipgloss.Color("0")).
		Bold(true)
}

// wrapSentence breaks text at spaces, then hard-wraps words that are still
// too long, which happens with long runs of Korean text.
func wrapSentence(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	return strings.Split(wrap.String(wordwrap.String(text, width), width), "\n")
}

// Rendered is a transcript laid out for a given width.
type Rendered struct {
	Content string
	// Row of the first line of each sentence
	Offsets []int
}

// HighlightSentence renders the transcript one sentence per paragraph and
// highlights the sentence being spoken. Sentences already spoken are
// dimmed.
func HighlightSentence(lines []LineView, width int, color string) Rendered {
	style := highlightStyle(color)
	wrapWidth := width - transcriptIndent*2

	var (
		b       strings.Builder
		offsets = make([]int, 0, len(lines))
		row     int
	)
	for i, l := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		offsets = append(offsets, row)
		for j, part := range wrapSentence(l.Text, wrapWidth) {
			if j > 0 {
				b.WriteString("\n")
			}
			switch {
			case l.Speaking:
				part = style.Render(part)
			case l.Spoken:
				part = spokenStyle(part)
			}
			b.WriteString(indent(part, transcriptIndent))
			row++
		}
	}
	return Rendered{Content: b.String(), Offsets: offsets}
}
