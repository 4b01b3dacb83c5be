package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/muesli/termenv"

	"github.com/dgnsrekt/handguide/narration"
)

// Printer is a narration.Display that prints each sentence as it is
// finalized, for pipes and --plain. Highlighting is not shown.
type Printer struct {
	mu      sync.Mutex
	out     *termenv.Output
	width   int
	printed bool
}

type printedUnit struct{}

func (printedUnit) SetSpeaking(bool) {}

// NewPrinter writes to w, wrapping at width (0 for no wrapping).
func NewPrinter(w io.Writer, width int) *Printer {
	return &Printer{out: termenv.NewOutput(w), width: width}
}

// Clear implements narration.Display. It does nothing: printed sentences
// stay on screen.
func (p *Printer) Clear() {}

// AddSentence implements narration.Display.
func (p *Printer) AddSentence(text string) narration.Unit {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printed = true
	fmt.Fprintln(p.out, strings.Join(wrapSentence(text, p.width), "\n"))
	return printedUnit{}
}

// ShowError implements narration.Display.
func (p *Printer) ShowError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printed = true
	fmt.Fprintln(p.out, p.out.String(message).Foreground(p.out.Color("1")))
}

// SetControlsEnabled implements narration.Display.
func (p *Printer) SetControlsEnabled(bool) {}

// Title prints a heading for a new narration, separated from the previous
// one by a blank line.
func (p *Printer) Title(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed {
		fmt.Fprintln(p.out)
	}
	p.printed = true
	fmt.Fprintln(p.out, p.out.String("# "+title).Bold())
}
