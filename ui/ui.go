// Package ui provides the terminal interface for handguide narrations.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/handguide/narration"
)

const (
	statusMessageTimeout = time.Second * 3
	headerHeight         = 2
	statusBarHeight      = 1
)

// Narrator is the part of narration.Controller the UI drives.
type Narrator interface {
	Tap(now time.Time) narration.TapAction
	Restart() error
	NavigateAway()
}

// RunFunc narrates one source and blocks until its stream ends.
type RunFunc func(ctx context.Context, src narration.Source) (narration.Result, error)

// StartMsg starts a new narration, replacing the current one.
type StartMsg struct {
	Source narration.Source
}

type (
	narrationDoneMsg struct {
		run    int
		result narration.Result
		err    error
	}
	statusMessageTimeoutMsg struct{ id int }
)

// NewProgram returns a new Tea program that narrates src, if given, and any
// source later sent as a StartMsg.
func NewProgram(cfg Config, narrator Narrator, run RunFunc, transcript *Transcript, src *narration.Source) *tea.Program {
	log.Debug("Starting handguide UI", "engine", cfg.Engine, "model", cfg.Model)

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(newModel(cfg, narrator, run, transcript, src), opts...)
	transcript.SetSender(p.Send)
	return p
}

type model struct {
	cfg        Config
	narrator   Narrator
	run        RunFunc
	transcript *Transcript
	initial    *narration.Source

	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap
	status   *StatusDisplay
	showHelp bool

	width  int
	height int

	title     string
	runs      int
	streaming bool
	lastErr   error

	statusMessage   string
	statusMessageID int
}

func newModel(cfg Config, narrator Narrator, run RunFunc, transcript *Transcript, src *narration.Source) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(fuchsia)

	h := help.New()
	h.ShowAll = cfg.ShowHelp

	return model{
		cfg:        cfg,
		narrator:   narrator,
		run:        run,
		transcript: transcript,
		initial:    src,
		viewport:   viewport.New(0, 0),
		spinner:    sp,
		help:       h,
		keys:       newKeyMap(),
		status:     NewStatusDisplay(),
		showHelp:   cfg.ShowHelp,
	}
}

func (m model) Init() tea.Cmd {
	if m.initial == nil {
		return nil
	}
	src := *m.initial
	return func() tea.Msg { return StartMsg{Source: src} }
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.setSize()
		m.refresh()

	case StartMsg:
		m.runs++
		m.title = msg.Source.Title()
		m.streaming = true
		m.lastErr = nil
		cmds = append(cmds, m.start(m.runs, msg.Source), m.spinner.Tick)

	case narrationDoneMsg:
		if msg.run != m.runs {
			break
		}
		m.streaming = false
		switch {
		case errors.Is(msg.err, context.Canceled):
		case msg.err != nil:
			m.lastErr = msg.err
			log.Debug("Narration failed", "error", msg.err)
		case msg.result.Empty():
			cmds = append(cmds, m.showStatusMessage("nothing to say about this one"))
		}
		m.refresh()

	case refreshMsg:
		m.refresh()

	case spinner.TickMsg:
		if m.streaming {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case statusMessageTimeoutMsg:
		if msg.id == m.statusMessageID {
			m.statusMessage = ""
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.narrator.NavigateAway()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tap):
			if action := m.narrator.Tap(time.Now()); action != narration.TapIgnored {
				cmds = append(cmds, m.showStatusMessage(action.String()))
			}
			m.refresh()

		case key.Matches(msg, m.keys.Restart):
			if err := m.narrator.Restart(); err != nil {
				cmds = append(cmds, m.showStatusMessage("playback is off for this narration"))
			} else {
				cmds = append(cmds, m.showStatusMessage(narration.TapRestarted.String()))
			}
			m.refresh()

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			m.help.ShowAll = m.showHelp
			m.setSize()

		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// start runs a narration in the background.
func (m model) start(run int, src narration.Source) tea.Cmd {
	return func() tea.Msg {
		result, err := m.run(context.Background(), src)
		return narrationDoneMsg{run: run, result: result, err: err}
	}
}

func (m *model) showStatusMessage(text string) tea.Cmd {
	m.statusMessage = text
	m.statusMessageID++
	id := m.statusMessageID
	return tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg{id: id}
	})
}

func (m *model) setSize() {
	helpHeight := 0
	if m.showHelp {
		helpHeight = lipgloss.Height(m.helpView())
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(0, m.height-headerHeight-statusBarHeight-helpHeight)
}

func (m *model) contentWidth() int {
	w := m.width
	if m.cfg.MaxWidth > 0 && int(m.cfg.MaxWidth) < w { //nolint:gosec
		w = int(m.cfg.MaxWidth) //nolint:gosec
	}
	return w
}

// refresh re-renders the transcript and keeps the speaking sentence in
// view.
func (m *model) refresh() {
	v := m.transcript.View()
	m.status.Update(v, m.streaming)

	if v.Failure != "" {
		wrapped := wrapSentence(v.Failure, m.contentWidth()-transcriptIndent*2)
		m.viewport.SetContent(errorStyle(strings.Join(wrapped, "\n")))
		m.viewport.GotoTop()
		return
	}

	r := HighlightSentence(v.Lines, m.contentWidth(), m.cfg.HighlightColor)
	m.viewport.SetContent(r.Content)

	switch {
	case v.Speaking >= 0:
		row := r.Offsets[v.Speaking]
		if row < m.viewport.YOffset || row >= m.viewport.YOffset+m.viewport.Height {
			m.viewport.SetYOffset(row)
		}
	case m.streaming:
		m.viewport.GotoBottom()
	}
}

func (m model) View() string {
	var b strings.Builder

	fmt.Fprintln(&b, m.headerView())
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, m.viewport.View())
	m.statusBarView(&b)

	if m.showHelp {
		fmt.Fprint(&b, "\n"+m.helpView())
	}
	return b.String()
}

func (m model) headerView() string {
	title := m.title
	if title == "" {
		title = "waiting for a photo or a question"
	}
	header := titleStyle.Render(title)
	if m.streaming && len(m.transcript.View().Lines) == 0 {
		header += " " + m.spinner.View()
	}
	return truncate.StringWithTail(header, uint(max(0, m.width)), ellipsis) //nolint:gosec
}

func (m model) statusBarView(b *strings.Builder) {
	logo := logoView()

	helpNote := statusBarHelpStyle(" ? Help ")

	var note string
	switch {
	case m.statusMessage != "":
		note = statusBarMessageStyle(" " + m.statusMessage + " ")
	case m.lastErr != nil:
		note = statusBarNoteStyle(" ") + m.status.CompactStatus()
	default:
		if s := m.status.CompactStatus(); s != "" {
			note = statusBarNoteStyle(" ") + s
		}
		if m.cfg.Engine != "" {
			note += statusBarNoteStyle(" · " + m.cfg.Engine)
		}
	}

	avail := max(0, m.width-ansi.PrintableRuneWidth(logo)-ansi.PrintableRuneWidth(helpNote))
	note = truncate.StringWithTail(note, uint(avail), ellipsis) //nolint:gosec

	padding := max(0, avail-ansi.PrintableRuneWidth(note))
	emptySpace := statusBarNoteStyle(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s", logo, note, emptySpace, helpNote)
}

func (m model) helpView() string {
	return helpViewStyle(fill(indent(m.help.View(m.keys), 2), m.width))
}
