// Package progress reports extraction progress on stderr: a live
// bubbletea bar when stderr is a terminal, plain humanized lines
// otherwise.
package progress

import (
	"fmt"
	"os"
	"time"

	bubbleprogress "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// Update describes one tick of progress for a single language.
type Update struct {
	Language  string
	Processed int
	Total     int
}

// Reporter accepts Updates and renders them until Close is called.
type Reporter struct {
	updates chan Update
	done    chan struct{}
	start   time.Time
}

// New starts a Reporter. When stderr is not a terminal (e.g. redirected to
// a file or CI log), it falls back to plain fmt.Fprintf lines instead of
// the interactive bubbletea program.
func New() *Reporter {
	r := &Reporter{
		updates: make(chan Update, 256),
		done:    make(chan struct{}),
		start:   time.Now(),
	}

	if isatty.IsTerminal(os.Stderr.Fd()) {
		go r.runInteractive()
	} else {
		go r.runPlain()
	}
	return r
}

// Report enqueues a progress update. Safe to call concurrently.
func (r *Reporter) Report(u Update) {
	select {
	case r.updates <- u:
	default:
		// Drop updates under backpressure; progress is best-effort.
	}
}

// Close stops the reporter and waits for it to flush.
func (r *Reporter) Close() {
	close(r.updates)
	<-r.done
}

var barStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

func (r *Reporter) runPlain() {
	defer close(r.done)
	for u := range r.updates {
		elapsed := humanize.RelTime(r.start, time.Now(), "", "")
		fmt.Fprintf(os.Stderr, "[%s] %s: %s/%s files\n", elapsed, u.Language, humanize.Comma(int64(u.Processed)), humanize.Comma(int64(u.Total)))
	}
}

type interactiveModel struct {
	latest  Update
	start   time.Time
	bar     bubbleprogress.Model
	program *tea.Program
}

func (m interactiveModel) Init() tea.Cmd { return nil }

func (m interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case Update:
		m.latest = v
		if v.Total > 0 {
			return m, m.bar.SetPercent(float64(v.Processed) / float64(v.Total))
		}
		return m, nil
	case tea.KeyMsg:
		if v.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case bubbleprogress.FrameMsg:
		updated, cmd := m.bar.Update(v)
		m.bar = updated.(bubbleprogress.Model)
		return m, cmd
	}
	return m, nil
}

func (m interactiveModel) View() string {
	elapsed := humanize.RelTime(m.start, time.Now(), "", "")
	if m.latest.Language == "" {
		return "waiting for the first language session to start...\n"
	}
	header := barStyle.Render(fmt.Sprintf("[%s] %s: %s/%s files", elapsed, m.latest.Language,
		humanize.Comma(int64(m.latest.Processed)), humanize.Comma(int64(m.latest.Total))))
	return header + "\n" + m.bar.View() + "\n"
}

func (r *Reporter) runInteractive() {
	defer close(r.done)
	m := interactiveModel{start: r.start, bar: bubbleprogress.New(bubbleprogress.WithDefaultGradient())}
	p := tea.NewProgram(m, tea.WithoutSignalHandler())
	m.program = p

	go func() {
		for u := range r.updates {
			p.Send(u)
		}
		p.Quit()
	}()

	_, _ = p.Run()
}
