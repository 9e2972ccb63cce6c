// Package ui provides the terminal front end of the reader.
package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	te "github.com/muesli/termenv"

	"github.com/dgnsrekt/readalong/internal/reader"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "copied"
	ellipsis             = "…"
)

var config Config

// NewProgram returns a new Tea program reading s.
func NewProgram(cfg Config, s *reader.Session) *tea.Program {
	log.Debug(
		"Starting readalong",
		"high_perf_pager",
		cfg.HighPerformancePager,
		"mouse",
		cfg.EnableMouse,
	)

	config = cfg
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	m := newModel(cfg, s)
	return tea.NewProgram(m, opts...)
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type (
	// The session changed: playback moved, a word lit up, a popup faded.
	changedMsg struct{}
	// A page finished loading.
	pageLoadedMsg struct{}
	// The current page changed on disk.
	reloadMsg struct{}

	statusMessageTimeoutMsg struct{}
	editorFinishedMsg       struct{ err error }
)

// Common stuff we'll need to access in all models.
type commonModel struct {
	cfg     Config
	session *reader.Session
	width   int
	height  int
}

type model struct {
	common   *commonModel
	fatalErr error
	loaded   bool

	pager pagerModel

	// Signalled by the session whenever something visible changed. One
	// pending signal is enough; more are dropped.
	changes chan struct{}
}

func newModel(cfg Config, s *reader.Session) model {
	if cfg.GlamourStyle == "" || cfg.GlamourStyle == styles.AutoStyle {
		if te.HasDarkBackground() {
			cfg.GlamourStyle = styles.DarkStyle
		} else {
			cfg.GlamourStyle = styles.LightStyle
		}
	}

	common := commonModel{cfg: cfg, session: s}
	m := model{
		common:  &common,
		pager:   newPagerModel(&common),
		changes: make(chan struct{}, 1),
	}
	s.OnChange(func() {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})
	return m
}

func (m model) Init() tea.Cmd {
	log.Debug("Init() called", "start_page", m.common.cfg.StartPage)
	return tea.Batch(
		openBook(m.common.session, m.common.cfg.StartPage),
		waitForChange(m.changes),
		m.pager.spinner.Tick,
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.common.session.Close()
			return m, tea.Quit

		case "ctrl+z":
			return m, tea.Suspend
		}

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.pager.setSize(msg.Width, msg.Height)

	case errMsg:
		if !m.loaded {
			log.Error("unable to open book", "error", msg.err)
			m.fatalErr = msg.err
			return m, nil
		}
		cmds = append(cmds, m.pager.showStatusMessage(pagerStatusMessage{msg.err.Error(), true}))

	case pageLoadedMsg:
		m.loaded = true

	case changedMsg:
		cmds = append(cmds, waitForChange(m.changes))
	}

	newPagerModel, cmd := m.pager.update(msg)
	m.pager = newPagerModel
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}
	if !m.loaded {
		return "\n  " + m.pager.spinner.View() + " Opening book…"
	}
	return m.pager.View()
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// COMMANDS

// openBook resumes where the reader left off, or opens page when it is
// not negative.
func openBook(s *reader.Session, page int) tea.Cmd {
	return func() tea.Msg {
		var err error
		if page >= 0 {
			err = s.Open(page)
			if errors.Is(err, reader.ErrNoPage) {
				log.Warn("no such page, resuming instead", "page", page)
				err = s.Resume()
			}
		} else {
			err = s.Resume()
		}
		if err != nil {
			return errMsg{err}
		}
		return pageLoadedMsg{}
	}
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

func spinnerModel() spinner.Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = cursorStyle
	return sp
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
