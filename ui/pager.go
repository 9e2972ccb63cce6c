package ui

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/editor"
	"github.com/fsnotify/fsnotify"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/readalong/internal/content"
	"github.com/dgnsrekt/readalong/internal/glossary"
	"github.com/dgnsrekt/readalong/internal/highlight"
	"github.com/dgnsrekt/readalong/internal/popup"
	"github.com/dgnsrekt/readalong/internal/reader"
)

const statusBarHeight = 1

var (
	pagerHelpHeight int

	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	statusBarPlaybackStyle = lipgloss.NewStyle().
				Background(statusBarBg).
				Render

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(cream).
				Background(red).
				Render

	statusBarMessageHelpStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("#B6FFE4")).
					Background(green).
					Render

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Background(lipgloss.AdaptiveColor{Light: "#f2f2f2", Dark: "#1B1B1B"}).
			Render
)

type pagerState int

const (
	pagerStateBrowse pagerState = iota
	pagerStateStatusMessage
)

type pagerModel struct {
	common   *commonModel
	viewport viewport.Model
	spinner  spinner.Model
	state    pagerState
	showHelp bool

	statusMessage      string
	statusIsError      bool
	statusMessageTimer *time.Timer

	// The page as last laid out, and the unit the view last followed.
	view      pageView
	following int
	anchors   map[string]popup.Rect

	// Glossary term last opened with tab.
	termIdx int

	watcher  *fsnotify.Watcher
	watching bool
}

func newPagerModel(common *commonModel) pagerModel {
	// Init viewport
	vp := viewport.New(0, 0)
	vp.YPosition = 0
	vp.HighPerformanceRendering = config.HighPerformancePager

	m := pagerModel{
		common:    common,
		state:     pagerStateBrowse,
		viewport:  vp,
		spinner:   spinnerModel(),
		following: -1,
		termIdx:   -1,
	}
	if common.cfg.WatchPages {
		m.initWatcher()
	}
	return m
}

func (m *pagerModel) setSize(w, h int) {
	m.viewport.Width = w
	m.viewport.Height = h - statusBarHeight

	if m.showHelp {
		if pagerHelpHeight == 0 {
			pagerHelpHeight = strings.Count(m.helpView(), "\n")
		}
		m.viewport.Height -= (statusBarHeight + pagerHelpHeight)
	}
	m.common.session.Screen().SetSize(m.viewport.Width, m.viewport.Height)
	m.render()
}

func (m *pagerModel) toggleHelp() {
	m.showHelp = !m.showHelp
	m.setSize(m.common.width, m.common.height)
	if m.viewport.PastBottom() {
		m.viewport.GotoBottom()
	}
}

type pagerStatusMessage struct {
	message string
	isError bool
}

func (m *pagerModel) showStatusMessage(msg pagerStatusMessage) tea.Cmd {
	m.state = pagerStateStatusMessage
	m.statusMessage = msg.message
	m.statusIsError = msg.isError
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)

	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

// render lays the current page out again and keeps the unit being read
// in view.
func (m *pagerModel) render() {
	s := m.common.session
	if m.viewport.Width == 0 {
		return
	}
	idx := s.Sequencer().State().Index
	m.view = layoutPage(s.Document(), s.Catalog(), s.Synchronizer(), idx, m.viewport.Width)
	m.viewport.SetContent(m.view.content)

	if idx != m.following {
		m.following = idx
		if b, ok := m.view.blockOf(idx); ok {
			bottom := m.viewport.YOffset + m.viewport.Height
			if b.top < m.viewport.YOffset || b.top+b.height > bottom {
				m.viewport.SetYOffset(b.top)
			}
		}
	}
	m.syncAnchors()
}

// syncAnchors tells the popup layout where the images are. The popup is
// only moved when an anchor actually moved.
func (m *pagerModel) syncAnchors() {
	anchors := m.view.anchors(m.viewport.Width, m.viewport.Height, m.viewport.YOffset)
	if sameRects(anchors, m.anchors) {
		return
	}
	m.anchors = anchors
	s := m.common.session
	s.Screen().SetAnchors(anchors)
	s.Popups().Reposition()
}

func sameRects(a, b map[string]popup.Rect) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// interact records a user interaction. It reports whether that started a
// pending autoplay.
func (m pagerModel) interact() bool {
	seq := m.common.session.Sequencer()
	was := seq.State().Playing
	seq.NotifyUserInteraction()
	return !was && seq.State().Playing
}

func (m pagerModel) update(msg tea.Msg) (pagerModel, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)
	s := m.common.session
	seq := s.Sequencer()

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case keyEsc:
			switch {
			case m.state != pagerStateBrowse:
				m.state = pagerStateBrowse
			case hasDefinition(s):
				s.CloseDefinition()
			case m.showHelp:
				m.toggleHelp()
			}
			return m, nil

		case "home", "g":
			m.viewport.GotoTop()
			if m.viewport.HighPerformanceRendering {
				cmds = append(cmds, viewport.Sync(m.viewport))
			}
		case "end", "G":
			m.viewport.GotoBottom()
			if m.viewport.HighPerformanceRendering {
				cmds = append(cmds, viewport.Sync(m.viewport))
			}

		case " ":
			if !m.interact() {
				seq.TogglePlayPause()
			}
			return m, m.spinner.Tick

		case "enter":
			m.interact()
			seq.PlayCurrentAudio()
			return m, m.spinner.Tick

		case "n", "right":
			m.interact()
			seq.PlayNextAudio()
			return m, m.spinner.Tick

		case "p", "left":
			m.interact()
			seq.PlayPreviousAudio()
			return m, m.spinner.Tick

		case "s":
			m.interact()
			seq.Stop()
			return m, nil

		case "]", "N":
			m.interact()
			return m, m.changePage(s.NextPage, "Last page")

		case "[", "P":
			m.interact()
			return m, m.changePage(s.PrevPage, "First page")

		case "+", "=":
			m.interact()
			if err := s.SpeedUp(); err != nil {
				return m, m.showStatusMessage(pagerStatusMessage{err.Error(), true})
			}
			return m, m.showStatusMessage(pagerStatusMessage{"Speed " + formatSpeed(s.Modes().Speed), false})

		case "-", "_":
			m.interact()
			if err := s.SlowDown(); err != nil {
				return m, m.showStatusMessage(pagerStatusMessage{err.Error(), true})
			}
			return m, m.showStatusMessage(pagerStatusMessage{"Speed " + formatSpeed(s.Modes().Speed), false})

		case "e":
			m.interact()
			on := !s.Modes().EasyRead
			if err := s.SetEasyRead(on); err != nil {
				return m, m.showStatusMessage(pagerStatusMessage{err.Error(), true})
			}
			return m, m.showStatusMessage(pagerStatusMessage{"Easy-read " + onOff(on), false})

		case "i":
			m.interact()
			on := !s.Modes().DescribeImages
			s.SetDescribeImages(on)
			return m, m.showStatusMessage(pagerStatusMessage{"Image descriptions " + onOff(on), false})

		case "a":
			m.interact()
			on := !s.Modes().Autoplay
			s.SetAutoplay(on)
			return m, m.showStatusMessage(pagerStatusMessage{"Autoplay " + onOff(on), false})

		case "l":
			m.interact()
			if err := s.NextLanguage(); err != nil {
				return m, m.showStatusMessage(pagerStatusMessage{err.Error(), true})
			}
			m.termIdx = -1
			return m, m.showStatusMessage(pagerStatusMessage{"Language " + strings.ToUpper(s.Modes().Language), false})

		case "tab", "shift+tab":
			m.interact()
			terms := s.GlossaryTerms()
			if len(terms) == 0 {
				return m, m.showStatusMessage(pagerStatusMessage{"No glossary terms on this page", false})
			}
			switch {
			case m.termIdx < 0 || m.termIdx >= len(terms):
				m.termIdx = 0
				if msg.String() == "shift+tab" {
					m.termIdx = len(terms) - 1
				}
			case msg.String() == "shift+tab":
				m.termIdx = (m.termIdx + len(terms) - 1) % len(terms)
			default:
				m.termIdx = (m.termIdx + 1) % len(terms)
			}
			s.Synchronizer().ShowTerm(terms[m.termIdx])
			return m, nil

		case "c":
			text := m.currentText()
			// Copy using OSC 52
			termenv.Copy(text)
			// Copy using native system clipboard
			_ = clipboard.WriteAll(text)
			cmds = append(cmds, m.showStatusMessage(pagerStatusMessage{"Copied text", false}))

		case "o":
			path, ok := m.pagePath()
			if !ok {
				return m, m.showStatusMessage(pagerStatusMessage{"Remote pages cannot be edited", true})
			}
			return m, openEditor(path)

		case "r":
			return m, reloadPage(s)

		case "?":
			m.toggleHelp()
			if m.viewport.HighPerformanceRendering {
				cmds = append(cmds, viewport.Sync(m.viewport))
			}
		}

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			m.interact()
			m.click(msg.X, msg.Y)
		}

	case pageLoadedMsg:
		m.render()
		if m.watcher != nil && !m.watching {
			m.watching = true
			cmds = append(cmds, m.watchPage)
		}

	case changedMsg:
		m.render()
		if seq.State().Playing {
			cmds = append(cmds, m.spinner.Tick)
		}

	// The page was changed on disk and we're reloading it
	case reloadMsg:
		m.watching = false
		return m, reloadPage(s)

	// We've finished editing the page, potentially making changes.
	case editorFinishedMsg:
		if msg.err != nil {
			return m, m.showStatusMessage(pagerStatusMessage{msg.err.Error(), true})
		}
		return m, reloadPage(s)

	case tea.WindowSizeMsg:
		return m, nil

	case statusMessageTimeoutMsg:
		m.state = pagerStateBrowse

	case spinner.TickMsg:
		if !seq.State().Playing {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	m.syncAnchors()

	return m, tea.Batch(cmds...)
}

func (m *pagerModel) changePage(fn func() error, edge string) tea.Cmd {
	err := fn()
	if errors.Is(err, reader.ErrNoPage) {
		return m.showStatusMessage(pagerStatusMessage{edge, false})
	}
	if err != nil {
		return m.showStatusMessage(pagerStatusMessage{err.Error(), true})
	}
	m.termIdx = -1
	m.following = -1
	m.viewport.GotoTop()
	m.render()
	m.watchDir()
	return nil
}

// click sends a left click at (x, y) to the popup first, then to the
// unit under it.
func (m *pagerModel) click(x, y int) {
	s := m.common.session
	target, _ := s.Screen().AnchorAt(x, y)
	if s.Popups().HandleClick(x, y, target) {
		return
	}
	if y >= m.viewport.Height {
		return
	}
	b, ok := m.view.blockAt(y + m.viewport.YOffset)
	if !ok || b.unit < 0 {
		return
	}
	s.Sequencer().ClickUnit(b.unit)
}

// currentText returns the text of the unit at the current index, or of
// the whole page.
func (m pagerModel) currentText() string {
	s := m.common.session
	if u, ok := s.Catalog().At(s.Sequencer().State().Index); ok {
		return strings.Join(strings.Fields(u.Node().Text()), " ")
	}
	if doc := s.Document(); doc != nil {
		return strings.Join(strings.Fields(doc.Main().Text()), " ")
	}
	return ""
}

// pagePath returns the file of the current page for local bundles.
func (m pagerModel) pagePath() (string, bool) {
	s := m.common.session
	loc := s.Bundle().Location()
	if content.IsRemote(loc) {
		return "", false
	}
	pages := s.Bundle().Pages()
	i := s.Page()
	if i < 0 || i >= len(pages) {
		return "", false
	}
	return filepath.Join(loc, filepath.FromSlash(pages[i])), true
}

func hasDefinition(s *reader.Session) bool {
	_, ok := s.Definition()
	return ok
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (m pagerModel) View() string {
	var b strings.Builder
	body := m.viewport.View()
	body = m.overlayPopup(body)
	body = m.overlayDefinition(body)
	fmt.Fprint(&b, body+"\n")

	// Footer
	m.statusBarView(&b)

	if m.showHelp {
		fmt.Fprint(&b, "\n"+m.helpView())
	}

	return b.String()
}

// overlayPopup draws the caption popup over the page.
func (m pagerModel) overlayPopup(body string) string {
	s := m.common.session
	pop, ok := s.Popups().Current()
	if !ok {
		return body
	}
	text := pop.Text
	if c, ok := s.Synchronizer().Snapshot(pop.ContainerID); ok {
		text = highlight.Render(c)
	}
	return overlay(body, pop.Render(text), pop.Rect.X, pop.Rect.Y)
}

// overlayDefinition draws the open glossary definition over the bottom
// of the page.
func (m pagerModel) overlayDefinition(body string) string {
	e, ok := m.common.session.Definition()
	if !ok {
		return body
	}
	width := m.viewport.Width
	if limit := int(m.common.cfg.MaxWidth); limit > 0 && width > limit { //nolint:gosec
		width = limit
	}
	out, err := glossary.Render(e, m.common.cfg.GlamourStyle, width)
	if err != nil {
		log.Error("error rendering definition", "term", e.Term, "error", err)
		out = e.Term + ": " + e.Definition
	}
	out = definitionStyle.Width(m.viewport.Width).Render(out + "\n" + subtleStyle.Render("esc close"))
	y := max(0, m.viewport.Height-lipgloss.Height(out))
	return overlay(body, out, 0, y)
}

// overlay places box over base with its top left corner at (x, y).
// Lines of base under the box keep only their part left of x.
func overlay(base, box string, x, y int) string {
	lines := strings.Split(base, "\n")
	for i, l := range strings.Split(box, "\n") {
		row := y + i
		if row < 0 {
			continue
		}
		for row >= len(lines) {
			lines = append(lines, "")
		}
		left := truncate.String(lines[row], uint(max(0, x))) //nolint:gosec
		if pad := x - ansi.PrintableRuneWidth(left); pad > 0 {
			left += strings.Repeat(" ", pad)
		}
		lines[row] = left + l
	}
	return strings.Join(lines, "\n")
}

func (m pagerModel) statusBarView(b *strings.Builder) {
	s := m.common.session
	showStatusMessage := m.state == pagerStateStatusMessage

	// Logo
	logo := logoView()

	// Playback
	st := s.Sequencer().State()
	var word string
	if c, ok := s.Synchronizer().Current(); ok {
		if span, ok := c.ActiveSpan(); ok {
			word = span.Text
		}
	}
	spin := ""
	if st.Playing {
		spin = m.spinner.View()
	}
	pb := statusBarPlaybackStyle(" " + newPlaybackStatus(st, s.Catalog().Len(), word).compact(spin) + " ")

	// Scroll percent
	percent := math.Max(0, math.Min(1, m.viewport.ScrollPercent()))
	scrollPercent := statusBarNoteStyle(fmt.Sprintf(" %3.f%% ", percent*100))

	// "Help" note
	var helpNote string
	if showStatusMessage {
		helpNote = statusBarMessageHelpStyle(" ? Help ")
	} else {
		helpNote = statusBarHelpStyle(" ? Help ")
	}

	// Note
	var note string
	if showStatusMessage {
		note = m.statusMessage
	} else {
		note = fmt.Sprintf("%s · p. %d/%d · %s",
			s.Bundle().Manifest.Title,
			s.Page()+1, len(s.Bundle().Pages()),
			modesNote(s.Modes()),
		)
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(pb)-
			ansi.PrintableRuneWidth(scrollPercent)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)

	style := statusBarNoteStyle
	if showStatusMessage {
		style = statusBarMessageStyle
		if m.statusIsError {
			style = statusBarErrorStyle
		}
	}
	note = style(note)

	// Empty space
	padding := max(0,
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(pb)-
			ansi.PrintableRuneWidth(scrollPercent)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := style(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s%s%s",
		logo,
		note,
		emptySpace,
		pb,
		scrollPercent,
		helpNote,
	)
}

func (m pagerModel) helpView() (s string) {
	col1 := []string{
		"space   play/stop",
		"enter   read current",
		"n/→     next",
		"p/←     previous",
		"s       stop",
		"+/-     speed",
		"tab     glossary terms",
	}
	col2 := []string{
		"[/]     previous/next page",
		"e       easy-read",
		"i       describe images",
		"a       autoplay",
		"l       language",
		"c       copy text",
		"o       edit page",
	}
	col3 := []string{
		"k/↑      up",
		"j/↓      down",
		"g/home   top",
		"G/end    bottom",
		"r        reload",
		"esc      close",
		"q        quit",
	}

	s += "\n"
	for i := range col1 {
		s += fmt.Sprintf("%-26s%-30s%s\n", col1[i], col2[i], col3[i])
	}
	s = strings.TrimSuffix(s, "\n")

	s = indent(s, 2)

	// Fill up empty cells with spaces for background coloring
	if m.common.width > 0 {
		lines := strings.Split(s, "\n")
		for i := 0; i < len(lines); i++ {
			l := runewidth.StringWidth(lines[i])
			n := max(m.common.width-l, 0)
			lines[i] += strings.Repeat(" ", n)
		}

		s = strings.Join(lines, "\n")
	}

	return helpViewStyle(s)
}

// COMMANDS

func reloadPage(s *reader.Session) tea.Cmd {
	return func() tea.Msg {
		if err := s.Reload(); err != nil {
			return errMsg{err}
		}
		return pageLoadedMsg{}
	}
}

func openEditor(path string) tea.Cmd {
	c, err := editor.Cmd("Read Along", path)
	if err != nil {
		return func() tea.Msg { return errMsg{err} }
	}
	return tea.ExecProcess(c, func(err error) tea.Msg {
		return editorFinishedMsg{err}
	})
}

func (m *pagerModel) initWatcher() {
	var err error
	m.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		log.Error("error creating fsnotify watcher", "error", err)
	}
}

// watchDir adds the directory of the current page to the watcher.
func (m *pagerModel) watchDir() bool {
	if m.watcher == nil {
		return false
	}
	path, ok := m.pagePath()
	if !ok {
		return false
	}
	dir := filepath.Dir(path)
	if err := m.watcher.Add(dir); err != nil {
		log.Error("error adding dir to fsnotify watcher", "error", err)
		return false
	}
	log.Info("fsnotify watching dir", "dir", dir)
	return true
}

// watchPage blocks until the current page is written to, then asks for
// a reload.
func (m *pagerModel) watchPage() tea.Msg {
	if !m.watchDir() {
		return nil
	}

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			current, _ := m.pagePath()
			if filepath.Clean(event.Name) != filepath.Clean(current) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			return reloadMsg{}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("fsnotify error", "error", err)
		}
	}
}
