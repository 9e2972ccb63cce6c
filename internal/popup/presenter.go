// Package popup shows the caption popup that carries the words of an
// image unit while its description plays.
package popup

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/wordwrap"
)

// Phase is the visibility stage of a popup.
type Phase int

const (
	FadingIn Phase = iota
	Visible
	FadingOut
)

func (p Phase) String() string {
	switch p {
	case FadingIn:
		return "fading-in"
	case Visible:
		return "visible"
	case FadingOut:
		return "fading-out"
	}
	return "unknown"
}

// Popup is the caption bubble tied to one anchor image.
type Popup struct {
	ID          uint64 // Increments for every popup created
	AnchorID    string
	ContainerID string // Text area identifier for word highlighting
	Text        string
	Rect        Rect
	Phase       Phase
}

// ContainerPrefix prefixes popup text area identifiers.
const ContainerPrefix = "popup:"

// Config sizes and animates popups.
type Config struct {
	MinWidth int           // Narrowest popup in cells
	MaxWidth int           // Widest popup in cells
	Gap      int           // Rows between the anchor and the popup
	FadeIn   time.Duration // Zero shows the popup at once
	FadeOut  time.Duration // Zero removes the popup at once
}

// DefaultConfig returns the default popup configuration.
func DefaultConfig() Config {
	return Config{
		MinWidth: 24,
		MaxWidth: 64,
		Gap:      1,
		FadeIn:   150 * time.Millisecond,
		FadeOut:  150 * time.Millisecond,
	}
}

// Presenter owns the single caption popup.
type Presenter struct {
	layout Layout
	cfg    Config

	mu       sync.Mutex
	cur      *Popup
	widthFor int // width hint the current popup was created with
	nextID   uint64
	timer    *time.Timer
	onChange []func()
}

// NewPresenter creates a presenter that positions popups on layout.
func NewPresenter(layout Layout, cfg Config) *Presenter {
	if cfg.MinWidth <= 0 {
		cfg.MinWidth = 1
	}
	if cfg.MaxWidth < cfg.MinWidth {
		cfg.MaxWidth = cfg.MinWidth
	}
	return &Presenter{layout: layout, cfg: cfg}
}

// OnChange registers fn to run after every popup change.
func (p *Presenter) OnChange(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, fn)
}

// Create replaces any popup at once, without fading, with a new one
// below anchorID. widthHint is used when the layout does not know the
// anchor's width.
func (p *Presenter) Create(anchorID, text string, widthHint int) Popup {
	p.mu.Lock()
	p.stopTimerLocked()
	if p.cur != nil {
		log.Debug("replacing caption popup", "anchor", p.cur.AnchorID)
	}
	p.nextID++
	pop := &Popup{
		ID:          p.nextID,
		AnchorID:    anchorID,
		ContainerID: ContainerPrefix + anchorID,
		Text:        text,
		Phase:       FadingIn,
	}
	p.cur = pop
	p.widthFor = widthHint
	p.placeLocked()

	if p.cfg.FadeIn > 0 {
		id := pop.ID
		p.timer = time.AfterFunc(p.cfg.FadeIn, func() { p.settle(id) })
	} else {
		pop.Phase = Visible
	}
	out := *pop
	fns := p.onChange
	p.mu.Unlock()

	notify(fns)
	return out
}

func (p *Presenter) settle(id uint64) {
	p.mu.Lock()
	if p.cur == nil || p.cur.ID != id || p.cur.Phase != FadingIn {
		p.mu.Unlock()
		return
	}
	p.cur.Phase = Visible
	p.timer = nil
	fns := p.onChange
	p.mu.Unlock()
	notify(fns)
}

// Reposition recomputes the popup geometry after a resize. A popup whose
// anchor is no longer on screen keeps its last position.
func (p *Presenter) Reposition() {
	p.mu.Lock()
	if p.cur == nil {
		p.mu.Unlock()
		return
	}
	p.placeLocked()
	fns := p.onChange
	p.mu.Unlock()
	notify(fns)
}

// Dismiss fades out and removes popup id. Zero dismisses whatever popup
// is showing. Dismissing a popup that has been superseded does nothing.
func (p *Presenter) Dismiss(id uint64) bool {
	p.mu.Lock()
	if p.cur == nil || (id != 0 && p.cur.ID != id) || p.cur.Phase == FadingOut {
		p.mu.Unlock()
		return false
	}
	p.stopTimerLocked()
	if p.cfg.FadeOut > 0 {
		p.cur.Phase = FadingOut
		cur := p.cur.ID
		p.timer = time.AfterFunc(p.cfg.FadeOut, func() { p.remove(cur) })
	} else {
		p.cur = nil
	}
	fns := p.onChange
	p.mu.Unlock()

	notify(fns)
	return true
}

func (p *Presenter) remove(id uint64) {
	p.mu.Lock()
	if p.cur == nil || p.cur.ID != id {
		p.mu.Unlock()
		return
	}
	p.cur = nil
	p.timer = nil
	fns := p.onChange
	p.mu.Unlock()
	notify(fns)
}

// HandleClick dismisses the popup when a click at (x, y) lands outside
// both the popup and its anchor. target is the anchor image under the
// click, if any; clicks on another anchor leave the swap to the popup
// that anchor creates.
func (p *Presenter) HandleClick(x, y int, target string) bool {
	p.mu.Lock()
	cur := p.cur
	if cur == nil || cur.Rect.Contains(x, y) || target != "" {
		p.mu.Unlock()
		return false
	}
	if r, ok := p.layout.AnchorRect(cur.AnchorID); ok && r.Contains(x, y) {
		p.mu.Unlock()
		return false
	}
	id := cur.ID
	p.mu.Unlock()

	return p.Dismiss(id)
}

// Current returns the popup on screen, if any.
func (p *Presenter) Current() (Popup, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == nil {
		return Popup{}, false
	}
	return *p.cur, true
}

// Close drops the popup and any pending fade.
func (p *Presenter) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTimerLocked()
	p.cur = nil
}

func (p *Presenter) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// placeLocked sizes the popup from its anchor and centers it below,
// clamped horizontally to the viewport.
func (p *Presenter) placeLocked() {
	vw, _ := p.layout.Viewport()
	anchor, ok := p.layout.AnchorRect(p.cur.AnchorID)
	if !ok {
		anchor = Rect{Width: p.widthFor}
		if p.cur.Rect.Width > 0 {
			return
		}
	}

	w := max(p.cfg.MinWidth, min(anchor.Width, p.cfg.MaxWidth))
	if vw > 0 {
		w = min(w, vw)
	}

	x := anchor.X + anchor.Width/2 - w/2
	if vw > 0 {
		x = min(x, vw-w)
	}
	x = max(x, 0)

	p.cur.Rect = Rect{
		X:      x,
		Y:      anchor.Y + anchor.Height + p.cfg.Gap,
		Width:  w,
		Height: textHeight(p.cur.Text, w-frameWidth) + frameHeight,
	}
}

// Border plus horizontal padding.
const (
	frameWidth  = 4
	frameHeight = 2
)

func textHeight(text string, width int) int {
	if width <= 0 || text == "" {
		return 1
	}
	return strings.Count(wordwrap.String(text, width), "\n") + 1
}

var (
	popupStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#89F0CB"}).
			Padding(0, 1)

	fadingStyle = popupStyle.
			BorderForeground(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
			Faint(true)
)

// Render draws the popup frame around body, which the caller has
// already styled (with the highlighted word, for instance).
func (pop Popup) Render(body string) string {
	style := popupStyle
	if pop.Phase != Visible {
		style = fadingStyle
	}
	inner := max(1, pop.Rect.Width-frameWidth)
	lines := strings.Split(wordwrap.String(body, inner), "\n")
	for i, l := range lines {
		if pad := inner - ansi.PrintableRuneWidth(l); pad > 0 {
			lines[i] = l + strings.Repeat(" ", pad)
		}
	}
	return style.Render(strings.Join(lines, "\n"))
}

func notify(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
