package popup

import "sync"

// Rect is a cell rectangle on screen.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Contains reports whether the cell (x, y) lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Layout tells the presenter where things are on screen.
type Layout interface {
	// Viewport is the visible area in cells.
	Viewport() (width, height int)
	// AnchorRect locates a rendered anchor image.
	AnchorRect(anchorID string) (Rect, bool)
}

// Screen is a Layout the front end updates after each render.
type Screen struct {
	mu      sync.RWMutex
	width   int
	height  int
	anchors map[string]Rect
}

// NewScreen creates a screen of the given size with no anchors.
func NewScreen(width, height int) *Screen {
	return &Screen{width: width, height: height, anchors: map[string]Rect{}}
}

// SetSize records a new viewport size.
func (s *Screen) SetSize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
}

// SetAnchors replaces the known anchor positions.
func (s *Screen) SetAnchors(anchors map[string]Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors = make(map[string]Rect, len(anchors))
	for k, v := range anchors {
		s.anchors[k] = v
	}
}

// Viewport implements Layout.
func (s *Screen) Viewport() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}

// AnchorRect implements Layout.
func (s *Screen) AnchorRect(id string) (Rect, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.anchors[id]
	return r, ok
}

// AnchorAt returns the anchor under the cell (x, y).
func (s *Screen) AnchorAt(x, y int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, r := range s.anchors {
		if r.Contains(x, y) {
			return id, true
		}
	}
	return "", false
}
