// Package catalog builds the ordered list of speakable units for the
// current page and mode.
package catalog

import (
	"strconv"

	"github.com/dgnsrekt/readalong/internal/page"
)

// Kind tags a unit variant.
type Kind int

const (
	KindText Kind = iota
	KindInput
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInput:
		return "input"
	case KindImage:
		return "image"
	}
	return "unknown"
}

// Unit is one speakable element. Units borrow their page node and must
// not outlive the page render they were built from.
type Unit interface {
	// ID is the resolved identifier used for audio and timecode lookups.
	ID() string
	// BaseID is the element's own identifier before easy-read or aria
	// substitution.
	BaseID() string
	Source() string
	Kind() Kind
	Node() page.Node
}

type base struct {
	id, baseID, src string
	node            page.Node
}

func (b base) ID() string      { return b.id }
func (b base) BaseID() string  { return b.baseID }
func (b base) Source() string  { return b.src }
func (b base) Node() page.Node { return b.node }

// TextUnit is a block of readable text.
type TextUnit struct {
	base
	Heading bool
}

// Kind implements Unit.
func (TextUnit) Kind() Kind { return KindText }

// InputUnit is a text entry field, read through its placeholder.
type InputUnit struct {
	base
}

// Kind implements Unit.
func (InputUnit) Kind() Kind { return KindInput }

// ImageUnit is an image with a spoken description. Its words are shown
// in a caption popup anchored to the image.
type ImageUnit struct {
	base
	Alt   string
	Width int // rendered width hint in cells, 0 when unknown
}

// Kind implements Unit.
func (ImageUnit) Kind() Kind { return KindImage }

func newImageUnit(b base) ImageUnit {
	u := ImageUnit{base: b}
	u.Alt, _ = b.node.Attr("alt")
	if w, ok := b.node.Attr("width"); ok {
		if px, err := strconv.Atoi(w); err == nil && px > 0 {
			// Roughly 8 pixels per terminal cell.
			u.Width = max(1, px/8)
		}
	}
	return u
}
