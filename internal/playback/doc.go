// Package playback sequences unit clips through a page. A Sequencer owns
// the playback state: the current index, the navigation direction and the
// single live clip. It walks the catalog in document order, skips image
// units unless images are described, and hands every clip to a
// Highlighter before it sounds.
package playback
