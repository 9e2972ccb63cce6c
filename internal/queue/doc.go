// Package queue prefetches clip audio ahead of the playback sequencer.
// Upcoming units are fetched in the background, clips the user jumps to
// take priority, and fetched data is held in memory until it is played.
package queue
