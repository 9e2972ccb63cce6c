// Package cache stores fetched textbook resources (pages, translation and
// timecode files, audio clips) in a two-level cache: an in-memory LRU in
// front of a zstd-compressed disk store.
package cache
