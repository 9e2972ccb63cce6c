// Package audio plays speakable-unit clips. A Clip is one generation-tagged
// playback that reports its media time while sounding; a Backend turns clip
// sources into audible voices. OtoBackend decodes mp3/wav with beep and
// streams PCM to the system device through oto/v3.
package audio
