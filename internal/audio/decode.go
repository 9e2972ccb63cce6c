package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"sync"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// resampleQuality is passed to beep's resampler (1-64).
const resampleQuality = 4

// Decode decodes an mp3 or wav clip. The format is chosen from the
// source extension and falls back to sniffing the header.
func Decode(src string, data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	if len(data) == 0 {
		return nil, beep.Format{}, ErrEmptyClip
	}

	kind := strings.ToLower(path.Ext(src))
	if kind != ".mp3" && kind != ".wav" {
		switch {
		case bytes.HasPrefix(data, []byte("RIFF")):
			kind = ".wav"
		case bytes.HasPrefix(data, []byte("ID3")), len(data) > 1 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
			kind = ".mp3"
		}
	}

	switch kind {
	case ".mp3":
		s, f, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("unable to decode mp3: %w", err)
		}
		return s, f, nil
	case ".wav":
		s, f, err := wav.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("unable to decode wav: %w", err)
		}
		return s, f, nil
	}
	return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, src)
}

// pcmReader turns a beep stream into signed 16-bit little-endian PCM for
// oto. It also remembers how far the underlying source has been read.
type pcmReader struct {
	stream   beep.Streamer
	source   beep.StreamSeeker
	channels int

	mu      sync.Mutex
	samples [][2]float64
	pending []byte
	srcPos  int
	eof     bool
}

func newPCMReader(stream beep.Streamer, source beep.StreamSeeker, channels int) *pcmReader {
	return &pcmReader{
		stream:   stream,
		source:   source,
		channels: channels,
		samples:  make([][2]float64, 512),
	}
}

func (r *pcmReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.pending) == 0 {
		if r.eof {
			return 0, io.EOF
		}
		n, ok := r.stream.Stream(r.samples)
		r.srcPos = r.source.Position()
		if !ok || n == 0 {
			r.eof = true
			if err := r.stream.Err(); err != nil {
				return 0, err
			}
			continue
		}
		r.pending = r.encode(r.samples[:n])
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *pcmReader) encode(samples [][2]float64) []byte {
	out := make([]byte, 0, len(samples)*r.channels*2)
	for _, s := range samples {
		if r.channels == 1 {
			out = binary.LittleEndian.AppendUint16(out, uint16(toInt16((s[0]+s[1])/2))) //nolint:gosec
			continue
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(toInt16(s[0]))) //nolint:gosec
		out = binary.LittleEndian.AppendUint16(out, uint16(toInt16(s[1]))) //nolint:gosec
	}
	return out
}

func toInt16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(v * math.MaxInt16)
}

// position returns how many source samples have been consumed and
// whether the source is exhausted.
func (r *pcmReader) position() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.srcPos, r.eof && len(r.pending) == 0
}

// speedStream resamples a clip to the device rate and applies the
// playback speed in one step.
func speedStream(s beep.Streamer, from, to beep.SampleRate, speed float64) beep.Streamer {
	if from == to && speed == 1 {
		return s
	}
	return beep.ResampleRatio(resampleQuality, float64(from)/float64(to)*speed, s)
}
