package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/faiface/beep"
)

// wavClip builds a 16-bit PCM wav file holding n mono samples.
func wavClip(rate, n int) []byte {
	var buf bytes.Buffer
	put := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	dataLen := uint32(n * 2) //nolint:gosec
	buf.WriteString("RIFF")
	put(36 + dataLen)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	put(uint32(16))
	// PCM, mono
	put(uint16(1))
	put(uint16(1))
	put(uint32(rate))     //nolint:gosec
	put(uint32(rate * 2)) //nolint:gosec
	put(uint16(2))
	put(uint16(16))
	buf.WriteString("data")
	put(dataLen)
	for i := range n {
		put(int16(i % 100 * 100)) //nolint:gosec
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, _, err := Decode("a.mp3", nil)
		if !errors.Is(err, ErrEmptyClip) {
			t.Errorf("expected ErrEmptyClip, got %v", err)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		_, _, err := Decode("a.ogg", []byte("OggS...."))
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("expected ErrUnsupportedFormat, got %v", err)
		}
	})

	t.Run("wav sniffed without extension", func(t *testing.T) {
		s, f, err := Decode("https://example.com/clip?id=1", wavClip(44100, 441))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		defer s.Close() //nolint:errcheck

		if f.SampleRate != 44100 {
			t.Errorf("expected 44100 Hz, got %d", f.SampleRate)
		}
		if s.Len() != 441 {
			t.Errorf("expected 441 samples, got %d", s.Len())
		}
	})
}

func TestPCMReader(t *testing.T) {
	s, _, err := Decode("clip.wav", wavClip(44100, 1000))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	defer s.Close() //nolint:errcheck

	tests := []struct {
		name     string
		channels int
	}{
		{"mono", 1},
		{"stereo", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Seek(0); err != nil {
				t.Fatalf("Seek failed: %v", err)
			}
			r := newPCMReader(s, s, tt.channels)
			data, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if want := 1000 * tt.channels * 2; len(data) != want {
				t.Errorf("expected %d bytes, got %d", want, len(data))
			}
			pos, drained := r.position()
			if pos != 1000 || !drained {
				t.Errorf("position() = (%d, %v), want (1000, true)", pos, drained)
			}
		})
	}
}

func TestToInt16Clamps(t *testing.T) {
	if got := toInt16(2); got != 32767 {
		t.Errorf("toInt16(2) = %d", got)
	}
	if got := toInt16(-2); got != -32767 {
		t.Errorf("toInt16(-2) = %d", got)
	}
	if got := toInt16(0); got != 0 {
		t.Errorf("toInt16(0) = %d", got)
	}
}

func TestSpeedStreamPassthrough(t *testing.T) {
	s, _, err := Decode("clip.wav", wavClip(44100, 10))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	defer s.Close() //nolint:errcheck

	if got := speedStream(s, 44100, 44100, 1); got != beep.Streamer(s) {
		t.Error("expected the source stream to be returned unchanged")
	}
	if got := speedStream(s, 44100, 44100, 2); got == beep.Streamer(s) {
		t.Error("expected a resampler at speed 2")
	}
}
