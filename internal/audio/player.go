package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
	"github.com/faiface/beep"
)

// Loader fetches the bytes of a clip source.
type Loader func(ctx context.Context, src string) ([]byte, error)

// PlayerConfig configures the audio device.
type PlayerConfig struct {
	SampleRate int // 44100 or 48000 Hz
	Channels   int // 1 or 2
	BufferSize int // device buffer in bytes
}

// DefaultPlayerConfig returns the default device configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 44100,
		Channels:   2,
		BufferSize: 8192,
	}
}

func validateConfig(cfg PlayerConfig) error {
	if cfg.SampleRate != 44100 && cfg.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", cfg.SampleRate)
	}
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", cfg.Channels)
	}
	if cfg.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	return nil
}

// bytesPerSecond of 16-bit PCM at the configured rate.
func (cfg PlayerConfig) bytesPerSecond() float64 {
	return float64(cfg.SampleRate * cfg.Channels * 2)
}

// OtoBackend plays clips on the system audio device. Clips are decoded
// with beep, resampled to the device rate (which also applies the speed)
// and streamed to oto as 16-bit PCM.
type OtoBackend struct {
	ctx  *oto.Context
	cfg  PlayerConfig
	load Loader
}

// NewOtoBackend opens the audio device. Only one may exist per process.
func NewOtoBackend(cfg PlayerConfig, load Loader) (*OtoBackend, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(float64(cfg.BufferSize) / cfg.bytesPerSecond() * float64(time.Second)),
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("unable to create audio context: %w", err)
	}
	<-ready

	log.Debug("audio device ready", "rate", cfg.SampleRate, "channels", cfg.Channels)
	return &OtoBackend{ctx: ctx, cfg: cfg, load: load}, nil
}

// Start implements Backend.
func (b *OtoBackend) Start(ctx context.Context, src string, speed float64) (Voice, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, fmt.Errorf("audio device unavailable: %w", err)
	}
	if speed <= 0 {
		speed = 1
	}

	data, err := b.load(ctx, src)
	if err != nil {
		return nil, err
	}
	source, format, err := Decode(src, data)
	if err != nil {
		return nil, err
	}

	stream := speedStream(source, format.SampleRate, beep.SampleRate(b.cfg.SampleRate), speed)
	reader := newPCMReader(stream, source, b.cfg.Channels)
	player := b.ctx.NewPlayer(reader)
	player.SetBufferSize(b.cfg.BufferSize)
	player.Play()

	v := &otoVoice{
		player:      player,
		source:      source,
		reader:      reader,
		format:      format,
		speed:       speed,
		bytesPerSec: b.cfg.bytesPerSecond(),
		done:        make(chan struct{}),
	}
	go v.watch()
	return v, nil
}

type otoVoice struct {
	player      *oto.Player
	source      beep.StreamSeekCloser
	reader      *pcmReader
	format      beep.Format
	speed       float64
	bytesPerSec float64

	mu   sync.Mutex
	err  error
	once sync.Once
	done chan struct{}
}

// Position is the source position minus what still sits in the device
// buffer, converted back to media time.
func (v *otoVoice) Position() time.Duration {
	n, _ := v.reader.position()
	read := v.format.SampleRate.D(n)
	buffered := time.Duration(float64(v.player.BufferedSize()) / v.bytesPerSec * v.speed * float64(time.Second))
	return max(0, read-buffered)
}

func (v *otoVoice) Done() <-chan struct{} { return v.done }

func (v *otoVoice) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

func (v *otoVoice) Stop() {
	v.finish(nil)
}

func (v *otoVoice) watch() {
	t := time.NewTicker(20 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-v.done:
			return
		case <-t.C:
			if err := v.player.Err(); err != nil {
				v.finish(err)
				return
			}
			if _, eof := v.reader.position(); eof && !v.player.IsPlaying() {
				v.finish(nil)
				return
			}
		}
	}
}

func (v *otoVoice) finish(err error) {
	v.once.Do(func() {
		v.mu.Lock()
		v.err = err
		v.mu.Unlock()

		v.player.Pause()
		if cerr := v.player.Close(); cerr != nil {
			log.Debug("unable to close player", "error", cerr)
		}
		if cerr := v.source.Close(); cerr != nil {
			log.Debug("unable to close decoder", "error", cerr)
		}
		close(v.done)
	})
}
