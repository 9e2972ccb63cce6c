// Package bus publishes playback events on NATS so that other
// highlighters (a second window, a braille display bridge) can follow
// the reader, and lets them listen.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"github.com/dgnsrekt/readalong/internal/playback"
)

// ErrNoURL is returned by Connect when no server is configured.
var ErrNoURL = errors.New("no NATS url configured")

// Config holds bus settings.
type Config struct {
	URL     string        // Comma separated server URLs; empty disables the bus
	Subject string        // Subject prefix
	Timeout time.Duration // Connect timeout
}

// DefaultConfig returns the default bus configuration.
func DefaultConfig() Config {
	return Config{
		Subject: "readalong",
		Timeout: 2 * time.Second,
	}
}

// Message is the wire form of a playback event.
type Message struct {
	Session     string    `json:"session"`
	Book        string    `json:"book"`
	Type        string    `json:"type"`
	Unit        string    `json:"unit,omitempty"`
	Index       int       `json:"index"`
	Playing     bool      `json:"playing"`
	Speed       float64   `json:"speed"`
	Highlighted string    `json:"highlighted,omitempty"`
	Error       string    `json:"error,omitempty"`
	Time        time.Time `json:"time"`
}

// Publisher sends playback events for one reading session.
type Publisher struct {
	conn    *nats.Conn
	subject string
	book    string
	session string
	clock   func() time.Time

	mu     sync.Mutex
	failed int
}

// Connect dials the configured servers.
func Connect(cfg Config, book, session string) (*Publisher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrNoURL
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultConfig().Subject
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("readalong"),
		nats.Timeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	log.Info("connected to NATS", "servers", cfg.URL)

	return &Publisher{
		conn:    conn,
		subject: cfg.Subject,
		book:    book,
		session: session,
		clock:   time.Now,
	}, nil
}

// Subject returns the subject ev is published on.
func (p *Publisher) Subject(t playback.EventType) string {
	return p.subject + "." + p.session + "." + t.String()
}

// Publish sends ev. It has the signature Sequencer.Subscribe expects;
// failures are logged, never returned.
func (p *Publisher) Publish(ev playback.Event) {
	msg := Message{
		Session:     p.session,
		Book:        p.book,
		Type:        ev.Type.String(),
		Unit:        ev.Unit,
		Index:       ev.State.Index,
		Playing:     ev.State.Playing,
		Speed:       ev.State.Speed,
		Highlighted: ev.State.Highlighted,
		Time:        p.clock().UTC(),
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}

	data, err := json.Marshal(msg)
	if err == nil {
		err = p.conn.Publish(p.Subject(ev.Type), data)
	}
	if err != nil {
		p.mu.Lock()
		p.failed++
		p.mu.Unlock()
		log.Debug("publish playback event failed", "type", msg.Type, "error", err)
	}
}

// Failed returns how many events could not be published.
func (p *Publisher) Failed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// Flush waits until published events reached the server.
func (p *Publisher) Flush() error {
	return p.conn.Flush()
}

// Healthy reports whether the connection is up.
func (p *Publisher) Healthy() bool {
	return p != nil && p.conn != nil && p.conn.Status() == nats.CONNECTED
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// Follow subscribes to every session's playback events under subject
// and calls fn for each one. The returned func unsubscribes.
func Follow(conn *nats.Conn, subject string, fn func(Message)) (func(), error) {
	sub, err := conn.Subscribe(subject+".>", func(m *nats.Msg) {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			log.Debug("dropping malformed playback event", "subject", m.Subject, "error", err)
			return
		}
		fn(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}
