// Package events provides pub/sub messaging for pipeline lifecycle and
// detection notifications using an embedded NATS server.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// Subjects published by the service.
const (
	SubjectRunStarted  = "framesight.run.started"
	SubjectRunFinished = "framesight.run.finished"
	SubjectDetection   = "framesight.detection.found"
)

// BusConfig configures the embedded bus.
type BusConfig struct {
	// Host for the NATS server (default 127.0.0.1).
	Host string
	// Port for the NATS server; <= 0 selects a random free port.
	Port int
}

// Bus wraps an embedded NATS server plus a client connection.
type Bus struct {
	server *server.Server
	conn   *nats.Conn
	logger *slog.Logger

	subsMu sync.Mutex
	subs   []*nats.Subscription
}

// NewBus starts an embedded NATS server and connects to it.
func NewBus(cfg BusConfig) (*Bus, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = server.RANDOM_PORT
	}

	opts := &server.Options{
		Host:   cfg.Host,
		Port:   port,
		NoSigs: true,
		NoLog:  true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("creating NATS server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(2 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready after 2 seconds")
	}

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("connecting to embedded NATS: %w", err)
	}

	logger := slog.Default().With("component", "eventbus")
	logger.Info("Event bus started", "url", ns.ClientURL())

	return &Bus{server: ns, conn: nc, logger: logger}, nil
}

// Publish sends a JSON-encoded payload on a subject. Publishing is
// fire-and-forget; failures are logged, never fatal.
func (b *Bus) Publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := b.conn.Publish(subject, data); err != nil {
		b.logger.Warn("Publish failed", "subject", subject, "error", err)
		return err
	}
	return nil
}

// Subscribe registers a handler for a subject (NATS wildcards allowed).
func (b *Bus) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", subject, err)
	}

	b.subsMu.Lock()
	b.subs = append(b.subs, sub)
	b.subsMu.Unlock()
	return nil
}

// Flush waits until published messages have been processed by the
// server. Used by tests and shutdown.
func (b *Bus) Flush() error {
	return b.conn.Flush()
}

// Close drains subscriptions and shuts the embedded server down.
func (b *Bus) Close() {
	b.subsMu.Lock()
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil
	b.subsMu.Unlock()

	if b.conn != nil {
		b.conn.Close()
	}
	if b.server != nil {
		b.server.Shutdown()
	}
	b.logger.Info("Event bus stopped")
}
