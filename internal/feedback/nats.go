// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// PublisherConfig configures the Watermill NATS publisher.
type PublisherConfig struct {
	URL             string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
}

// DefaultPublisherConfig returns reconnect settings suited to a long-lived
// publisher.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:             url,
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 * 1024 * 1024,
	}
}

// NewNATSPublisher creates a JetStream publisher. The stream must already
// exist; see StreamInitializer. Message ids are tracked for deduplication.
func NewNATSPublisher(cfg PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return pub, nil
}

// StreamConfig describes the JetStream stream events are published to.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	DuplicateWindow time.Duration
}

// defaultStreamMaxBytes caps the stream when the server limit is unknown.
const defaultStreamMaxBytes = 1 << 30

// DefaultStreamConfig returns a stream capturing topic for a week.
func DefaultStreamConfig(topic string) StreamConfig {
	return StreamConfig{
		Name:            "SMARTRANK_INTERACTIONS",
		Subjects:        []string{topic},
		MaxAge:          7 * 24 * time.Hour,
		MaxBytes:        defaultStreamMaxBytes,
		DuplicateWindow: 2 * time.Minute,
	}
}

// StreamConfigForStore returns DefaultStreamConfig sized to fit a server
// whose JetStream file store is limited to maxStore bytes. JetStream
// reserves MaxBytes up front, so the stream keeps a tenth of the store free.
func StreamConfigForStore(topic string, maxStore int64) StreamConfig {
	cfg := DefaultStreamConfig(topic)
	if maxStore > 0 {
		cfg.MaxBytes = min(cfg.MaxBytes, maxStore/10*9)
	}
	return cfg
}

// JetStreamContext is the subset of jetstream.JetStream used to manage the
// stream.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamInitializer creates or updates the interaction stream.
type StreamInitializer struct {
	js  JetStreamContext
	cfg StreamConfig
}

// NewStreamInitializer validates cfg.
func NewStreamInitializer(js JetStreamContext, cfg StreamConfig) (*StreamInitializer, error) {
	if js == nil {
		return nil, fmt.Errorf("feedback: JetStream context required")
	}
	if cfg.Name == "" || len(cfg.Subjects) == 0 {
		return nil, fmt.Errorf("feedback: stream name and subjects are required")
	}
	return &StreamInitializer{js: js, cfg: cfg}, nil
}

// EnsureStream creates the stream, or updates it when it already exists.
func (s *StreamInitializer) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:       s.cfg.Name,
		Subjects:   s.cfg.Subjects,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     s.cfg.MaxAge,
		MaxBytes:   s.cfg.MaxBytes,
		Duplicates: s.cfg.DuplicateWindow,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}

	_, err := s.js.Stream(ctx, s.cfg.Name)
	switch {
	case err == nil:
		stream, err := s.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", s.cfg.Name, err)
		}
		return stream, nil
	case errors.Is(err, jetstream.ErrStreamNotFound):
		stream, err := s.js.CreateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", s.cfg.Name, err)
		}
		return stream, nil
	default:
		return nil, fmt.Errorf("check stream %s: %w", s.cfg.Name, err)
	}
}

// EnsureStreamAt connects to url and ensures the stream exists.
func EnsureStreamAt(ctx context.Context, url string, cfg StreamConfig) error {
	nc, err := natsgo.Connect(url)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	si, err := NewStreamInitializer(js, cfg)
	if err != nil {
		return err
	}
	_, err = si.EnsureStream(ctx)
	return err
}

// ServerConfig configures the embedded NATS server.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// EmbeddedServer is an in-process NATS server with JetStream, for single
// node deployments without an external broker.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer starts the server and waits until it accepts clients.
func NewEmbeddedServer(cfg *ServerConfig) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName:         "smartrank-events",
		Host:               cfg.Host,
		Port:               cfg.Port,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.JetStreamMaxMem,
		JetStreamMaxStore:  cfg.JetStreamMaxStore,
		MaxPayload:         1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}
	ns.ConfigureLogger()
	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}
	return &EmbeddedServer{server: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the URL clients connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// IsRunning reports whether the server is running.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// Shutdown stops the server and waits for it to exit.
func (s *EmbeddedServer) Shutdown() {
	s.server.Shutdown()
	s.server.WaitForShutdown()
}
