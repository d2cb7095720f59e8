package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// BrokerConfig carries what the broker needs to reach NATS
type BrokerConfig struct {
	URL      string
	Username string
	Password string
	Stream   string
}

// NatsBroker publishes photo events on a JetStream stream
type NatsBroker struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	config BrokerConfig
}

// NewNatsBroker connects to NATS and makes sure the photo stream exists
func NewNatsBroker(ctx context.Context, cfg BrokerConfig) (*NatsBroker, error) {
	client := &NatsBroker{
		config: cfg,
	}

	if err := client.connect(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := client.EnsureStream(ctx, cfg.Stream, []string{SubjectAll}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ensuring stream %s: %w", cfg.Stream, err)
	}

	return client, nil
}

func (c *NatsBroker) connect() error {
	var err error

	opts := []nats.Option{
		nats.Name("photo-storage-gateway"),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("server", nc.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			event := log.Error().Err(err)
			if sub != nil {
				event = event.Str("subject", sub.Subject)
			}
			event.Msg("NATS async error")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info().Msg("NATS connection closed")
		}),
	}

	if c.config.Username != "" && c.config.Password != "" {
		opts = append(opts, nats.UserInfo(c.config.Username, c.config.Password))
	}

	c.conn, err = nats.Connect(c.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(c.conn)
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}
	c.js = js

	log.Info().Str("server", c.conn.ConnectedUrl()).Msg("Connected to NATS")
	return nil
}

// Close drains the connection
func (c *NatsBroker) Close() error {
	if c.conn != nil && c.conn.IsConnected() {
		return c.conn.Drain()
	}
	return nil
}

// PublishSync publishes a message to a subject and waits for an acknowledgement
func (c *NatsBroker) PublishSync(ctx context.Context, subject string, data []byte) error {
	if c.js == nil {
		return fmt.Errorf("JetStream not initialized")
	}

	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", subject, err)
	}

	log.Debug().Str("subject", subject).Msg("Published message to NATS and received ack")
	return nil
}

// EnsureStream creates the stream or adds missing subjects to an existing one
func (c *NatsBroker) EnsureStream(ctx context.Context, name string, subjects []string) (jetstream.Stream, error) {
	if c.js == nil {
		return nil, fmt.Errorf("JetStream not initialized")
	}

	stream, err := c.js.Stream(ctx, name)
	if err != nil {
		if !errors.Is(err, jetstream.ErrStreamNotFound) {
			log.Error().Err(err).Str("stream_name", name).Msg("Failed to get stream")
			return nil, err
		}
		return c.createStream(ctx, jetstream.StreamConfig{
			Name:     name,
			Subjects: subjects,
		})
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream info: %w", err)
	}

	cfg, changed := mergeSubjects(info.Config, subjects)
	if !changed {
		log.Debug().Str("stream_name", name).Msg("No new subjects to add to stream")
		return stream, nil
	}

	log.Info().Strs("subjects", cfg.Subjects).Str("stream_name", name).Msg("Updating stream with new subjects")
	return c.createStream(ctx, cfg)
}

func (c *NatsBroker) createStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	stream, err := c.js.CreateOrUpdateStream(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Str("stream", cfg.Name).Msg("Failed to create or update stream")
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	log.Info().
		Str("name", cfg.Name).
		Strs("subjects", cfg.Subjects).
		Msg("JetStream stream ready")

	return stream, nil
}

// mergeSubjects appends subjects the stream does not carry yet
func mergeSubjects(cfg jetstream.StreamConfig, subjects []string) (jetstream.StreamConfig, bool) {
	existing := make(map[string]struct{}, len(cfg.Subjects))
	for _, s := range cfg.Subjects {
		existing[s] = struct{}{}
	}

	merged := append([]string(nil), cfg.Subjects...)
	changed := false
	for _, s := range subjects {
		if _, ok := existing[s]; ok {
			continue
		}
		existing[s] = struct{}{}
		merged = append(merged, s)
		changed = true
	}

	cfg.Subjects = merged
	return cfg, changed
}
