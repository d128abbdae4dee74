package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"fareradar/internal/logging"
)

// Sink delivers click events downstream.
type Sink interface {
	Publish(ctx context.Context, event ClickEvent) error
	Close() error
}

// LogSink writes click events to the structured log.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "click_log").Logger()}
}

// Publish implements Sink.
func (s *LogSink) Publish(ctx context.Context, event ClickEvent) error {
	logClick(s.logger.Info(), event).Msg("partner click")
	return nil
}

// Close implements Sink.
func (s *LogSink) Close() error { return nil }

func logClick(e *zerolog.Event, event ClickEvent) *zerolog.Event {
	e = e.Str("event_id", event.EventID).
		Str("partner", event.Partner).
		Str("flight_id", event.FlightID).
		Str("search_id", event.SearchID).
		Str("route", event.Origin+"-"+event.Dest).
		Int("price", event.Price).
		Str("client_hash", event.ClientHash)
	if len(event.Metadata) > 0 {
		e = e.Interface("metadata", logging.Redact(event.Metadata))
	}
	return e
}

type publisher interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Drain() error
}

// NATSSink publishes click events as JSON on a NATS subject.
type NATSSink struct {
	conn    publisher
	subject string
	timeout time.Duration
	logger  zerolog.Logger
}

// NATSOptions configure the NATS connection.
type NATSOptions struct {
	URL     string
	Subject string
	Name    string
	Timeout time.Duration
}

// DialNATS connects to NATS and returns a sink publishing on opts.Subject.
func DialNATS(opts NATSOptions, logger zerolog.Logger) (*NATSSink, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	log := logger.With().Str("component", "click_nats").Logger()
	conn, err := nats.Connect(opts.URL,
		nats.Name(opts.Name),
		nats.Timeout(opts.Timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newNATSSink(conn, opts.Subject, opts.Timeout, log), nil
}

func newNATSSink(conn publisher, subject string, timeout time.Duration, logger zerolog.Logger) *NATSSink {
	return &NATSSink{conn: conn, subject: subject, timeout: timeout, logger: logger}
}

// Publish implements Sink. Metadata is redacted before it leaves the process.
func (s *NATSSink) Publish(ctx context.Context, event ClickEvent) error {
	event.Metadata = logging.Redact(event.Metadata)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal click event: %w", err)
	}
	if err := s.conn.Publish(s.subject, payload); err != nil {
		return fmt.Errorf("publish click event: %w", err)
	}
	s.logger.Debug().Str("event_id", event.EventID).Str("subject", s.subject).Msg("click event published")
	return nil
}

// Close flushes pending messages and drains the connection.
func (s *NATSSink) Close() error {
	if err := s.conn.FlushTimeout(s.timeout); err != nil {
		s.logger.Warn().Err(err).Msg("nats flush failed")
	}
	return s.conn.Drain()
}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = (*NATSSink)(nil)
)
