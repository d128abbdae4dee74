package tracking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// Observer receives click telemetry.
type Observer interface {
	ObserveClick(partner string, err error)
}

// Tracker accepts click events and hands them to its sinks in the background.
type Tracker struct {
	sinks    []Sink
	observer Observer
	now      func() time.Time
	logger   zerolog.Logger
	wg       sync.WaitGroup
}

// NewTracker constructs a Tracker. The observer may be nil.
func NewTracker(observer Observer, logger zerolog.Logger, sinks ...Sink) *Tracker {
	return &Tracker{
		sinks:    sinks,
		observer: observer,
		now:      time.Now,
		logger:   logger.With().Str("component", "tracking").Logger(),
	}
}

// Track validates and stamps event, then publishes it asynchronously. It
// returns the assigned event id.
func (t *Tracker) Track(ctx context.Context, event ClickEvent) (string, error) {
	if err := event.Validate(); err != nil {
		return "", err
	}
	event.EventID = uuid.NewString()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = t.now().UTC()
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		t.publish(pubCtx, event)
	}()
	return event.EventID, nil
}

func (t *Tracker) publish(ctx context.Context, event ClickEvent) {
	var firstErr error
	for _, sink := range t.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			t.logger.Error().Err(err).Str("event_id", event.EventID).Msg("click sink failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if t.observer != nil {
		t.observer.ObserveClick(event.Partner, firstErr)
	}
}

// Close waits for in-flight events and closes the sinks.
func (t *Tracker) Close() error {
	t.wg.Wait()
	var firstErr error
	for _, sink := range t.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close click sink: %w", err)
		}
	}
	return firstErr
}
