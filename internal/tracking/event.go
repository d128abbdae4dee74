// Package tracking records partner click-throughs.
package tracking

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidEvent is returned for click events missing required fields.
var ErrInvalidEvent = errors.New("tracking: invalid click event")

// ClickEvent is one click-through to a partner site.
type ClickEvent struct {
	EventID    string         `json:"eventId"`
	Partner    string         `json:"partner"`
	FlightID   string         `json:"flightId,omitempty"`
	SearchID   string         `json:"searchId,omitempty"`
	Origin     string         `json:"origin,omitempty"`
	Dest       string         `json:"destination,omitempty"`
	Price      int            `json:"price,omitempty"`
	Position   int            `json:"position,omitempty"`
	Label      string         `json:"label,omitempty"`
	ClientHash string         `json:"clientHash,omitempty"`
	RequestID  string         `json:"requestId,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Validate checks the fields a click event must carry.
func (e ClickEvent) Validate() error {
	if strings.TrimSpace(e.Partner) == "" {
		return errors.Join(ErrInvalidEvent, errors.New("partner is required"))
	}
	if e.FlightID == "" && e.SearchID == "" {
		return errors.Join(ErrInvalidEvent, errors.New("flightId or searchId is required"))
	}
	if e.Price < 0 || e.Position < 0 {
		return errors.Join(ErrInvalidEvent, errors.New("price and position cannot be negative"))
	}
	return nil
}
