package storage

import (
	"time"
)

// PriceSample is one observed fare for a route, filed under its month bucket.
type PriceSample struct {
	BucketKey   string
	Origin      string
	Destination string
	Month       string
	Price       int
	ObservedAt  time.Time
}

// BucketStats is the running rollup of a price-history bucket.
type BucketStats struct {
	Key         string
	Origin      string
	Destination string
	Month       string
	SampleCount int64
	MinPrice    int
	PriceSum    int64
	FirstSeen   time.Time
	LastSeen    time.Time
	ExpiresAt   time.Time
}

// Window is the state of one fixed rate-limit window.
type Window struct {
	Hits  int64
	Start time.Time
}
