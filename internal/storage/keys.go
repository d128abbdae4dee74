package storage

import (
	"strings"
	"time"
)

// Key namespaces. They are persisted and must stay stable across releases.
const (
	PriceHistoryNamespace = "price-history"
	FlightNamespace       = "flight"
	SessionNamespace      = "session"
	SearchNamespace       = "search"
	RateLimitNamespace    = "ratelimit"
)

// MonthLayout formats the month component of price-history keys.
const MonthLayout = "2006-01"

// Keyspace builds store keys under an optional deployment prefix.
type Keyspace struct {
	Prefix string
}

// PriceHistory returns price-history:{origin}-{destination}-{YYYY-MM}.
func (k Keyspace) PriceHistory(origin, destination string, month time.Time) string {
	return k.join(PriceHistoryNamespace, strings.ToUpper(origin)+"-"+strings.ToUpper(destination)+"-"+month.UTC().Format(MonthLayout))
}

// Flight returns the key of a cached flight offer.
func (k Keyspace) Flight(id string) string {
	return k.join(FlightNamespace, id)
}

// Session returns the key of a search session.
func (k Keyspace) Session(id string) string {
	return k.join(SessionNamespace, id)
}

// Search returns the key of a cached search result.
func (k Keyspace) Search(hash string) string {
	return k.join(SearchNamespace, hash)
}

// RateLimit returns the key of a fixed window counter.
func (k Keyspace) RateLimit(policy, clientHash string) string {
	return k.join(RateLimitNamespace, policy+":"+clientHash)
}

func (k Keyspace) join(namespace, id string) string {
	return k.Prefix + namespace + ":" + id
}
