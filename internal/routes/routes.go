// Package routes builds the popular and holiday-driven route cards shown on the
// home page.
package routes

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fareradar/internal/insight"
	"fareradar/internal/pricehistory"
)

// Limits for PopularRoutes.
const (
	DefaultLimit = 6
	MaxLimit     = 12
)

// Smart route defaults.
const (
	DefaultOrigin          = "GRU"
	HolidayHorizon         = 120 * 24 * time.Hour
	MaxHolidays            = 3
	DestinationsPerHoliday = 4
)

const priceLookupConcurrency = 4

// PriceSource is the slice of the price history service route cards need.
type PriceSource interface {
	GetPriceHistoryForRoute(ctx context.Context, origin, destination string, windowDays int) (pricehistory.Aggregate, error)
}

// Meta describes when a response was built and the sample gate in force.
type Meta struct {
	FetchedAt          time.Time `json:"fetchedAt"`
	MinSamplesRequired int       `json:"minSamplesRequired"`
}

// PopularRouteCard is one curated route.
type PopularRouteCard struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	LabelCity   string   `json:"labelCity"`
	Country     string   `json:"country"`
	Price       *int     `json:"price,omitempty"`
	Meta        CardMeta `json:"meta"`
}

// SmartRouteCard is a destination suggested for an upcoming holiday.
type SmartRouteCard struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	LabelCity   string   `json:"labelCity"`
	Country     string   `json:"country"`
	Price       *int     `json:"price,omitempty"`
	Meta        CardMeta `json:"meta"`
}

// CardMeta carries per-card context.
type CardMeta struct {
	Priority    int    `json:"priority,omitempty"`
	SampleCount int64  `json:"sampleCount"`
	HolidayID   string `json:"holidayId,omitempty"`
	HolidayName string `json:"holidayName,omitempty"`
	DepartDate  string `json:"departDate,omitempty"`
	ReturnDate  string `json:"returnDate,omitempty"`
}

// PopularResponse is the result of PopularRoutes.
type PopularResponse struct {
	Routes []PopularRouteCard `json:"routes"`
	Meta   Meta               `json:"meta"`
}

// Origin identifies the requesting airport.
type Origin struct {
	Code string `json:"code"`
	City string `json:"city"`
}

// SmartResponse is the result of SmartPopularRoutes.
type SmartResponse struct {
	Routes   []SmartRouteCard `json:"routes"`
	Origin   Origin           `json:"origin"`
	Holidays []Holiday        `json:"holidays"`
	Meta     Meta             `json:"meta"`
}

// Service assembles route cards.
type Service struct {
	prices PriceSource
	routes []CuratedRoute
	now    func() time.Time
	logger zerolog.Logger
}

// New constructs a Service over the built-in curated routes.
func New(prices PriceSource, logger zerolog.Logger) *Service {
	return &Service{
		prices: prices,
		routes: CuratedRoutes(),
		now:    time.Now,
		logger: logger.With().Str("component", "routes").Logger(),
	}
}

// ClampLimit bounds limit to [1, MaxLimit]; zero selects DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLimit
	case limit < 1:
		return 1
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// PopularRoutes returns up to limit enabled curated routes in priority order.
// Routes without enough samples come back without a price.
func (s *Service) PopularRoutes(ctx context.Context, limit int) (PopularResponse, error) {
	limit = ClampLimit(limit)

	enabled := make([]CuratedRoute, 0, len(s.routes))
	for _, r := range s.routes {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority < enabled[j].Priority
	})
	if len(enabled) > limit {
		enabled = enabled[:limit]
	}

	cards := make([]PopularRouteCard, len(enabled))
	pairs := make([][2]string, len(enabled))
	for i, r := range enabled {
		airport := airportOrCode(r.Destination)
		cards[i] = PopularRouteCard{
			Origin:      r.Origin,
			Destination: r.Destination,
			LabelCity:   airport.City,
			Country:     airport.Country,
			Meta:        CardMeta{Priority: r.Priority},
		}
		pairs[i] = [2]string{r.Origin, r.Destination}
	}

	prices := s.lookupPrices(ctx, pairs)
	for i := range cards {
		cards[i].Price = prices[i].price
		cards[i].Meta.SampleCount = prices[i].samples
	}

	return PopularResponse{Routes: cards, Meta: s.meta()}, nil
}

// SmartPopularRoutes suggests themed destinations for the next holidays.
func (s *Service) SmartPopularRoutes(ctx context.Context, originCode string) (SmartResponse, error) {
	originCode = strings.ToUpper(strings.TrimSpace(originCode))
	if originCode == "" {
		originCode = DefaultOrigin
	}
	origin := airportOrCode(originCode)

	holidays := UpcomingHolidays(s.now(), HolidayHorizon, MaxHolidays)

	cards := make([]SmartRouteCard, 0, len(holidays)*DestinationsPerHoliday)
	pairs := make([][2]string, 0, cap(cards))
	for _, h := range holidays {
		picked := 0
		for _, d := range destinations {
			if picked == DestinationsPerHoliday {
				break
			}
			dest := airportOrCode(d.Code)
			if d.Code == originCode || dest.City == origin.City || !d.hasAny(h.Themes) {
				continue
			}
			cards = append(cards, SmartRouteCard{
				Origin:      originCode,
				Destination: d.Code,
				LabelCity:   dest.City,
				Country:     dest.Country,
				Meta: CardMeta{
					HolidayID:   h.ID,
					HolidayName: h.Name,
					DepartDate:  h.Start.Format("2006-01-02"),
					ReturnDate:  h.End.Format("2006-01-02"),
				},
			})
			pairs = append(pairs, [2]string{originCode, d.Code})
			picked++
		}
	}

	prices := s.lookupPrices(ctx, pairs)
	for i := range cards {
		cards[i].Price = prices[i].price
		cards[i].Meta.SampleCount = prices[i].samples
	}

	return SmartResponse{
		Routes:   cards,
		Origin:   Origin{Code: originCode, City: origin.City},
		Holidays: holidays,
		Meta:     s.meta(),
	}, nil
}

type cardPrice struct {
	price   *int
	samples int64
}

// lookupPrices fetches the gated 30-day minimum for each pair. Lookup failures
// leave the card without a price.
func (s *Service) lookupPrices(ctx context.Context, pairs [][2]string) []cardPrice {
	out := make([]cardPrice, len(pairs))
	if s.prices == nil {
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(priceLookupConcurrency)
	for i, pair := range pairs {
		g.Go(func() error {
			agg, err := s.prices.GetPriceHistoryForRoute(gctx, pair[0], pair[1], insight.WindowDays)
			if err != nil {
				s.logger.Warn().Err(err).Str("route", pair[0]+"-"+pair[1]).Msg("price lookup failed; card without price")
				return nil
			}
			out[i].samples = agg.SampleCount
			if insight.Sufficient(agg) {
				price := agg.MinPrice
				out[i].price = &price
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) meta() Meta {
	return Meta{FetchedAt: s.now().UTC(), MinSamplesRequired: insight.MinSamples}
}

func airportOrCode(code string) Airport {
	if a, ok := LookupAirport(code); ok {
		return a
	}
	return Airport{Code: code, City: code}
}
