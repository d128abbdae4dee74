package provider

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fareradar/internal/flights"
)

const flightOffersPath = "/v2/shopping/flight-offers"

// LiveOptions parameterise the live provider.
type LiveOptions struct {
	BaseURL   string
	Currency  string
	Timeout   time.Duration
	Retries   int
	Backoff   time.Duration
	UserAgent string
}

// Live queries the upstream flight-offers API.
type Live struct {
	opts    LiveOptions
	tokens  *TokenService
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewLive constructs the live provider.
func NewLive(opts LiveOptions, tokens *TokenService, client *http.Client, logger zerolog.Logger) *Live {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 400 * time.Millisecond
	}
	if opts.Currency == "" {
		opts.Currency = "BRL"
	}
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Live{
		opts:    opts,
		tokens:  tokens,
		client:  client,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		logger:  logger.With().Str("component", "live_provider").Logger(),
	}
}

// Name implements SearchProvider.
func (l *Live) Name() string { return "live" }

// Search implements SearchProvider.
func (l *Live) Search(ctx context.Context, q flights.SearchQuery) ([]flights.FlightResult, error) {
	endpoint := l.baseURL + flightOffersPath + "?" + l.searchParams(q).Encode()

	var payload offersResponse
	if err := l.fetchWithRetry(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	results := make([]flights.FlightResult, 0, len(payload.Data))
	for _, offer := range payload.Data {
		f, err := mapOffer(q, offer, payload.Dictionaries.Carriers)
		if err != nil {
			l.logger.Warn().Err(err).Str("offer_id", offer.ID).Msg("skipping malformed offer")
			continue
		}
		results = append(results, f)
	}
	return results, nil
}

func (l *Live) searchParams(q flights.SearchQuery) url.Values {
	v := url.Values{}
	v.Set("originLocationCode", q.From)
	v.Set("destinationLocationCode", q.To)
	v.Set("departureDate", q.Depart)
	if q.Return != "" {
		v.Set("returnDate", q.Return)
	}
	v.Set("adults", strconv.Itoa(q.Adults))
	v.Set("max", strconv.Itoa(q.Max))
	v.Set("currencyCode", l.opts.Currency)
	if q.NonStop {
		v.Set("nonStop", "true")
	}
	return v
}

func (l *Live) fetchWithRetry(ctx context.Context, endpoint string, out *offersResponse) error {
	attempts := l.opts.Retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		err := l.fetchOnce(ctx, endpoint, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrAuth) {
			l.tokens.Invalidate()
		}
		if !isRetryable(err) || attempt == attempts-1 {
			return err
		}

		delay := l.retryDelay(attempt)
		l.logger.Debug().Err(err).Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying search")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%w: exhausted retries", ErrTransient)
}

func (l *Live) fetchOnce(ctx context.Context, endpoint string, out *offersResponse) error {
	token, err := l.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(l.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		if isNetworkTransient(err) {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return classifyStatus(resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode flight offers: %w", err)
	}
	return nil
}

func (l *Live) retryDelay(attempt int) time.Duration {
	shift := attempt
	if shift > 5 {
		shift = 5
	}
	return l.opts.Backoff * time.Duration(1<<shift)
}

func classifyStatus(status int, body []byte) error {
	msg := apiErrorMessage(body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: flight offers (%d): %s", ErrAuth, status, msg)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: flight offers (%d): %s", ErrRateLimited, status, msg)
	case status >= 500:
		return fmt.Errorf("%w: flight offers (%d): %s", ErrTransient, status, msg)
	default:
		return fmt.Errorf("flight offers (%d): %s", status, msg)
	}
}

func apiErrorMessage(body []byte) string {
	var apiErr struct {
		Errors []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && len(apiErr.Errors) > 0 {
		e := apiErr.Errors[0]
		if e.Detail != "" {
			return e.Detail
		}
		return e.Title
	}
	return strings.TrimSpace(string(body))
}

func isNetworkTransient(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

type offersResponse struct {
	Data         []offer `json:"data"`
	Dictionaries struct {
		Carriers map[string]string `json:"carriers"`
	} `json:"dictionaries"`
}

type offer struct {
	ID                     string      `json:"id"`
	NumberOfBookableSeats  int         `json:"numberOfBookableSeats"`
	Itineraries            []itinerary `json:"itineraries"`
	Price                  offerPrice  `json:"price"`
	ValidatingAirlineCodes []string    `json:"validatingAirlineCodes"`
}

type itinerary struct {
	Duration string    `json:"duration"`
	Segments []segment `json:"segments"`
}

type segment struct {
	Departure   endpoint `json:"departure"`
	Arrival     endpoint `json:"arrival"`
	CarrierCode string   `json:"carrierCode"`
	Co2         []struct {
		Weight     int    `json:"weight"`
		WeightUnit string `json:"weightUnit"`
	} `json:"co2Emissions"`
}

type endpoint struct {
	IATACode string `json:"iataCode"`
	At       string `json:"at"`
}

type offerPrice struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

const offerTimeLayout = "2006-01-02T15:04:05"

func mapOffer(q flights.SearchQuery, o offer, carriers map[string]string) (flights.FlightResult, error) {
	if len(o.Itineraries) == 0 || len(o.Itineraries[0].Segments) == 0 {
		return flights.FlightResult{}, errors.New("offer without segments")
	}
	outbound := o.Itineraries[0]
	first := outbound.Segments[0]
	last := outbound.Segments[len(outbound.Segments)-1]

	total, err := decimal.NewFromString(o.Price.Total)
	if err != nil {
		return flights.FlightResult{}, fmt.Errorf("parse price %q: %w", o.Price.Total, err)
	}
	price := int(total.Round(0).IntPart())
	if price <= 0 {
		return flights.FlightResult{}, fmt.Errorf("non-positive price %q", o.Price.Total)
	}

	minutes, err := parseISODuration(outbound.Duration)
	if err != nil {
		return flights.FlightResult{}, err
	}

	dep, err := time.Parse(offerTimeLayout, first.Departure.At)
	if err != nil {
		return flights.FlightResult{}, fmt.Errorf("parse departure: %w", err)
	}
	arr, err := time.Parse(offerTimeLayout, last.Arrival.At)
	if err != nil {
		return flights.FlightResult{}, fmt.Errorf("parse arrival: %w", err)
	}

	code := first.CarrierCode
	if len(o.ValidatingAirlineCodes) > 0 {
		code = o.ValidatingAirlineCodes[0]
	}
	name := carriers[code]
	if name == "" {
		name = code
	}

	stopsCities := make([]string, 0, len(outbound.Segments)-1)
	for _, s := range outbound.Segments[:len(outbound.Segments)-1] {
		stopsCities = append(stopsCities, s.Arrival.IATACode)
	}

	var co2 int
	for _, s := range outbound.Segments {
		for _, e := range s.Co2 {
			co2 += e.Weight
		}
	}

	f := flights.FlightResult{
		Airline:        name,
		AirlineCode:    code,
		Origin:         first.Departure.IATACode,
		Destination:    last.Arrival.IATACode,
		DepartureDate:  dep.Format(flights.DateLayout),
		DepartureTime:  dep.Format("15:04"),
		ArrivalTime:    arr.Format("15:04"),
		Duration:       flights.FormatDuration(minutes),
		Stops:          flights.StopsLabel(len(stopsCities)),
		Price:          price,
		OffersCount:    1,
		NextDayArrival: arr.Format(flights.DateLayout) != dep.Format(flights.DateLayout),
	}
	if len(stopsCities) > 0 {
		f.StopsCities = stopsCities
	}
	if co2 > 0 {
		f.CO2 = strconv.Itoa(co2) + " kg"
	}
	f.ID = offerID(q, o.ID, f)
	return f, nil
}

// offerID is stable for the same offer across repeated searches.
func offerID(q flights.SearchQuery, upstreamID string, f flights.FlightResult) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%s|%d", q.From, q.To, q.Depart, q.Return, f.AirlineCode, f.DepartureTime, upstreamID, f.Price)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?)?$`)

// parseISODuration turns PT10H45M or P1DT2H30M into minutes.
func parseISODuration(iso string) (int, error) {
	m := isoDurationRe.FindStringSubmatch(iso)
	if m == nil {
		return 0, fmt.Errorf("unsupported duration %q", iso)
	}
	days, _ := strconv.Atoi(m[1])
	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	total := days*24*60 + hours*60 + minutes
	if total <= 0 {
		return 0, fmt.Errorf("empty duration %q", iso)
	}
	return total, nil
}

var _ SearchProvider = (*Live)(nil)
