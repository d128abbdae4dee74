package httpapi

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fareradar/internal/flights"
)

// Field error codes.
const (
	FieldRequired = "required"
	FieldIATA     = "invalid_iata"
	FieldInvalid  = "invalid"
	FieldRange    = "out_of_range"
)

const (
	defaultAdults = 1
	maxAdults     = 9
	defaultMax    = 20
	maxResults    = 50
)

var iataPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// FieldError describes one rejected parameter.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// validationCode picks the top-level code for a set of field errors. Missing
// fields win over bad IATA codes, which win over everything else.
func validationCode(errs []FieldError) string {
	code := CodeInvalidParams
	for _, e := range errs {
		switch e.Code {
		case FieldRequired:
			return CodeMissingRequired
		case FieldIATA:
			code = CodeInvalidIATA
		}
	}
	return code
}

// normalizeIATA upper-cases code and reports whether it is three letters.
func normalizeIATA(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	return code, iataPattern.MatchString(code)
}

// parseSearchQuery validates the /api/flights/search parameters. now is used
// to reject departures in the past.
func parseSearchQuery(values url.Values, now time.Time) (flights.SearchQuery, []FieldError) {
	var errs []FieldError
	q := flights.SearchQuery{Adults: defaultAdults, Max: defaultMax}

	q.From, errs = requireIATA(values, "from", errs)
	q.To, errs = requireIATA(values, "to", errs)
	if q.From != "" && q.From == q.To {
		errs = append(errs, FieldError{Field: "to", Code: FieldInvalid, Message: "destination must differ from origin"})
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var depart time.Time
	switch raw := strings.TrimSpace(values.Get("depart")); {
	case raw == "":
		errs = append(errs, FieldError{Field: "depart", Code: FieldRequired, Message: "depart is required"})
	default:
		d, err := time.Parse(flights.DateLayout, raw)
		switch {
		case err != nil:
			errs = append(errs, FieldError{Field: "depart", Code: FieldInvalid, Message: "depart must be YYYY-MM-DD"})
		case d.Before(today):
			errs = append(errs, FieldError{Field: "depart", Code: FieldRange, Message: "depart cannot be in the past"})
		default:
			depart = d
			q.Depart = raw
		}
	}

	if raw := strings.TrimSpace(values.Get("return")); raw != "" {
		d, err := time.Parse(flights.DateLayout, raw)
		switch {
		case err != nil:
			errs = append(errs, FieldError{Field: "return", Code: FieldInvalid, Message: "return must be YYYY-MM-DD"})
		case !depart.IsZero() && d.Before(depart):
			errs = append(errs, FieldError{Field: "return", Code: FieldRange, Message: "return cannot precede depart"})
		default:
			q.Return = raw
		}
	}

	q.Adults, errs = optionalInt(values, "adults", defaultAdults, 1, maxAdults, errs)
	q.Max, errs = optionalInt(values, "max", defaultMax, 1, maxResults, errs)

	if raw := strings.TrimSpace(values.Get("nonStop")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, FieldError{Field: "nonStop", Code: FieldInvalid, Message: "nonStop must be true or false"})
		}
		q.NonStop = b
	}

	return q, errs
}

// hasSearchParams reports whether the request carries enough to refetch a search.
func hasSearchParams(values url.Values) bool {
	return values.Get("from") != "" && values.Get("to") != "" && values.Get("depart") != ""
}

func requireIATA(values url.Values, field string, errs []FieldError) (string, []FieldError) {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return "", append(errs, FieldError{Field: field, Code: FieldRequired, Message: field + " is required"})
	}
	code, ok := normalizeIATA(raw)
	if !ok {
		return "", append(errs, FieldError{Field: field, Code: FieldIATA, Message: field + " must be a 3-letter IATA code"})
	}
	return code, errs
}

func optionalInt(values url.Values, field string, def, lo, hi int, errs []FieldError) (int, []FieldError) {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return def, errs
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, append(errs, FieldError{Field: field, Code: FieldInvalid, Message: field + " must be an integer"})
	}
	if n < lo || n > hi {
		return def, append(errs, FieldError{
			Field:   field,
			Code:    FieldRange,
			Message: field + " must be between " + strconv.Itoa(lo) + " and " + strconv.Itoa(hi),
		})
	}
	return n, errs
}

// parseLimit reads the popular-routes limit; clamping happens in the routes service.
func parseLimit(values url.Values) (int, []FieldError) {
	raw := strings.TrimSpace(values.Get("limit"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, []FieldError{{Field: "limit", Code: FieldInvalid, Message: "limit must be an integer"}}
	}
	return n, nil
}
