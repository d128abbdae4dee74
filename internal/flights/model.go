package flights

import (
	"strconv"
	"time"
)

// FlightResult is one offer returned by a search. It is never mutated after the
// provider produced it; decisions and insights travel alongside it.
type FlightResult struct {
	ID             string   `json:"id"`
	Airline        string   `json:"airline"`
	AirlineCode    string   `json:"airlineCode"`
	Origin         string   `json:"origin"`
	Destination    string   `json:"destination"`
	DepartureDate  string   `json:"departureDate"`
	DepartureTime  string   `json:"departureTime"`
	ArrivalTime    string   `json:"arrivalTime"`
	Duration       string   `json:"duration"`
	Stops          string   `json:"stops"`
	Price          int      `json:"price"`
	OffersCount    int      `json:"offersCount"`
	CO2            string   `json:"co2,omitempty"`
	StopsCities    []string `json:"stopsCities,omitempty"`
	NextDayArrival bool     `json:"nextDayArrival,omitempty"`
}

// DepartureDay parses DepartureDate (YYYY-MM-DD). The zero time is returned for
// malformed values.
func (f FlightResult) DepartureDay() time.Time {
	t, err := time.Parse(DateLayout, f.DepartureDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DateLayout is the wire format of departure and return dates.
const DateLayout = "2006-01-02"

// SearchQuery is a validated flight search request.
type SearchQuery struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Depart  string `json:"depart"`
	Return  string `json:"return,omitempty"`
	Adults  int    `json:"adults"`
	Max     int    `json:"max"`
	NonStop bool   `json:"nonStop,omitempty"`
}

// Route identifies an origin/destination pair by IATA code.
type Route struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// String renders the route as ORIGIN-DESTINATION.
func (r Route) String() string {
	return r.Origin + "-" + r.Destination
}

// Route returns the query's origin/destination pair.
func (q SearchQuery) Route() Route {
	return Route{Origin: q.From, Destination: q.To}
}

// StopsLabel describes the number of intermediate stops.
func StopsLabel(stops int) string {
	switch {
	case stops <= 0:
		return "Direto"
	case stops == 1:
		return "1 parada"
	default:
		return strconv.Itoa(stops) + " paradas"
	}
}
