package flights

import "sort"

// DecisionLabel is the badge shown next to a flight.
type DecisionLabel string

const (
	LabelBestBalance DecisionLabel = "best_balance"
	LabelCheapest    DecisionLabel = "cheapest"
	LabelFastest     DecisionLabel = "fastest"
)

// PriceContext places a flight's price within its result set.
type PriceContext string

const (
	PriceBelowAverage PriceContext = "below_average"
	PriceAverage      PriceContext = "average"
	PriceAboveAverage PriceContext = "above_average"
)

// Percentiles used for the price context split.
const (
	lowerPercentile = 0.35
	upperPercentile = 0.70
)

// Decision is the outcome for one flight. Label is empty when the flight won
// no category.
type Decision struct {
	FlightID     string        `json:"flightId"`
	Label        DecisionLabel `json:"label,omitempty"`
	PriceContext PriceContext  `json:"priceContext"`
}

// DecideOrdered labels a result set and returns one decision per flight in
// input order. The output depends only on the order and values of the input.
func DecideOrdered(results []FlightResult) []Decision {
	decisions := make([]Decision, len(results))
	if len(results) == 0 {
		return decisions
	}

	minutes := make([]int, len(results))
	scores := make([]float64, len(results))
	prices := make([]float64, len(results))
	for i, f := range results {
		minutes[i] = ParseDurationToMinutes(f.Duration)
		scores[i] = scoreOf(f.Price, minutes[i])
		prices[i] = float64(f.Price)
		decisions[i] = Decision{FlightID: f.ID}
	}

	taken := make([]bool, len(results))

	best := argmin(len(results), taken, func(a, b int) bool {
		if scores[a] != scores[b] {
			return scores[a] < scores[b]
		}
		return results[a].Price < results[b].Price
	})
	if best >= 0 {
		decisions[best].Label = LabelBestBalance
		taken[best] = true
	}

	cheapest := argmin(len(results), taken, func(a, b int) bool {
		return results[a].Price < results[b].Price
	})
	if cheapest >= 0 {
		decisions[cheapest].Label = LabelCheapest
		taken[cheapest] = true
	}

	fastest := argmin(len(results), taken, func(a, b int) bool {
		return minutes[a] < minutes[b]
	})
	if fastest >= 0 {
		decisions[fastest].Label = LabelFastest
		taken[fastest] = true
	}

	p35, p70 := percentileBounds(prices)
	for i := range results {
		decisions[i].PriceContext = classifyPrice(prices[i], p35, p70)
	}

	return decisions
}

// Decide is DecideOrdered keyed by flight id.
func Decide(results []FlightResult) map[string]Decision {
	ordered := DecideOrdered(results)
	out := make(map[string]Decision, len(ordered))
	for _, d := range ordered {
		out[d.FlightID] = d
	}
	return out
}

// argmin returns the first index not yet taken for which no later index is
// strictly less, or -1 when every index is taken.
func argmin(n int, taken []bool, less func(a, b int) bool) int {
	winner := -1
	for i := 0; i < n; i++ {
		if taken[i] {
			continue
		}
		if winner < 0 || less(i, winner) {
			winner = i
		}
	}
	return winner
}

func percentileBounds(prices []float64) (float64, float64) {
	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)
	return Percentile(sorted, lowerPercentile), Percentile(sorted, upperPercentile)
}

// Percentile computes the p-th percentile (0..1) of an ascending slice using
// linear interpolation between closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(rank)
	frac := rank - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

// classifyPrice treats a price sitting on both bounds at once (p35 == p70) as
// average, which covers single-flight and uniform-price sets.
func classifyPrice(price, p35, p70 float64) PriceContext {
	below := price <= p35
	above := price >= p70
	switch {
	case below && above:
		return PriceAverage
	case below:
		return PriceBelowAverage
	case above:
		return PriceAboveAverage
	default:
		return PriceAverage
	}
}
