package flights

import (
	"regexp"
	"strconv"
)

// Score weights. A lower score is a better flight. They are part of the
// ranking protocol and intentionally not configurable.
const (
	PriceWeight    = 0.6
	DurationWeight = 40.0
)

var (
	hoursToken   = regexp.MustCompile(`(?i)(\d+)\s*h`)
	minutesToken = regexp.MustCompile(`(?i)(\d+)\s*m(?:in)?`)
)

// ParseDurationToMinutes converts strings such as "10h 45min", "2h" or "90min"
// into minutes. Missing or unreadable components count as zero.
func ParseDurationToMinutes(duration string) int {
	return tokenValue(hoursToken, duration)*60 + tokenValue(minutesToken, duration)
}

func tokenValue(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// CalculateScore weighs price against travel time.
func CalculateScore(f FlightResult) float64 {
	return scoreOf(f.Price, ParseDurationToMinutes(f.Duration))
}

func scoreOf(price, minutes int) float64 {
	return float64(price)*PriceWeight + float64(minutes)*DurationWeight
}

// FormatDuration renders minutes in the "Xh Ymin" form ParseDurationToMinutes reads.
func FormatDuration(minutes int) string {
	if minutes <= 0 {
		return "0min"
	}
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return strconv.Itoa(m) + "min"
	case m == 0:
		return strconv.Itoa(h) + "h"
	default:
		return strconv.Itoa(h) + "h " + strconv.Itoa(m) + "min"
	}
}
