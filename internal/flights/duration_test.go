package flights

import "testing"

func TestParseDurationToMinutes(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"10h 45min", 645},
		{"2h", 120},
		{"90min", 90},
		{"45min 1h", 105},
		{"1h e 5min", 65},
		{"PT3H20M", 200},
		{"", 0},
		{"soon", 0},
		{"h min", 0},
		{"99999999999999999999h", 0},
	}
	for _, tc := range cases {
		if got := ParseDurationToMinutes(tc.in); got != tc.want {
			t.Fatalf("ParseDurationToMinutes(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestCalculateScore(t *testing.T) {
	a := FlightResult{ID: "a", Price: 3000, Duration: "10h"}
	b := FlightResult{ID: "b", Price: 3200, Duration: "9h"}

	if got := CalculateScore(a); got != 25800 {
		t.Fatalf("score(a) = %v, want 25800", got)
	}
	if got := CalculateScore(b); got != 23520 {
		t.Fatalf("score(b) = %v, want 23520", got)
	}
}

func TestFormatDurationRoundTrip(t *testing.T) {
	for _, minutes := range []int{45, 60, 125, 645} {
		s := FormatDuration(minutes)
		if got := ParseDurationToMinutes(s); got != minutes {
			t.Fatalf("FormatDuration(%d) = %q parses back to %d", minutes, s, got)
		}
	}
	if got := FormatDuration(645); got != "10h 45min" {
		t.Fatalf("unexpected format %q", got)
	}
}
