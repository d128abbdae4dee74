package routes

import (
	"sort"
	"time"
)

// Holiday is a national holiday and the travel window around it.
type Holiday struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Date   time.Time `json:"date"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Themes []string  `json:"themes"`
}

type fixedHoliday struct {
	id     string
	name   string
	month  time.Month
	day    int
	themes []string
}

type movableHoliday struct {
	id     string
	name   string
	offset int // days from Easter Sunday
	themes []string
}

var fixedHolidays = []fixedHoliday{
	{"confraternizacao", "Confraternização Universal", time.January, 1, []string{ThemeBeach}},
	{"tiradentes", "Tiradentes", time.April, 21, []string{ThemeNature, ThemeCulture}},
	{"dia-do-trabalho", "Dia do Trabalho", time.May, 1, []string{ThemeCity, ThemeNature}},
	{"independencia", "Independência do Brasil", time.September, 7, []string{ThemeBeach, ThemeNature}},
	{"nossa-senhora-aparecida", "Nossa Senhora Aparecida", time.October, 12, []string{ThemeBeach, ThemeCulture}},
	{"finados", "Finados", time.November, 2, []string{ThemeCity, ThemeAbroad}},
	{"proclamacao-da-republica", "Proclamação da República", time.November, 15, []string{ThemeBeach, ThemeAbroad}},
	{"consciencia-negra", "Dia Nacional de Zumbi e da Consciência Negra", time.November, 20, []string{ThemeCulture, ThemeBeach}},
	{"natal", "Natal", time.December, 25, []string{ThemeBeach, ThemeAbroad}},
}

var movableHolidays = []movableHoliday{
	{"carnaval", "Carnaval", -47, []string{ThemeCarnival}},
	{"sexta-feira-santa", "Sexta-feira Santa", -2, []string{ThemeNature, ThemeBeach}},
	{"corpus-christi", "Corpus Christi", 60, []string{ThemeNature, ThemeAbroad}},
}

// Easter returns Easter Sunday of the Gregorian year.
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// HolidaysForYear lists the national holidays of a year ordered by date.
func HolidaysForYear(year int) []Holiday {
	out := make([]Holiday, 0, len(fixedHolidays)+len(movableHolidays))
	for _, fh := range fixedHolidays {
		date := time.Date(year, fh.month, fh.day, 0, 0, 0, 0, time.UTC)
		start, end := travelWindow(date)
		out = append(out, Holiday{ID: fh.id, Name: fh.name, Date: date, Start: start, End: end, Themes: fh.themes})
	}

	easter := Easter(year)
	for _, mh := range movableHolidays {
		date := easter.AddDate(0, 0, mh.offset)
		start, end := travelWindow(date)
		if mh.id == "carnaval" {
			// Saturday before through Ash Wednesday
			start, end = date.AddDate(0, 0, -3), date.AddDate(0, 0, 1)
		}
		out = append(out, Holiday{ID: mh.id, Name: mh.name, Date: date, Start: start, End: end, Themes: mh.themes})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// UpcomingHolidays returns up to n holidays whose travel window has not ended
// and starts within horizon of now.
func UpcomingHolidays(now time.Time, horizon time.Duration, n int) []Holiday {
	today := truncateDay(now)
	until := today.Add(horizon)

	candidates := append(HolidaysForYear(today.Year()), HolidaysForYear(today.Year()+1)...)
	out := make([]Holiday, 0, n)
	for _, h := range candidates {
		if h.End.Before(today) || h.Start.After(until) {
			continue
		}
		out = append(out, h)
		if len(out) == n {
			break
		}
	}
	return out
}

// travelWindow stretches a holiday to the adjacent weekend when it touches one.
func travelWindow(date time.Time) (time.Time, time.Time) {
	switch date.Weekday() {
	case time.Monday:
		return date.AddDate(0, 0, -2), date
	case time.Tuesday:
		return date.AddDate(0, 0, -3), date
	case time.Thursday:
		return date, date.AddDate(0, 0, 3)
	case time.Friday:
		return date, date.AddDate(0, 0, 2)
	case time.Saturday:
		return date, date.AddDate(0, 0, 1)
	case time.Sunday:
		return date.AddDate(0, 0, -1), date
	default:
		return date, date
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
