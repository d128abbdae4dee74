package routes

// Airport is an entry of the airport dataset.
type Airport struct {
	Code    string
	City    string
	Country string
}

// CuratedRoute is an editorially chosen route shown on the home page.
type CuratedRoute struct {
	Origin      string
	Destination string
	Priority    int
	Enabled     bool
}

// Destination is a smart-route candidate tagged with travel themes.
type Destination struct {
	Code string
	Tags []string
}

// Theme tags.
const (
	ThemeBeach    = "beach"
	ThemeCarnival = "carnival"
	ThemeCulture  = "culture"
	ThemeNature   = "nature"
	ThemeCity     = "city"
	ThemeAbroad   = "abroad"
)

var airports = map[string]Airport{
	"GRU": {Code: "GRU", City: "São Paulo", Country: "Brasil"},
	"CGH": {Code: "CGH", City: "São Paulo", Country: "Brasil"},
	"VCP": {Code: "VCP", City: "Campinas", Country: "Brasil"},
	"GIG": {Code: "GIG", City: "Rio de Janeiro", Country: "Brasil"},
	"SDU": {Code: "SDU", City: "Rio de Janeiro", Country: "Brasil"},
	"BSB": {Code: "BSB", City: "Brasília", Country: "Brasil"},
	"CNF": {Code: "CNF", City: "Belo Horizonte", Country: "Brasil"},
	"SSA": {Code: "SSA", City: "Salvador", Country: "Brasil"},
	"REC": {Code: "REC", City: "Recife", Country: "Brasil"},
	"FOR": {Code: "FOR", City: "Fortaleza", Country: "Brasil"},
	"NAT": {Code: "NAT", City: "Natal", Country: "Brasil"},
	"MCZ": {Code: "MCZ", City: "Maceió", Country: "Brasil"},
	"JPA": {Code: "JPA", City: "João Pessoa", Country: "Brasil"},
	"BPS": {Code: "BPS", City: "Porto Seguro", Country: "Brasil"},
	"POA": {Code: "POA", City: "Porto Alegre", Country: "Brasil"},
	"CWB": {Code: "CWB", City: "Curitiba", Country: "Brasil"},
	"FLN": {Code: "FLN", City: "Florianópolis", Country: "Brasil"},
	"IGU": {Code: "IGU", City: "Foz do Iguaçu", Country: "Brasil"},
	"MAO": {Code: "MAO", City: "Manaus", Country: "Brasil"},
	"BEL": {Code: "BEL", City: "Belém", Country: "Brasil"},
	"GYN": {Code: "GYN", City: "Goiânia", Country: "Brasil"},
	"EZE": {Code: "EZE", City: "Buenos Aires", Country: "Argentina"},
	"SCL": {Code: "SCL", City: "Santiago", Country: "Chile"},
	"MVD": {Code: "MVD", City: "Montevidéu", Country: "Uruguai"},
	"LIS": {Code: "LIS", City: "Lisboa", Country: "Portugal"},
	"MIA": {Code: "MIA", City: "Miami", Country: "Estados Unidos"},
	"MCO": {Code: "MCO", City: "Orlando", Country: "Estados Unidos"},
}

var curatedRoutes = []CuratedRoute{
	{Origin: "GRU", Destination: "GIG", Priority: 1, Enabled: true},
	{Origin: "GRU", Destination: "SSA", Priority: 2, Enabled: true},
	{Origin: "GRU", Destination: "REC", Priority: 3, Enabled: true},
	{Origin: "GRU", Destination: "FLN", Priority: 4, Enabled: true},
	{Origin: "GRU", Destination: "FOR", Priority: 5, Enabled: true},
	{Origin: "GIG", Destination: "GRU", Priority: 6, Enabled: true},
	{Origin: "GRU", Destination: "BSB", Priority: 7, Enabled: true},
	{Origin: "GRU", Destination: "POA", Priority: 8, Enabled: true},
	{Origin: "GRU", Destination: "EZE", Priority: 9, Enabled: true},
	{Origin: "GRU", Destination: "LIS", Priority: 10, Enabled: true},
	{Origin: "CNF", Destination: "GRU", Priority: 11, Enabled: true},
	{Origin: "GRU", Destination: "MCZ", Priority: 12, Enabled: true},
	{Origin: "GRU", Destination: "NAT", Priority: 13, Enabled: true},
	{Origin: "GRU", Destination: "MIA", Priority: 14, Enabled: true},
	{Origin: "GRU", Destination: "SCL", Priority: 15, Enabled: false},
}

var destinations = []Destination{
	{Code: "SSA", Tags: []string{ThemeBeach, ThemeCarnival, ThemeCulture}},
	{Code: "REC", Tags: []string{ThemeBeach, ThemeCarnival, ThemeCulture}},
	{Code: "GIG", Tags: []string{ThemeBeach, ThemeCarnival, ThemeCity}},
	{Code: "FLN", Tags: []string{ThemeBeach, ThemeNature, ThemeCarnival}},
	{Code: "MCZ", Tags: []string{ThemeBeach}},
	{Code: "NAT", Tags: []string{ThemeBeach}},
	{Code: "JPA", Tags: []string{ThemeBeach, ThemeCulture}},
	{Code: "FOR", Tags: []string{ThemeBeach}},
	{Code: "BPS", Tags: []string{ThemeBeach, ThemeNature}},
	{Code: "IGU", Tags: []string{ThemeNature}},
	{Code: "CWB", Tags: []string{ThemeNature, ThemeCity}},
	{Code: "POA", Tags: []string{ThemeCity, ThemeCulture}},
	{Code: "BSB", Tags: []string{ThemeCity, ThemeCulture}},
	{Code: "CNF", Tags: []string{ThemeCulture, ThemeCity}},
	{Code: "MAO", Tags: []string{ThemeNature}},
	{Code: "GRU", Tags: []string{ThemeCity, ThemeCulture}},
	{Code: "EZE", Tags: []string{ThemeAbroad, ThemeCulture, ThemeCity}},
	{Code: "SCL", Tags: []string{ThemeAbroad, ThemeNature}},
	{Code: "MVD", Tags: []string{ThemeAbroad, ThemeCulture}},
	{Code: "LIS", Tags: []string{ThemeAbroad, ThemeCulture}},
	{Code: "MIA", Tags: []string{ThemeAbroad, ThemeBeach, ThemeCity}},
}

// LookupAirport returns the airport for an IATA code.
func LookupAirport(code string) (Airport, bool) {
	a, ok := airports[code]
	return a, ok
}

// CuratedRoutes returns a copy of the curated route list.
func CuratedRoutes() []CuratedRoute {
	out := make([]CuratedRoute, len(curatedRoutes))
	copy(out, curatedRoutes)
	return out
}

func (d Destination) hasAny(tags []string) bool {
	for _, want := range tags {
		for _, t := range d.Tags {
			if t == want {
				return true
			}
		}
	}
	return false
}
