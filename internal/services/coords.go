package services

// Coordinates is a latitude/longitude pair for the heatmap.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Static lookup for the garment-industry countries the platform tracks.
// Unknown codes fall back to the zero coordinate; the heatmap client
// drops those points.
var countryTable = map[string]struct {
	name   string
	coords Coordinates
}{
	"BD": {"Bangladesh", Coordinates{23.685, 90.3563}},
	"CN": {"China", Coordinates{35.8617, 104.1954}},
	"IN": {"India", Coordinates{20.5937, 78.9629}},
	"VN": {"Vietnam", Coordinates{14.0583, 108.2772}},
	"KH": {"Cambodia", Coordinates{12.5657, 104.991}},
	"PK": {"Pakistan", Coordinates{30.3753, 69.3451}},
	"ID": {"Indonesia", Coordinates{-0.7893, 113.9213}},
	"LK": {"Sri Lanka", Coordinates{7.8731, 80.7718}},
	"MM": {"Myanmar", Coordinates{21.9162, 95.956}},
	"TR": {"Turkey", Coordinates{38.9637, 35.2433}},
	"ET": {"Ethiopia", Coordinates{9.145, 40.4897}},
	"MX": {"Mexico", Coordinates{23.6345, -102.5528}},
	"US": {"United States", Coordinates{37.0902, -95.7129}},
	"GB": {"United Kingdom", Coordinates{55.3781, -3.436}},
	"DE": {"Germany", Coordinates{51.1657, 10.4515}},
}

// CountryName returns the display name for a code, or the code itself
// when unknown.
func CountryName(countryCode string) string {
	if entry, ok := countryTable[countryCode]; ok {
		return entry.name
	}
	return countryCode
}

// CountryCoordinates returns the map coordinates for a code.
func CountryCoordinates(countryCode string) Coordinates {
	return countryTable[countryCode].coords
}
