package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidLocation is returned when a location is not "BUILDING ROOM".
var ErrInvalidLocation = errors.New("invalid location")

// DefaultBuildingCodes maps campus building codes to building names.
var DefaultBuildingCodes = map[string]string{
	"KIM":  "Kimball",
	"TAY":  "Taylor",
	"SPO":  "Spori",
	"ROM":  "Romney",
	"SNO":  "Snow",
	"HRT":  "Hart",
	"BCTR": "BYU-I Center",
	"BEN":  "Benson",
	"MC":   "Manwaring Center",
	"STC":  "Science and Technology Center",
	"SMI":  "Smith",
	"HIN":  "Hinkley",
	"RKS":  "Ricks",
	"ETC":  "Engineering and Technology Center",
	"AUS":  "Austin",
	"CLK":  "Clarke",
}

var locationPattern = regexp.MustCompile(`^([A-Z]+)\s+(\d\S*)$`)

// ValidateLocation checks a "BUILDING ROOM" location against codes and returns
// it upper-cased with a single separating space. An empty location is allowed.
func ValidateLocation(location string, codes map[string]string) (string, error) {
	location = strings.ToUpper(strings.TrimSpace(location))
	if location == "" {
		return "", nil
	}

	m := locationPattern.FindStringSubmatch(location)
	if m == nil {
		return "", fmt.Errorf("%w: %q must be a building code followed by a room number, e.g. \"STC 394\"", ErrInvalidLocation, location)
	}
	if _, ok := codes[m[1]]; !ok {
		return "", fmt.Errorf("%w: unknown building code %q", ErrInvalidLocation, m[1])
	}

	return m[1] + " " + m[2], nil
}
