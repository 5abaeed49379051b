package calendar

import "strings"

// Color is one entry of a provider colour palette.
type Color struct {
	ID         string
	Background string
	Foreground string
}

const (
	// DefaultColorID is returned when a hex colour is not in a palette.
	DefaultColorID = "1"

	defaultForeground = "#1d1d1d"
)

// CalendarColors is the fixed palette of calendar-level colours.
var CalendarColors = []Color{
	{"1", "#ac725e", defaultForeground},
	{"2", "#d06b64", defaultForeground},
	{"3", "#f83a22", defaultForeground},
	{"4", "#fa573c", defaultForeground},
	{"5", "#ff7537", defaultForeground},
	{"6", "#ffad46", defaultForeground},
	{"7", "#42d692", defaultForeground},
	{"8", "#16a765", defaultForeground},
	{"9", "#7bd148", defaultForeground},
	{"10", "#b3dc6c", defaultForeground},
	{"11", "#fbe983", defaultForeground},
	{"12", "#fad165", defaultForeground},
	{"13", "#92e1c0", defaultForeground},
	{"14", "#9fe1e7", defaultForeground},
	{"15", "#9fc6e7", defaultForeground},
	{"16", "#4986e7", defaultForeground},
	{"17", "#9a9cff", defaultForeground},
	{"18", "#b99aff", defaultForeground},
	{"19", "#c2c2c2", defaultForeground},
	{"20", "#cabdbf", defaultForeground},
	{"21", "#cca6ac", defaultForeground},
	{"22", "#f691b2", defaultForeground},
	{"23", "#cd74e6", defaultForeground},
	{"24", "#a47ae2", defaultForeground},
}

// EventColors is the fixed palette of per-event colours.
var EventColors = []Color{
	{"1", "#a4bdfc", defaultForeground},
	{"2", "#7ae7bf", defaultForeground},
	{"3", "#dbadff", defaultForeground},
	{"4", "#ff887c", defaultForeground},
	{"5", "#fbd75b", defaultForeground},
	{"6", "#ffb878", defaultForeground},
	{"7", "#46d6db", defaultForeground},
	{"8", "#e1e1e1", defaultForeground},
	{"9", "#5484ed", defaultForeground},
	{"10", "#51b749", defaultForeground},
	{"11", "#dc2127", defaultForeground},
}

func idFromHex(palette []Color, hex string) string {
	for _, c := range palette {
		if strings.EqualFold(c.Background, strings.TrimSpace(hex)) {
			return c.ID
		}
	}
	return DefaultColorID
}

func lookup(palette []Color, id string) (Color, bool) {
	for _, c := range palette {
		if c.ID == strings.TrimSpace(id) {
			return c, true
		}
	}
	return Color{}, false
}

// CalendarColorIDFromHex maps a background hex to its calendar colour id,
// or DefaultColorID when the hex is not in the palette.
func CalendarColorIDFromHex(hex string) string {
	return idFromHex(CalendarColors, hex)
}

// CalendarHexFromColorID maps a calendar colour id to its background hex,
// falling back to the first palette entry.
func CalendarHexFromColorID(id string) string {
	if c, ok := lookup(CalendarColors, id); ok {
		return c.Background
	}
	return CalendarColors[0].Background
}

// EventColorIDFromHex maps a background hex to its event colour id.
func EventColorIDFromHex(hex string) string {
	return idFromHex(EventColors, hex)
}

// EventHexFromColorID maps an event colour id to its background hex.
func EventHexFromColorID(id string) string {
	if c, ok := lookup(EventColors, id); ok {
		return c.Background
	}
	return EventColors[0].Background
}

// IsEventColorID reports whether id is a valid event colour id.
func IsEventColorID(id string) bool {
	_, ok := lookup(EventColors, id)
	return ok
}

// ResolveCalendarColor accepts either a calendar colour id or a "#rrggbb"
// value and returns the canonical palette pair.
func ResolveCalendarColor(idOrHex string) (id, hex string) {
	if strings.HasPrefix(strings.TrimSpace(idOrHex), "#") {
		id = CalendarColorIDFromHex(idOrHex)
	} else if c, ok := lookup(CalendarColors, idOrHex); ok {
		id = c.ID
	} else {
		id = DefaultColorID
	}
	return id, CalendarHexFromColorID(id)
}
