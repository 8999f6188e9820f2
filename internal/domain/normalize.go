package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// canonicalField is the normalized (name, unit) pair for a raw field.
type canonicalField struct {
	name string
	unit string
}

// fieldTable maps raw field names from both document schemas to canonical
// parameter names and display units. ADDS names encode the unit in a suffix;
// IWXXM names carry it in a uom attribute, so their unit is left empty here
// and filled from the attribute.
var fieldTable = map[string]canonicalField{
	// ADDS
	"temp_c":                        {"airTemperature", "C"},
	"dewpoint_c":                    {"dewpointTemperature", "C"},
	"wind_dir_degrees":              {"windDirection", "deg"},
	"wind_speed_kt":                 {"windSpeed", "kt"},
	"wind_gust_kt":                  {"windGust", "kt"},
	"visibility_statute_mi":         {"horizontalVisibility", "mi"},
	"altim_in_hg":                   {"altimeter", "hg"},
	"sea_level_pressure_mb":         {"seaLevelPressure", "mb"},
	"flight_category":               {"flightCategory", ""},
	"wx_string":                     {"presentWeather", ""},
	"sky_condition":                 {"skyCondition", ""},
	"vert_vis_ft":                   {"verticalVisibility", "ft"},
	"precip_in":                     {"precipitation", "in"},
	"snow_in":                       {"snowDepth", "in"},
	"maxT_c":                        {"maxTemperature", "C"},
	"minT_c":                        {"minTemperature", "C"},
	"three_hr_pressure_tendency_mb": {"pressureTendency", "mb"},
	"altitude_ft_msl":               {"altitude", "ft"},
	"altitude_min_ft_msl":           {"minAltitude", "ft"},
	"altitude_max_ft_msl":           {"maxAltitude", "ft"},
	"movement_dir_degrees":          {"movementDirection", "deg"},
	"movement_speed_kt":             {"movementSpeed", "kt"},
	"hazard_type":                   {"hazardType", ""},
	"hazard_severity":               {"hazardSeverity", ""},
	"airsigmet_type":                {"advisoryType", ""},
	"turbulence_condition":          {"turbulence", ""},
	"icing_condition":               {"icing", ""},
	"report_type":                   {"reportType", ""},
	"ceiling_ft_agl":                {"ceiling", "ft"},
	"change_indicator":              {"changeIndicator", ""},
	"probability":                   {"probability", "%"},

	// IWXXM
	"airTemperature":       {"airTemperature", ""},
	"dewpointTemperature":  {"dewpointTemperature", ""},
	"qnh":                  {"altimeter", ""},
	"meanWindDirection":    {"windDirection", ""},
	"meanWindSpeed":        {"windSpeed", ""},
	"windGustSpeed":        {"windGust", ""},
	"prevailingVisibility": {"horizontalVisibility", ""},
	"cloudBase":            {"ceiling", ""},
	"verticalVisibility":   {"verticalVisibility", ""},
	"presentWeather":       {"presentWeather", ""},
	"cloudAndVisibilityOK": {"cavok", ""},
}

// droppedFields carry no display value and are never turned into properties.
var droppedFields = map[string]struct{}{
	"quality_control_flags": {},
	"elevation_m":           {},
	"metar_type":            {},
}

// unitAliases maps schema unit codes (UCUM and friends) to display units.
var unitAliases = map[string]string{
	"Cel":       "C",
	"degC":      "C",
	"[kn_i]":    "kt",
	"kt":        "kt",
	"m/s":       "m/s",
	"m":         "m",
	"km":        "km",
	"[mi_i]":    "mi",
	"[ft_i]":    "ft",
	"ft":        "ft",
	"hPa":       "hPa",
	"deg":       "deg",
	"[in_i]":    "in",
	"[in_i'Hg]": "hg",
	"%":         "%",
}

// RawField is a field as it appears in a document, before normalization.
type RawField struct {
	Name  string
	Value string
	Unit  string // unit attribute, if the schema carries one
}

// Dropped reports whether the raw field is excluded from normalization.
func Dropped(raw string) bool {
	_, ok := droppedFields[raw]
	return ok
}

// Normalize maps a raw field to a Property. It returns nil for dropped fields.
func Normalize(f RawField) *Property {
	if Dropped(f.Name) {
		return nil
	}
	name, unit := CanonicalName(f.Name)
	if unit == "" && f.Unit != "" {
		unit = normalizeUnit(f.Unit)
	}
	return NewProperty(name, unit, ParseValue(f.Value))
}

// CanonicalName returns the canonical parameter name and table unit for a
// raw field name. Names absent from the table are camel-cased with no unit.
func CanonicalName(raw string) (string, string) {
	if c, ok := fieldTable[raw]; ok {
		return c.name, c.unit
	}
	return camelCase(raw), ""
}

func normalizeUnit(u string) string {
	u = strings.TrimSpace(u)
	if alias, ok := unitAliases[u]; ok {
		return alias
	}
	return u
}

// camelCase turns "sea_level_pressure_mb" into "seaLevelPressureMb".
func camelCase(raw string) string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == '_' || r == ' ' || r == '-' })
	if len(parts) == 0 {
		return raw
	}
	var b strings.Builder
	b.WriteString(lowerFirst(parts[0]))
	for _, p := range parts[1:] {
		b.WriteString(upperFirst(p))
	}
	return b.String()
}

func lowerFirst(s string) string {
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func upperFirst(s string) string {
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// HumanName turns a canonical parameter name into a display label,
// e.g. "airTemperature" -> "Air Temperature".
func HumanName(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SkyLayer is one sky_condition entry of a report.
type SkyLayer struct {
	Cover    string
	BaseFeet string
}

// FlattenSky renders sky layers METAR-style, e.g. "FEW050 BKN180".
// Bases are reported in hundreds of feet; clear-sky covers have no base.
func FlattenSky(layers []SkyLayer) string {
	out := make([]string, 0, len(layers))
	for _, l := range layers {
		cover := strings.TrimSpace(l.Cover)
		if cover == "" {
			continue
		}
		base := ParseValue(l.BaseFeet)
		if ft, ok := base.Number(); ok {
			out = append(out, cover+hundredsOfFeet(ft))
			continue
		}
		out = append(out, cover)
	}
	return strings.Join(out, " ")
}

// hundredsOfFeet renders a base as at least three digits of hundreds of feet.
func hundredsOfFeet(ft float64) string {
	return fmt.Sprintf("%03d", max(int(ft/100), 0))
}

// FlattenAttributes renders a composite element's attributes as a single
// display string, "name=value" pairs in document order.
func FlattenAttributes(attrs []RawField) string {
	out := make([]string, 0, len(attrs))
	for _, a := range attrs {
		v := strings.TrimSpace(a.Value)
		if v == "" {
			continue
		}
		out = append(out, a.Name+"="+v)
	}
	return strings.Join(out, " ")
}
