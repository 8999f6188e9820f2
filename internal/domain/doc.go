// Package domain models aviation weather observations and the algorithms
// that run over a parsed batch of them.
//
// # Data Sources
//
// Reports come from the Aviation Digital Data Service (ADDS) dataserver
// (https://aviationweather.gov/) as XML, or from IWXXM bulletins, the ICAO
// XML exchange model. Both are decoded by the parser package into the same
// Observation model; this package never sees XML.
//
// # Report Kinds
//
//	METAR / SPECI   routine and special surface observations, point in time
//	TAF             terminal aerodrome forecast, valid from valid_time_from
//	AIRSIGMET       hazard advisory covering a polygon instead of a point
//	AircraftReport  PIREP/AIREP, located by the aircraft's position
//
// # Validity Windows
//
// Documents give each report a start time only. [InferIntervals] closes each
// report at the next report of the same station, so exactly one report per
// station is current at any instant. A station's last report stays current
// for the longest gap seen for that station, floored at [DefaultInterval]
// (72 hours) so rarely updated sites stay on a time-synced display.
//
// # Units
//
// ADDS encodes units in field-name suffixes: temp_c (Celsius),
// wind_speed_kt (knots), visibility_statute_mi (statute miles),
// altim_in_hg (inches of mercury). IWXXM carries UCUM codes in uom
// attributes ("Cel", "[kn_i]", "hPa"). [Normalize] maps both to the same
// canonical names and display units.
//
// # Missing Values
//
// Blank text and the ADDS markers "M" and "UNK" decode to [NoReading].
// NoReading is never classified and plots as null.
//
// # Severity Classification
//
// Operators supply [ThresholdRule]s per parameter. Values past the severe
// cutoff are Severe, past the marginal cutoff Marginal, otherwise Good.
// Flipped rules compare with "<" for parameters where lower is worse
// (ceiling, visibility). The record's aggregate color is the highest
// property color.
package domain
