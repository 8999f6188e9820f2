package domain

// UnknownUnit is reported for parameters no record supplies.
const UnknownUnit = "unknown"

// UnitInfo is the display unit of a parameter. Label is set only for
// thresholded parameters, e.g. "Air Temperature (C)".
type UnitInfo struct {
	Unit  string `json:"unit"`
	Label string `json:"label,omitempty"`
}

// UnitData resolves the display unit of each requested parameter from the
// first record of the station that supplies one.
func UnitData(name string, params []string, records []*Observation, rules []ThresholdRule) map[string]UnitInfo {
	out := make(map[string]UnitInfo, len(params))
	for _, param := range params {
		info := UnitInfo{Unit: UnknownUnit}
		for _, obs := range records {
			if obs.StationID != name {
				continue
			}
			if p := obs.Properties[param]; p != nil && p.Unit != "" {
				info.Unit = p.Unit
				break
			}
		}
		if Thresholded(rules, param) {
			info.Label = HumanName(param) + " (" + info.Unit + ")"
		}
		out[param] = info
	}
	return out
}
