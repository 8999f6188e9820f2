package parser

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/couchcryptid/aviation-weather-etl/internal/domain"
)

const (
	iwxxmNamespacePrefix = "http://icao.int/iwxxm/"
	collectNamespace     = "http://def.wmo.int/collect/2014"
)

const feetPerMetre = 3.28084

func isIWXXMNamespace(ns string) bool {
	return strings.HasPrefix(ns, iwxxmNamespacePrefix) || ns == collectNamespace
}

// iwxxmTags maps IWXXM report element names to report tags.
var iwxxmTags = map[string]string{
	"METAR":                 TagMetar,
	"SPECI":                 TagMetar,
	"TAF":                   TagTaf,
	"SIGMET":                TagSigmet,
	"AIRMET":                TagSigmet,
	"VolcanicAshSIGMET":     TagSigmet,
	"TropicalCycloneSIGMET": TagSigmet,
	"AIREP":                 TagAircraftReport,
}

// iwxxmContainers hold the weather elements of a report.
var iwxxmContainers = []string{"observation", "result", "baseForecast", "analysis"}

// iwxxmSkipped subtrees describe the report envelope, not the weather, or are
// handled separately.
var iwxxmSkipped = map[string]struct{}{
	"cloud":                                {},
	"aerodrome":                            {},
	"issueTime":                            {},
	"observationTime":                      {},
	"phenomenonTime":                       {},
	"resultTime":                           {},
	"validTime":                            {},
	"validPeriod":                          {},
	"featureOfInterest":                    {},
	"procedure":                            {},
	"observedProperty":                     {},
	"geometry":                             {},
	"shape":                                {},
	"horizontalProjection":                 {},
	"extension":                            {},
	"type":                                 {},
	"issuingAirTrafficServicesUnit":        {},
	"issuingAirTrafficServicesRegion":      {},
	"originatingMeteorologicalWatchOffice": {},
}

// cloudAmounts maps WMO cloud amount codes to METAR covers.
var cloudAmounts = map[string]string{
	"1": "FEW",
	"2": "SCT",
	"3": "BKN",
	"4": "OVC",
}

// decodeIWXXM accepts a collect:MeteorologicalBulletin or a single report.
func decodeIWXXM(root *node) ([]*rawReport, error) {
	if root.name() != "MeteorologicalBulletin" {
		return []*rawReport{decodeIWXXMReport(0, root)}, nil
	}

	infos := root.children("meteorologicalInformation")
	reports := make([]*rawReport, 0, len(infos))
	for i, info := range infos {
		if len(info.Nodes) == 0 {
			return nil, fmt.Errorf("%w: empty meteorologicalInformation at %d", domain.ErrInvalidDocument, i)
		}
		reports = append(reports, decodeIWXXMReport(i, &info.Nodes[0]))
	}
	return reports, nil
}

func decodeIWXXMReport(index int, el *node) *rawReport {
	r := newRawReport(index, el.name(), iwxxmTags[el.name()])
	if r.tag == "" {
		return r
	}

	r.meta[metaReportID] = el.attr("id")
	r.meta[metaStationCode] = el.findText("locationIndicatorICAO")
	r.meta[metaStationID] = el.findText("designator")

	switch r.tag {
	case TagTaf, TagSigmet:
		r.meta[metaValidFrom] = periodStart(el)
	default:
		r.meta[metaObservationTime] = instant(el, "observationTime", "phenomenonTime", "issueTime")
	}

	if r.tag == TagSigmet {
		r.meta[metaAdvisoryType] = el.name()
		r.addField(domain.RawField{Name: metaAdvisoryType, Value: el.name()})
		if p := el.child("phenomenon"); p != nil {
			r.meta[metaHazard] = hrefCode(p)
			r.addField(domain.RawField{Name: metaHazard, Value: r.meta[metaHazard]})
		}
	}

	decodeIWXXMGeometry(el, r)

	for _, name := range iwxxmContainers {
		if c := el.find(name); c != nil {
			if v := c.find("MeteorologicalAerodromeObservation"); v != nil {
				c = v
			}
			if ok := c.attr("cloudAndVisibilityOK"); ok != "" {
				r.addField(domain.RawField{Name: "cloudAndVisibilityOK", Value: ok})
			}
			collectLeaves(c, r)
			decodeCloud(c, r)
			break
		}
	}
	return r
}

// periodStart returns the begin of a validPeriod (IWXXM 3) or validTime
// (IWXXM 2) period.
func periodStart(el *node) string {
	for _, name := range []string{"validPeriod", "validTime"} {
		if p := el.find(name); p != nil {
			if begin := p.findText("beginPosition"); begin != "" {
				return begin
			}
			if pos := p.findText("timePosition"); pos != "" {
				return pos
			}
		}
	}
	return ""
}

// instant returns the first timePosition under any of the named elements.
func instant(el *node, names ...string) string {
	for _, name := range names {
		if n := el.find(name); n != nil {
			if pos := n.findText("timePosition"); pos != "" {
				return pos
			}
		}
	}
	return ""
}

// decodeIWXXMGeometry reads GML geometry. A posList is an area, a pos is a
// point. Any other named shape is carried through as its own geometry type.
func decodeIWXXMGeometry(el *node, r *rawReport) {
	if list := el.find("posList"); list != nil {
		r.geometry = geometryArea
		if vertices, err := parsePosList(list.text()); err == nil {
			r.boundary = vertices
		}
		return
	}
	if pos := el.find("pos"); pos != nil {
		if p, ok := parsePos(pos.text()); ok {
			r.geometry = geometryPoint
			r.point = p
		}
		return
	}
	for _, holder := range []string{"horizontalProjection", "shape", "geometry"} {
		if h := el.find(holder); h != nil && len(h.Nodes) > 0 {
			r.geometry = strings.ToLower(h.Nodes[0].name())
			return
		}
	}
}

// collectLeaves adds every leaf element under n as a raw field, with its uom
// as the unit. Elements carrying only an xlink:href take the code at the end
// of the href path as their value.
func collectLeaves(n *node, r *rawReport) {
	for i := range n.Nodes {
		c := &n.Nodes[i]
		if _, skip := iwxxmSkipped[c.name()]; skip {
			continue
		}
		if !c.leaf() {
			collectLeaves(c, r)
			continue
		}
		value := c.text()
		if value == "" {
			value = hrefCode(c)
		}
		if value == "" && c.attr("nilReason") == "" {
			continue
		}
		r.addField(domain.RawField{Name: c.name(), Value: value, Unit: c.attr("uom")})
	}
}

// decodeCloud flattens CloudLayer elements into the sky_condition and
// ceiling_ft_agl fields used by ADDS.
func decodeCloud(n *node, r *rawReport) {
	cloud := n.find("cloud")
	if cloud == nil {
		return
	}
	if vv := cloud.find("verticalVisibility"); vv != nil {
		r.addField(domain.RawField{Name: "verticalVisibility", Value: vv.text(), Unit: vv.attr("uom")})
	}

	var layers []domain.SkyLayer
	for _, layer := range cloud.findAll("CloudLayer") {
		amount := layer.child("amount")
		if amount == nil {
			continue
		}
		cover := hrefCode(amount)
		if cover == "" {
			cover = amount.text()
		}
		if mapped, ok := cloudAmounts[cover]; ok {
			cover = mapped
		}
		layers = append(layers, domain.SkyLayer{
			Cover:    strings.ToUpper(cover),
			BaseFeet: baseFeet(layer.child("base")),
		})
	}
	if len(layers) == 0 {
		return
	}
	r.addField(domain.RawField{Name: "sky_condition", Value: domain.FlattenSky(layers)})
	if ft, ok := domain.Ceiling(layers); ok {
		r.addField(domain.RawField{Name: "ceiling_ft_agl", Value: strconv.FormatFloat(ft, 'f', -1, 64)})
	}
}

// baseFeet converts a cloud base to feet.
func baseFeet(base *node) string {
	if base == nil {
		return ""
	}
	v, ok := domain.ParseValue(base.text()).Number()
	if !ok {
		return ""
	}
	if base.attr("uom") == "m" {
		v *= feetPerMetre
	}
	return strconv.FormatFloat(v, 'f', 0, 64)
}

func hrefCode(n *node) string {
	href := n.attr("href")
	if href == "" {
		return ""
	}
	return path.Base(strings.TrimRight(href, "/"))
}
