package parser

import (
	"fmt"
	"strconv"

	"github.com/couchcryptid/aviation-weather-etl/internal/domain"
)

// addsTags maps ADDS data element names to report tags.
var addsTags = map[string]string{
	"METAR":          TagMetar,
	"METARSpeci":     TagMetar,
	"TAF":            TagTaf,
	"AIRSIGMET":      TagSigmet,
	"AircraftReport": TagAircraftReport,
	"SITEMETAR":      TagSiteList,
	"Station":        TagSiteList,
}

// addsMeta are ADDS elements that describe the report rather than the
// weather. They never become properties.
var addsMeta = map[string]struct{}{
	metaRawText:         {},
	metaStationID:       {},
	metaAircraftRef:     {},
	metaObservationTime: {},
	metaValidFrom:       {},
	metaLatitude:        {},
	metaLongitude:       {},
	"valid_time_to":     {},
	"issue_time":        {},
	"bulletin_time":     {},
	"receipt_time":      {},
	"fcst_time_from":    {},
	"fcst_time_to":      {},
	"time_becoming":     {},
	"site":              {},
	"country":           {},
	"state":             {},
}

// addsMetaFields are ADDS elements recorded as metadata that still become
// properties.
var addsMetaFields = map[string]struct{}{
	metaElevation:    {},
	metaAdvisoryType: {},
}

// decodeADDS walks <response><data> and produces one rawReport per child.
func decodeADDS(root *node) ([]*rawReport, error) {
	data := root.child("data")
	if data == nil {
		return nil, fmt.Errorf("%w: response has no data element", domain.ErrInvalidDocument)
	}

	reports := make([]*rawReport, 0, len(data.Nodes))
	for i := range data.Nodes {
		el := &data.Nodes[i]
		r := newRawReport(i, el.name(), addsTags[el.name()])
		if r.tag != "" {
			decodeADDSReport(el, r)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func decodeADDSReport(el *node, r *rawReport) {
	var sky []domain.SkyLayer
	forecastSeen := false

	for i := range el.Nodes {
		c := &el.Nodes[i]
		name := c.name()
		switch name {
		case "sky_condition":
			sky = append(sky, domain.SkyLayer{
				Cover:    c.attr("sky_cover"),
				BaseFeet: c.attr("cloud_base_ft_agl"),
			})
			continue
		case "turbulence_condition", "icing_condition":
			r.addField(domain.RawField{Name: name, Value: domain.FlattenAttributes(attrFields(c))})
			continue
		case "area":
			r.geometry = geometryArea
			r.boundary = areaVertices(c)
			continue
		case "forecast":
			// TAF change groups after the first describe later periods.
			if !forecastSeen {
				forecastSeen = true
				decodeADDSReport(c, r)
			}
			continue
		}

		if _, ok := addsMeta[name]; ok {
			r.meta[name] = c.text()
			continue
		}
		if _, ok := addsMetaFields[name]; ok {
			r.meta[name] = c.text()
		}

		if !c.leaf() {
			continue
		}
		for _, a := range c.Attrs {
			if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
				continue
			}
			attrName := name + "_" + a.Name.Local
			r.addField(domain.RawField{Name: attrName, Value: a.Value})
			if attrName == metaHazard {
				r.meta[metaHazard] = a.Value
			}
		}
		if text := c.text(); text != "" || len(c.Attrs) == 0 {
			r.addField(domain.RawField{Name: name, Value: text})
		}
	}

	if len(sky) > 0 {
		r.addField(domain.RawField{Name: "sky_condition", Value: domain.FlattenSky(sky)})
		if ft, ok := domain.Ceiling(sky); ok {
			r.addField(domain.RawField{Name: "ceiling_ft_agl", Value: strconv.FormatFloat(ft, 'f', -1, 64)})
		}
	}

	if r.geometry == "" {
		if pos, ok := parseLatLon(r.meta[metaLatitude], r.meta[metaLongitude]); ok {
			r.geometry = geometryPoint
			r.point = pos
		}
	}
}

func attrFields(n *node) []domain.RawField {
	out := make([]domain.RawField, 0, len(n.Attrs))
	for _, a := range n.Attrs {
		out = append(out, domain.RawField{Name: a.Name.Local, Value: a.Value})
	}
	return out
}

// areaVertices reads <area><point><latitude/><longitude/></point>...</area>.
// Points with unusable coordinates are skipped.
func areaVertices(area *node) []domain.LatLon {
	points := area.children("point")
	out := make([]domain.LatLon, 0, len(points))
	for _, p := range points {
		if pos, ok := parseLatLon(p.childText("latitude"), p.childText("longitude")); ok {
			out = append(out, *pos)
		}
	}
	return out
}
