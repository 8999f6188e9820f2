package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ThresholdRule is an operator-configured marginal/severe cutoff pair for one
// parameter. Flipped rules treat lower values as worse (ceiling, visibility).
type ThresholdRule struct {
	Parameter string  `json:"parameter"`
	Marginal  float64 `json:"marginal"`
	Severe    float64 `json:"severe"`
	Flipped   bool    `json:"flipped,omitempty"`
}

// Validate checks rule invariants.
func (r ThresholdRule) Validate() error {
	if strings.TrimSpace(r.Parameter) == "" {
		return errors.New("threshold rule: empty parameter")
	}
	if math.IsNaN(r.Marginal) || math.IsNaN(r.Severe) {
		return fmt.Errorf("threshold rule %s: cutoffs must be numbers", r.Parameter)
	}
	return nil
}

// ValidateRules checks every rule and rejects a rule set naming the same
// parameter twice, since a property can carry only one color.
func ValidateRules(rules []ThresholdRule) error {
	seen := make(map[string]struct{}, len(rules))
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		if _, dup := seen[r.Parameter]; dup {
			return fmt.Errorf("rule %d: duplicate parameter %s", i, r.Parameter)
		}
		seen[r.Parameter] = struct{}{}
	}
	return nil
}

// exceeds reports whether v is past the cutoff in the rule's direction.
func (r ThresholdRule) exceeds(v, cutoff float64) bool {
	if r.Flipped {
		return v < cutoff
	}
	return v > cutoff
}

// Band returns the color a numeric value earns under this rule.
func (r ThresholdRule) Band(v float64) Severity {
	switch {
	case r.exceeds(v, r.Severe):
		return SeveritySevere
	case r.exceeds(v, r.Marginal):
		return SeverityMarginal
	default:
		return SeverityGood
	}
}

// Thresholded reports whether any rule targets the parameter.
func Thresholded(rules []ThresholdRule, parameter string) bool {
	for _, r := range rules {
		if r.Parameter == parameter {
			return true
		}
	}
	return false
}

// Classify colors the observation's properties against rules and returns the
// aggregate color, which is also stored on the observation. Rules are
// expected to pass ValidateRules.
//
// Every pass starts from a clean slate: properties no rule reaches end up
// neutral, so colors left by an earlier rule set never leak through. Absent
// properties, NoReading and non-numeric values are skipped. A property's own
// color is never downgraded by the record-level precedence; the aggregate is
// the highest color seen, Good when no rule matched. Observers only fire for
// properties whose color actually changed, so repeated passes are quiet.
func Classify(obs *Observation, rules []ThresholdRule) Severity {
	next := make(map[string]Severity, len(rules))
	aggregate := SeverityGood

	for _, rule := range rules {
		p := obs.Properties[rule.Parameter]
		if p == nil || p.Value.IsNoReading() {
			continue
		}
		v, ok := p.Value.Number()
		if !ok {
			continue
		}
		band := rule.Band(v)
		next[p.Name] = band
		if band > aggregate {
			aggregate = band
		}
	}

	for name, p := range obs.Properties {
		p.SetColor(next[name])
	}
	obs.Severity = aggregate
	return aggregate
}

// ClassifyAll runs Classify over a batch and returns the per-color counts.
func ClassifyAll(records []*Observation, rules []ThresholdRule) map[Severity]int {
	counts := make(map[Severity]int, 3)
	for _, obs := range records {
		counts[Classify(obs, rules)]++
	}
	return counts
}

// ClearClassification resets every property and the aggregate to neutral,
// restoring the un-thresholded presentation.
func ClearClassification(obs *Observation) {
	for _, p := range obs.Properties {
		p.SetColor(SeverityNone)
	}
	obs.Severity = SeverityNone
}
