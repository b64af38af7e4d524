package importer

import (
	"math"
	"regexp"
	"strings"
)

var ageGroupRe = regexp.MustCompile(`^(u|under|o|over)\s*-?\s*(\d{1,2})s?$|^(minor|minors|junior|juniors|senior|seniors|adult|adults|masters|veterans?)$`)

// contentDetector recognises a kind of value by its shape.
type contentDetector struct {
	kind  FieldKind
	match func(string) bool
}

// Order matters on ties: dates look like phone numbers to phoneRe.
var contentDetectors = []contentDetector{
	{KindEmail, func(s string) bool { return emailRe.MatchString(s) }},
	{KindDate, func(s string) bool { return parseDate(s, DateOrderDMY).form != dateInvalid }},
	{KindGender, func(s string) bool { _, ok := NormalizeGender(s); return ok }},
	{KindAgeGroup, func(s string) bool { return ageGroupRe.MatchString(strings.ToLower(strings.TrimSpace(s))) }},
	{KindPhone, func(s string) bool {
		return phoneRe.MatchString(s) && len(digitsOnly(s)) >= 7 && parseDate(s, DateOrderDMY).form == dateInvalid
	}},
}

var guardianMarkers = []string{"parent", "guardian", "mother", "father", "mum", "dad", "emergency"}

func mentionsGuardian(normalized string) bool {
	for _, m := range guardianMarkers {
		if strings.Contains(normalized, m) {
			return true
		}
	}
	return false
}

// contentConfidence maps a match ratio in [0.5,1] onto [60,80].
func contentConfidence(ratio float64) int {
	return 60 + int(math.Round(40*(ratio-0.5)))
}

// analyzeContent returns the best (kind, ratio) over non-empty samples.
func analyzeContent(samples []string) (FieldKind, float64) {
	var values []string
	for _, s := range samples {
		if v := strings.TrimSpace(s); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return "", 0
	}

	var bestKind FieldKind
	best := 0.0
	for _, d := range contentDetectors {
		hits := 0
		for _, v := range values {
			if d.match(v) {
				hits++
			}
		}
		ratio := float64(hits) / float64(len(values))
		if ratio > best {
			bestKind, best = d.kind, ratio
		}
	}
	return bestKind, best
}

// fieldForKind picks the target a detected kind most plausibly belongs to,
// preferring guardian fields when the header mentions a parent.
func fieldForKind(kind FieldKind, normalizedColumn string, available map[TargetField]bool) TargetField {
	var primary, guardian TargetField
	switch kind {
	case KindEmail:
		primary, guardian = FieldEmail, FieldGuardianEmail
	case KindPhone:
		primary, guardian = FieldPhone, FieldGuardianPhone
	case KindDate:
		primary = FieldDateOfBirth
	case KindGender:
		primary = FieldGender
	case KindAgeGroup:
		primary = FieldAgeGroup
	default:
		return ""
	}
	order := []TargetField{primary, guardian}
	if guardian != "" && mentionsGuardian(normalizedColumn) {
		order = []TargetField{guardian, primary}
	}
	for _, f := range order {
		if f != "" && available[f] {
			return f
		}
	}
	return ""
}
