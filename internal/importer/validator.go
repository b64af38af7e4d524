package importer

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^[+]?[\d\s()\-]{7,20}$`)
)

var emailTypoFixes = map[string]string{
	"gmial.com":   "gmail.com",
	"gmai.com":    "gmail.com",
	"gamil.com":   "gmail.com",
	"gmail.co":    "gmail.com",
	"gnail.com":   "gmail.com",
	"hotmial.com": "hotmail.com",
	"hotmal.com":  "hotmail.com",
	"hotmai.com":  "hotmail.com",
	"yahooo.com":  "yahoo.com",
	"yaho.com":    "yahoo.com",
	"outloo.com":  "outlook.com",
	"outlok.com":  "outlook.com",
	"eircom.ent":  "eircom.net",
}

// Autofix confidences per fix family.
const (
	fixConfidenceEmail = 80
	fixConfidencePhone = 70
	fixConfidenceDate  = 90
)

// Gender is the canonical gender enum.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

var genderWords = map[string]Gender{
	"m": GenderMale, "male": GenderMale, "boy": GenderMale, "man": GenderMale, "b": GenderMale,
	"f": GenderFemale, "female": GenderFemale, "girl": GenderFemale, "woman": GenderFemale, "g": GenderFemale,
	"other": GenderOther, "nonbinary": GenderOther, "nb": GenderOther, "x": GenderOther,
}

// NormalizeGender maps free text to the canonical enum.
func NormalizeGender(raw string) (Gender, bool) {
	g, ok := genderWords[NormalizeColumn(raw)]
	return g, ok
}

// ValidatorConfig carries the tunable bounds of row validation.
type ValidatorConfig struct {
	DateOrder DateOrder
	MinAge    int
	MaxAge    int
	Now       func() time.Time
}

func (c ValidatorConfig) withDefaults() ValidatorConfig {
	if c.DateOrder == "" {
		c.DateOrder = DateOrderDMY
	}
	if c.MinAge == 0 && c.MaxAge == 0 {
		c.MinAge, c.MaxAge = 3, 25
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Validator checks mapped rows field by field.
type Validator struct {
	cfg ValidatorConfig
}

func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{cfg: cfg.withDefaults()}
}

func (v *Validator) Config() ValidatorConfig { return v.cfg }

// ValidateRecord returns every issue found in rec, in check priority order:
// required fields, emails, phones, date of birth, gender.
func (v *Validator) ValidateRecord(rowIndex int, rec Record) []ValidationIssue {
	var issues []ValidationIssue
	add := func(is ValidationIssue) {
		is.RowIndex = rowIndex
		issues = append(issues, is)
	}

	for _, f := range RequiredFields() {
		if !rec.Has(f) {
			def, _ := LookupField(f)
			add(ValidationIssue{Field: f, Severity: SeverityError, Code: IssueRequired,
				Message: fmt.Sprintf("%s is required", def.Label)})
		}
	}

	for _, f := range fieldsOfKind(KindEmail) {
		if val := rec.Get(f); val != "" {
			if is, bad := checkEmail(f, val); bad {
				add(is)
			}
		}
	}

	for _, f := range fieldsOfKind(KindPhone) {
		if val := rec.Get(f); val != "" && !phoneRe.MatchString(val) {
			is := ValidationIssue{Field: f, Severity: SeverityError, Code: IssueInvalidPhone,
				Message: "Invalid phone format", Value: val}
			if fixed, ok := fixPhone(val); ok {
				is.AutoFix, is.AutoFixConfidence = &fixed, fixConfidencePhone
			}
			add(is)
		}
	}

	if val := rec.Get(FieldDateOfBirth); val != "" {
		if is, bad := v.checkDateOfBirth(val); bad {
			add(is)
		}
	}

	if val := rec.Get(FieldGender); val != "" {
		if _, ok := NormalizeGender(val); !ok {
			add(ValidationIssue{Field: FieldGender, Severity: SeverityWarning, Code: IssueUnrecognizedGender,
				Message: "Unrecognized gender value (expected male, female or other)", Value: val})
		}
	}

	return issues
}

func checkEmail(f TargetField, val string) (ValidationIssue, bool) {
	fixed, hasFix := fixEmail(val)
	if !emailRe.MatchString(val) {
		is := ValidationIssue{Field: f, Severity: SeverityError, Code: IssueInvalidEmail,
			Message: "Invalid email format", Value: val}
		if hasFix && emailRe.MatchString(fixed) {
			is.AutoFix, is.AutoFixConfidence = &fixed, fixConfidenceEmail
		}
		return is, true
	}
	if hasFix {
		return ValidationIssue{Field: f, Severity: SeverityWarning, Code: IssueEmailTypo,
			Message: "Email domain looks misspelled", Value: val,
			AutoFix: &fixed, AutoFixConfidence: fixConfidenceEmail}, true
	}
	return ValidationIssue{}, false
}

func fixEmail(val string) (string, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(val), " ", "")
	at := strings.LastIndex(s, "@")
	if at <= 0 {
		return "", false
	}
	domain := strings.ToLower(s[at+1:])
	domain = strings.TrimSuffix(domain, ".")
	if fixed, ok := emailTypoFixes[domain]; ok {
		return s[:at] + "@" + fixed, true
	}
	if s != val && emailRe.MatchString(s) {
		return s, true
	}
	return "", false
}

// fixPhone rewrites Irish (08x) and UK (07x) mobiles to E.164.
func fixPhone(val string) (string, bool) {
	digits := digitsOnly(val)
	if len(digits) < 7 {
		return "", false
	}
	switch {
	case strings.HasPrefix(digits, "08") && len(digits) == 10:
		return "+353" + digits[1:], true
	case strings.HasPrefix(digits, "07") && len(digits) == 11:
		return "+44" + digits[1:], true
	case strings.HasPrefix(strings.TrimSpace(val), "+") && len(digits) <= 15:
		return "+" + digits, true
	}
	return "", false
}

func (v *Validator) checkDateOfBirth(val string) (ValidationIssue, bool) {
	now := v.cfg.Now()
	p := parseDate(val, v.cfg.DateOrder)
	base := ValidationIssue{Field: FieldDateOfBirth, Value: val}

	future := func(t time.Time) bool { return t.After(now) }

	switch p.form {
	case dateISO:
		if future(p.chosen) {
			base.Severity, base.Code, base.Message = SeverityError, IssueFutureDate, "Date of birth is in the future"
			return base, true
		}
		return base, false

	case dateNormalized, dateAmbiguous:
		if !p.ok() {
			// strict order with two valid readings
			base.Severity, base.Code = SeverityError, IssueAmbiguousDate
			base.Message = "Ambiguous date: day and month cannot be told apart"
			var plausible []time.Time
			for _, t := range p.readings {
				if !future(t) && v.plausibleAge(ageOn(t, now)) {
					plausible = append(plausible, t)
				}
			}
			if len(plausible) == 1 {
				fixed := plausible[0].Format(isoLayout)
				base.AutoFix, base.AutoFixConfidence = &fixed, fixConfidenceDate
			}
			return base, true
		}
		if future(p.chosen) {
			base.Severity, base.Code, base.Message = SeverityError, IssueFutureDate, "Date of birth is in the future"
			return base, true
		}
		fixed := p.chosen.Format(isoLayout)
		base.Severity, base.Code = SeverityWarning, IssueDateNormalized
		base.Message = "Non-standard date format, will be stored as " + fixed
		if p.form == dateAmbiguous {
			base.Message = fmt.Sprintf("Ambiguous date read as %s (%s order)", fixed, v.cfg.DateOrder)
		}
		base.AutoFix, base.AutoFixConfidence = &fixed, fixConfidenceDate
		return base, true

	case dateReparsed:
		base.Severity, base.Code = SeverityError, IssueInvalidDate
		base.Message = "Unrecognized date format (expected DD/MM/YYYY or YYYY-MM-DD)"
		if !future(p.chosen) {
			fixed := p.chosen.Format(isoLayout)
			base.AutoFix, base.AutoFixConfidence = &fixed, fixConfidenceDate
		}
		return base, true
	}

	base.Severity, base.Code = SeverityError, IssueInvalidDate
	base.Message = "Unrecognized date format (expected DD/MM/YYYY or YYYY-MM-DD)"
	return base, true
}

func (v *Validator) plausibleAge(age int) bool {
	return age >= v.cfg.MinAge && age <= v.cfg.MaxAge
}

// ApplyAutoFixes returns a copy of rec with every suggested fix applied and
// gender normalized to its canonical value.
func ApplyAutoFixes(rec Record, issues []ValidationIssue) Record {
	out := rec.Clone()
	for _, is := range issues {
		if is.AutoFix != nil && is.Field != "" {
			out[is.Field] = *is.AutoFix
		}
	}
	if g, ok := NormalizeGender(out.Get(FieldGender)); ok {
		out[FieldGender] = string(g)
	}
	return out
}

// ApplyAutoFixesAndRevalidate fixes rec and validates the result again, so
// only the issues that survive the fixes are reported.
func (v *Validator) ApplyAutoFixesAndRevalidate(rowIndex int, rec Record) (Record, []ValidationIssue) {
	issues := v.ValidateRecord(rowIndex, rec)
	if len(issues) == 0 {
		return ApplyAutoFixes(rec, nil), nil
	}
	fixed := ApplyAutoFixes(rec, issues)
	return fixed, v.ValidateRecord(rowIndex, fixed)
}

// CanonicalRecord returns a copy of rec in its stored form: dates that can be
// read under the configured order become ISO and gender becomes its enum.
// Values that cannot be read are kept as they are.
func (v *Validator) CanonicalRecord(rec Record) Record {
	out := rec.Clone()
	for _, f := range fieldsOfKind(KindDate) {
		raw := out.Get(f)
		if raw == "" {
			continue
		}
		if t, ok := ParseDateOfBirth(raw, v.cfg.DateOrder); ok {
			out[f] = t.Format(isoLayout)
		}
	}
	if g, ok := NormalizeGender(out.Get(FieldGender)); ok {
		out[FieldGender] = string(g)
	}
	return out
}
