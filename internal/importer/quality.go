package importer

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Dimension weights of the overall quality score.
const (
	WeightCompleteness = 0.30
	WeightConsistency  = 0.25
	WeightAccuracy     = 0.25
	WeightUniqueness   = 0.15
	WeightTimeliness   = 0.05
)

type QualityGrade string

const (
	GradeExcellent QualityGrade = "excellent"
	GradeGood      QualityGrade = "good"
	GradeFair      QualityGrade = "fair"
	GradePoor      QualityGrade = "poor"
	GradeCritical  QualityGrade = "critical"
)

type QualitySeverity string

const (
	QualityCritical   QualitySeverity = "critical"
	QualityWarning    QualitySeverity = "warning"
	QualitySuggestion QualitySeverity = "suggestion"
)

// AgeBounds is an inclusive plausible age range.
type AgeBounds struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (b AgeBounds) contains(age int) bool { return age >= b.Min && age <= b.Max }

// QualityOptions tunes scoring. SportAgeBounds overrides AgeBounds for SportCode.
type QualityOptions struct {
	DateOrder      DateOrder
	AgeBounds      AgeBounds
	SportCode      string
	SportAgeBounds map[string]AgeBounds
	Now            func() time.Time
}

func (o QualityOptions) bounds() AgeBounds {
	if b, ok := o.SportAgeBounds[strings.ToLower(o.SportCode)]; ok {
		return b
	}
	if o.AgeBounds == (AgeBounds{}) {
		return AgeBounds{Min: 3, Max: 25}
	}
	return o.AgeBounds
}

type DimensionScores struct {
	Completeness int `json:"completeness"`
	Consistency  int `json:"consistency"`
	Accuracy     int `json:"accuracy"`
	Uniqueness   int `json:"uniqueness"`
	Timeliness   int `json:"timeliness"`
}

// Weighted returns the rounded, clamped weighted sum of the dimensions.
func (d DimensionScores) Weighted() int {
	sum := float64(d.Completeness)*WeightCompleteness +
		float64(d.Consistency)*WeightConsistency +
		float64(d.Accuracy)*WeightAccuracy +
		float64(d.Uniqueness)*WeightUniqueness +
		float64(d.Timeliness)*WeightTimeliness
	return max(0, min(100, int(math.Round(sum))))
}

type QualityIssue struct {
	RowIndex     int             `json:"rowIndex"`
	Field        TargetField     `json:"field,omitempty"`
	Severity     QualitySeverity `json:"severity"`
	Message      string          `json:"message"`
	Value        string          `json:"value,omitempty"`
	SuggestedFix string          `json:"suggestedFix,omitempty"`
}

type QualitySummary struct {
	TotalRows       int `json:"totalRows"`
	RowsWithIssues  int `json:"rowsWithIssues"`
	CriticalCount   int `json:"criticalCount"`
	WarningCount    int `json:"warningCount"`
	SuggestionCount int `json:"suggestionCount"`
}

type QualityReport struct {
	OverallScore int             `json:"overallScore"`
	Grade        QualityGrade    `json:"grade"`
	Dimensions   DimensionScores `json:"dimensionScores"`
	Issues       []QualityIssue  `json:"issues"`
	Summary      QualitySummary  `json:"summary"`
}

// ScoreQuality computes the dataset-wide quality report. It performs no I/O.
func ScoreQuality(records []Record, opts QualityOptions) QualityReport {
	if opts.DateOrder == "" {
		opts.DateOrder = DateOrderDMY
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &scorer{records: records, opts: opts, bounds: opts.bounds(), now: opts.Now()}

	dims := DimensionScores{
		Completeness: s.completeness(),
		Consistency:  s.consistency(),
		Accuracy:     s.accuracy(),
		Uniqueness:   s.uniqueness(),
		Timeliness:   s.timeliness(),
	}
	overall := dims.Weighted()
	issues := s.issues()

	summary := QualitySummary{TotalRows: len(records)}
	rows := make(map[int]bool)
	for _, is := range issues {
		rows[is.RowIndex] = true
		switch is.Severity {
		case QualityCritical:
			summary.CriticalCount++
		case QualityWarning:
			summary.WarningCount++
		default:
			summary.SuggestionCount++
		}
	}
	summary.RowsWithIssues = len(rows)

	return QualityReport{
		OverallScore: overall,
		Grade:        gradeFor(overall),
		Dimensions:   dims,
		Issues:       issues,
		Summary:      summary,
	}
}

func gradeFor(score int) QualityGrade {
	switch {
	case score >= 90:
		return GradeExcellent
	case score >= 75:
		return GradeGood
	case score >= 60:
		return GradeFair
	case score >= 40:
		return GradePoor
	}
	return GradeCritical
}

type scorer struct {
	records []Record
	opts    QualityOptions
	bounds  AgeBounds
	now     time.Time
}

func percent(num, den int) int {
	if den == 0 {
		return 100
	}
	return int(math.Round(float64(num) / float64(den) * 100))
}

func (s *scorer) completeness() int {
	required := RequiredFields()
	filled := 0
	for _, r := range s.records {
		for _, f := range required {
			if r.Has(f) {
				filled++
			}
		}
	}
	return percent(filled, len(s.records)*len(required))
}

func (s *scorer) consistency() int {
	var total float64
	columns := 0
	for _, f := range AllFields() {
		counts := make(map[string]int)
		n := 0
		for _, r := range s.records {
			if v := r.Get(f); v != "" {
				counts[formatClass(f.Kind(), v)]++
				n++
			}
		}
		if n < 2 {
			continue
		}
		dominant := 0
		for _, c := range counts {
			dominant = max(dominant, c)
		}
		total += float64(dominant) / float64(n)
		columns++
	}
	if columns == 0 {
		return 100
	}
	return int(math.Round(total / float64(columns) * 100))
}

var shapeRe = regexp.MustCompile(`[a-z]+|[A-Z]+|[0-9]+`)

// formatClass buckets a value by the surface format of its kind.
func formatClass(kind FieldKind, v string) string {
	switch kind {
	case KindDate:
		return datePattern(v)
	case KindPhone:
		switch {
		case strings.HasPrefix(v, "+"):
			return "intl"
		case strings.HasPrefix(digitsOnly(v), "0"):
			return "national"
		}
		return "other"
	case KindEmail:
		return strconv.FormatBool(emailRe.MatchString(v))
	case KindName:
		return nameCasing(v)
	case KindGender:
		if len([]rune(v)) == 1 {
			return "letter-" + nameCasing(v)
		}
		return "word-" + nameCasing(v)
	}
	return shapeRe.ReplaceAllStringFunc(v, func(tok string) string {
		switch {
		case unicode.IsDigit(rune(tok[0])):
			return "9"
		case unicode.IsUpper(rune(tok[0])):
			return "A"
		}
		return "a"
	})
}

func nameCasing(v string) string {
	switch {
	case v == strings.ToUpper(v) && v != strings.ToLower(v):
		return "upper"
	case v == strings.ToLower(v):
		return "lower"
	case v == titleCase(v):
		return "title"
	}
	return "mixed"
}

func (s *scorer) accuracy() int {
	passed, total := 0, 0
	check := func(ok bool) {
		total++
		if ok {
			passed++
		}
	}
	for _, r := range s.records {
		for _, f := range fieldsOfKind(KindEmail) {
			if v := r.Get(f); v != "" {
				check(emailRe.MatchString(v))
			}
		}
		for _, f := range fieldsOfKind(KindPhone) {
			if v := r.Get(f); v != "" {
				check(phoneRe.MatchString(v))
			}
		}
		if v := r.Get(FieldDateOfBirth); v != "" {
			dob, ok := ParseDateOfBirth(v, s.opts.DateOrder)
			check(ok && !dob.After(s.now))
			if ok {
				check(s.bounds.contains(ageOn(dob, s.now)))
			}
		}
	}
	return percent(passed, total)
}

// identityKey is the normalized (first name, last name, date of birth) triple.
// A row missing any part has no identity and never counts as a duplicate.
func identityKey(r Record, order DateOrder) (string, bool) {
	first, last := normalizeName(r.Get(FieldFirstName)), normalizeName(r.Get(FieldLastName))
	dob := r.Get(FieldDateOfBirth)
	if first == "" || last == "" || dob == "" {
		return "", false
	}
	return first + "|" + last + "|" + CanonicalDate(dob, order), true
}

// duplicateRows returns the indices of rows repeating an earlier identity.
func (s *scorer) duplicateRows() []int {
	seen := make(map[string]bool)
	var dups []int
	for i, r := range s.records {
		key, ok := identityKey(r, s.opts.DateOrder)
		if !ok {
			continue
		}
		if seen[key] {
			dups = append(dups, i)
			continue
		}
		seen[key] = true
	}
	return dups
}

func (s *scorer) uniqueness() int {
	if len(s.records) == 0 {
		return 100
	}
	return 100 - percent(len(s.duplicateRows()), len(s.records))
}

var (
	underRe = regexp.MustCompile(`^(?:u|under)\s*-?\s*(\d{1,2})s?$`)
	overRe  = regexp.MustCompile(`^(?:o|over)\s*-?\s*(\d{1,2})s?$`)
)

// ageBand parses an age-group label into an inclusive age range measured on
// 1 January of the current season.
func ageBand(label string) (AgeBounds, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	if m := underRe.FindStringSubmatch(l); m != nil {
		n, _ := strconv.Atoi(m[1])
		return AgeBounds{Min: 0, Max: n - 1}, true
	}
	if m := overRe.FindStringSubmatch(l); m != nil {
		n, _ := strconv.Atoi(m[1])
		return AgeBounds{Min: n, Max: 120}, true
	}
	switch l {
	case "minor", "minors", "junior", "juniors":
		return AgeBounds{Min: 0, Max: 17}, true
	case "senior", "seniors", "adult", "adults":
		return AgeBounds{Min: 16, Max: 120}, true
	case "masters", "veteran", "veterans":
		return AgeBounds{Min: 35, Max: 120}, true
	}
	return AgeBounds{}, false
}

func (s *scorer) timeliness() int {
	consistent, considered := 0, 0
	seasonStart := time.Date(s.now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	for _, r := range s.records {
		dob, ok := ParseDateOfBirth(r.Get(FieldDateOfBirth), s.opts.DateOrder)
		if !ok {
			continue
		}
		considered++
		if band, ok := ageBand(r.Get(FieldAgeGroup)); ok {
			if band.contains(ageOn(dob, seasonStart)) {
				consistent++
			}
			continue
		}
		if s.bounds.contains(ageOn(dob, s.now)) {
			consistent++
		}
	}
	return percent(consistent, considered)
}

func (s *scorer) issues() []QualityIssue {
	var out []QualityIssue
	for i, r := range s.records {
		for _, f := range RequiredFields() {
			if !r.Has(f) {
				out = append(out, QualityIssue{RowIndex: i, Field: f, Severity: QualityCritical,
					Message: "Missing required field: " + string(f)})
			}
		}
		for _, f := range fieldsOfKind(KindEmail) {
			if v := r.Get(f); v != "" && !emailRe.MatchString(v) {
				is := QualityIssue{RowIndex: i, Field: f, Severity: QualityCritical, Message: "Invalid email format", Value: v}
				if fixed, ok := fixEmail(v); ok {
					is.SuggestedFix = fixed
				}
				out = append(out, is)
			}
		}
		for _, f := range fieldsOfKind(KindPhone) {
			if v := r.Get(f); v != "" && !phoneRe.MatchString(v) {
				is := QualityIssue{RowIndex: i, Field: f, Severity: QualityWarning, Message: "Invalid phone format", Value: v}
				if fixed, ok := fixPhone(v); ok {
					is.SuggestedFix = fixed
				}
				out = append(out, is)
			}
		}
		out = append(out, s.dateIssues(i, r)...)
		if !r.Has(FieldGender) {
			out = append(out, QualityIssue{RowIndex: i, Field: FieldGender, Severity: QualityWarning,
				Message: "Missing recommended field: gender"})
		}
		if !r.Has(FieldEmail) && !r.Has(FieldPhone) && !r.Has(FieldGuardianEmail) && !r.Has(FieldGuardianPhone) {
			out = append(out, QualityIssue{RowIndex: i, Severity: QualityWarning,
				Message: "No contact details (email or phone) for player or guardian"})
		}
		for _, f := range []TargetField{FieldFirstName, FieldLastName} {
			if v := r.Get(f); v != "" && titleCase(v) != v {
				out = append(out, QualityIssue{RowIndex: i, Field: f, Severity: QualitySuggestion,
					Message: "Name is not title-cased", Value: v, SuggestedFix: titleCase(v)})
			}
		}
	}
	for _, i := range s.duplicateRows() {
		r := s.records[i]
		out = append(out, QualityIssue{RowIndex: i, Severity: QualityCritical,
			Message: fmt.Sprintf("Duplicate row: %s %s (%s)", r.Get(FieldFirstName), r.Get(FieldLastName), r.Get(FieldDateOfBirth))})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].RowIndex < out[b].RowIndex })
	return out
}

func (s *scorer) dateIssues(i int, r Record) []QualityIssue {
	v := r.Get(FieldDateOfBirth)
	if v == "" {
		return nil
	}
	p := parseDate(v, s.opts.DateOrder)
	if !p.ok() {
		return []QualityIssue{{RowIndex: i, Field: FieldDateOfBirth, Severity: QualityWarning, Value: v,
			Message: "Unrecognized date format (expected DD/MM/YYYY or YYYY-MM-DD)"}}
	}
	var out []QualityIssue
	if p.form != dateISO {
		out = append(out, QualityIssue{RowIndex: i, Field: FieldDateOfBirth, Severity: QualityWarning, Value: v,
			Message: "Non-standard date format, consider YYYY-MM-DD", SuggestedFix: p.chosen.Format(isoLayout)})
	}
	if age := ageOn(p.chosen, s.now); !s.bounds.contains(age) {
		out = append(out, QualityIssue{RowIndex: i, Field: FieldDateOfBirth, Severity: QualityWarning, Value: v,
			Message: fmt.Sprintf("Age %d is outside expected range (%d-%d)", age, s.bounds.Min, s.bounds.Max)})
	}
	return out
}
