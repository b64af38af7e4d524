package importer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateOrder decides how ambiguous day/month dates such as 03/04/2012 are read.
type DateOrder string

const (
	DateOrderDMY    DateOrder = "dmy"
	DateOrderMDY    DateOrder = "mdy"
	DateOrderStrict DateOrder = "strict"
)

func (o DateOrder) Valid() bool {
	switch o {
	case DateOrderDMY, DateOrderMDY, DateOrderStrict:
		return true
	}
	return false
}

const isoLayout = "2006-01-02"

var (
	isoDateRe    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	looseISORe   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	slashDateRe  = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2}|\d{4})$`)
	yearFirstRe  = regexp.MustCompile(`^(\d{4})[/.](\d{1,2})[/.](\d{1,2})$`)
	compactISORe = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
)

type dateForm int

const (
	dateInvalid dateForm = iota
	dateISO
	dateNormalized
	dateAmbiguous
	dateReparsed
)

type dateParse struct {
	form dateForm
	// chosen is the reading the configured order selects; zero when none.
	chosen time.Time
	// readings holds both candidates of an ambiguous day/month date.
	readings []time.Time
}

func (p dateParse) ok() bool { return !p.chosen.IsZero() }

func civilDate(y, m, d int) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return t, t.Day() == d && int(t.Month()) == m
}

// currentYear anchors two-digit years.
var currentYear = func() int { return time.Now().Year() }

// expandYear reads a two-digit year as the latest year not after the current
// one, so birth years never land in the future.
func expandYear(s string) int {
	y, _ := strconv.Atoi(s)
	if len(s) != 2 {
		return y
	}
	now := currentYear()
	y += now - now%100
	if y > now {
		y -= 100
	}
	return y
}

func parseDate(raw string, order DateOrder) dateParse {
	s := strings.TrimSpace(raw)
	if isoDateRe.MatchString(s) {
		if t, err := time.Parse(isoLayout, s); err == nil {
			return dateParse{form: dateISO, chosen: t}
		}
		return dateParse{form: dateInvalid}
	}
	if m := looseISORe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if t, ok := civilDate(y, mo, d); ok {
			return dateParse{form: dateNormalized, chosen: t}
		}
		return dateParse{form: dateInvalid}
	}
	if m := slashDateRe.FindStringSubmatch(s); m != nil {
		return parseDayMonth(m[1], m[2], m[3], order)
	}
	for _, re := range []*regexp.Regexp{yearFirstRe, compactISORe} {
		if m := re.FindStringSubmatch(s); m != nil {
			y, _ := strconv.Atoi(m[1])
			mo, _ := strconv.Atoi(m[2])
			d, _ := strconv.Atoi(m[3])
			if t, ok := civilDate(y, mo, d); ok {
				return dateParse{form: dateReparsed, chosen: t}
			}
		}
	}
	return dateParse{form: dateInvalid}
}

func parseDayMonth(a, b, year string, order DateOrder) dateParse {
	p1, _ := strconv.Atoi(a)
	p2, _ := strconv.Atoi(b)
	y := expandYear(year)

	dayFirst, dfOK := civilDate(y, p2, p1)
	monthFirst, mfOK := civilDate(y, p1, p2)

	switch {
	case dfOK && mfOK && !dayFirst.Equal(monthFirst):
		p := dateParse{form: dateAmbiguous, readings: []time.Time{dayFirst, monthFirst}}
		switch order {
		case DateOrderMDY:
			p.chosen = monthFirst
		case DateOrderStrict:
		default:
			p.chosen = dayFirst
		}
		return p
	case dfOK:
		return dateParse{form: dateNormalized, chosen: dayFirst}
	case mfOK:
		return dateParse{form: dateNormalized, chosen: monthFirst}
	}
	return dateParse{form: dateInvalid}
}

// CanonicalDate returns the ISO form of raw when it can be read under order,
// and the lowercased input otherwise.
func CanonicalDate(raw string, order DateOrder) string {
	p := parseDate(raw, order)
	if p.ok() {
		return p.chosen.Format(isoLayout)
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

// ParseDateOfBirth returns the date raw denotes under order.
func ParseDateOfBirth(raw string, order DateOrder) (time.Time, bool) {
	p := parseDate(raw, order)
	return p.chosen, p.ok()
}

// ageOn returns completed years between dob and now.
func ageOn(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// datePattern classifies the textual shape of a date for consistency scoring.
func datePattern(raw string) string {
	s := strings.TrimSpace(raw)
	switch {
	case isoDateRe.MatchString(s):
		return "iso"
	case looseISORe.MatchString(s):
		return "iso-loose"
	case slashDateRe.MatchString(s):
		sep := strings.IndexAny(s, "/.-")
		parts := slashDateRe.FindStringSubmatch(s)
		return "dmy" + string(s[sep]) + strconv.Itoa(len(parts[3]))
	case yearFirstRe.MatchString(s):
		return "ymd-slash"
	case compactISORe.MatchString(s):
		return "compact"
	}
	return "other"
}
