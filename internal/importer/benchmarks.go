package importer

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"
)

// BenchmarkStrategy selects how initial skill ratings are seeded.
type BenchmarkStrategy string

const (
	StrategyBlank          BenchmarkStrategy = "blank"
	StrategyMiddle         BenchmarkStrategy = "middle"
	StrategyAgeAppropriate BenchmarkStrategy = "age-appropriate"
	StrategyNGB            BenchmarkStrategy = "ngb-benchmarks"
	StrategyCustom         BenchmarkStrategy = "custom"
)

func (s BenchmarkStrategy) Valid() bool {
	switch s {
	case StrategyBlank, StrategyMiddle, StrategyAgeAppropriate, StrategyNGB, StrategyCustom:
		return true
	}
	return false
}

const (
	MinRating      = 1
	MaxRating      = 5
	FallbackRating = 3

	GenderAll    = "all"
	DefaultLevel = "competitive"
)

// BenchmarkSettings is the single strategy of one import run.
type BenchmarkSettings struct {
	Strategy   BenchmarkStrategy `json:"strategy"`
	TemplateID string            `json:"templateId,omitempty"`
	Gender     string            `json:"gender,omitempty"`
	Level      string            `json:"level,omitempty"`
}

type BenchmarkQuery struct {
	SportCode string
	SkillCode string
	AgeGroup  string
	Gender    string
	Level     string
}

type Benchmark struct {
	SportCode      string
	SkillCode      string
	AgeGroup       string
	Gender         string
	Level          string
	ExpectedRating float64
	Source         string
}

type BenchmarkTemplate struct {
	ID      string
	Name    string
	Ratings map[string]float64
}

// BenchmarkSource is the read-only reference data behind the applicator.
// FindTemplate returns nil, nil for an unknown id.
type BenchmarkSource interface {
	FindBenchmarks(ctx context.Context, q BenchmarkQuery) ([]Benchmark, error)
	FindTemplate(ctx context.Context, templateID string) (*BenchmarkTemplate, error)
}

// NGBMatcher reports whether a benchmark source is a national governing body.
type NGBMatcher func(source string) bool

// NewNGBMatcher accepts sources prefixed "ngb:" or named in known.
func NewNGBMatcher(known []string) NGBMatcher {
	set := make(map[string]bool, len(known))
	for _, k := range known {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			set[k] = true
		}
	}
	return func(source string) bool {
		s := strings.ToLower(strings.TrimSpace(source))
		return strings.HasPrefix(s, "ngb:") || set[s]
	}
}

// BenchmarkApplicator computes initial ratings. It never fails: every miss
// falls back to FallbackRating and is logged.
type BenchmarkApplicator struct {
	source  BenchmarkSource
	isNGB   NGBMatcher
	timeout time.Duration
	logger  *slog.Logger
}

func NewBenchmarkApplicator(source BenchmarkSource, isNGB NGBMatcher, timeout time.Duration, logger *slog.Logger) *BenchmarkApplicator {
	if isNGB == nil {
		isNGB = NewNGBMatcher(nil)
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BenchmarkApplicator{source: source, isNGB: isNGB, timeout: timeout, logger: logger}
}

// ApplyBenchmarks returns a rating in [1,5] for every requested skill.
func (a *BenchmarkApplicator) ApplyBenchmarks(ctx context.Context, settings BenchmarkSettings, sportCode, ageGroup string, skills []string) map[string]int {
	out := make(map[string]int, len(skills))
	fill := func(r int) {
		for _, s := range skills {
			out[s] = r
		}
	}

	switch settings.Strategy {
	case StrategyBlank:
		fill(MinRating)
	case StrategyMiddle:
		fill(FallbackRating)
	case StrategyAgeAppropriate, StrategyNGB:
		for _, skill := range skills {
			out[skill] = a.lookupRating(ctx, settings, sportCode, ageGroup, skill)
		}
	case StrategyCustom:
		a.applyTemplate(ctx, settings.TemplateID, skills, out)
	default:
		a.miss(ctx, "unknown strategy", "strategy", settings.Strategy)
		fill(FallbackRating)
	}
	return out
}

func (a *BenchmarkApplicator) lookupRating(ctx context.Context, settings BenchmarkSettings, sportCode, ageGroup, skill string) int {
	if a.source == nil {
		a.miss(ctx, "no benchmark source configured", "skill", skill)
		return FallbackRating
	}
	gender := strings.ToLower(settings.Gender)
	if gender == "" {
		gender = GenderAll
	}
	level := settings.Level
	if level == "" {
		level = DefaultLevel
	}

	genders := []string{gender}
	if gender != GenderAll {
		genders = append(genders, GenderAll)
	}
	for _, g := range genders {
		q := BenchmarkQuery{SportCode: sportCode, SkillCode: skill, AgeGroup: ageGroup, Gender: g, Level: level}
		lookupCtx, cancel := context.WithTimeout(ctx, a.timeout)
		rows, err := a.source.FindBenchmarks(lookupCtx, q)
		cancel()
		if err != nil {
			a.miss(ctx, "benchmark lookup failed", "skill", skill, "error", err)
			return FallbackRating
		}
		for _, b := range rows {
			if settings.Strategy == StrategyNGB && !a.isNGB(b.Source) {
				continue
			}
			return ClampRating(b.ExpectedRating)
		}
	}
	a.miss(ctx, "no benchmark for skill", "strategy", settings.Strategy, "sport", sportCode,
		"skill", skill, "age_group", ageGroup, "gender", gender, "level", level)
	return FallbackRating
}

func (a *BenchmarkApplicator) applyTemplate(ctx context.Context, templateID string, skills []string, out map[string]int) {
	var tmpl *BenchmarkTemplate
	if a.source != nil && templateID != "" {
		lookupCtx, cancel := context.WithTimeout(ctx, a.timeout)
		t, err := a.source.FindTemplate(lookupCtx, templateID)
		cancel()
		if err != nil {
			a.miss(ctx, "template lookup failed", "template_id", templateID, "error", err)
		}
		tmpl = t
	}
	if tmpl == nil {
		a.miss(ctx, "benchmark template not found", "template_id", templateID)
	}
	for _, skill := range skills {
		if tmpl != nil {
			if r, ok := tmpl.Ratings[skill]; ok {
				out[skill] = ClampRating(r)
				continue
			}
			a.miss(ctx, "template has no rating for skill", "template_id", templateID, "skill", skill)
		}
		out[skill] = FallbackRating
	}
}

func (a *BenchmarkApplicator) miss(ctx context.Context, msg string, args ...any) {
	a.logger.WarnContext(ctx, "Benchmark miss: "+msg, args...)
}

// ClampRating rounds half up and clamps to [1,5]. NaN and infinities fall back.
func ClampRating(r float64) int {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return FallbackRating
	}
	v := int(math.Floor(r + 0.5))
	return max(MinRating, min(MaxRating, v))
}
