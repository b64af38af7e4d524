package importer

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubBenchmarks struct {
	rows      []Benchmark
	templates map[string]*BenchmarkTemplate
	err       error
	queries   []BenchmarkQuery
}

func (s *stubBenchmarks) FindBenchmarks(_ context.Context, q BenchmarkQuery) ([]Benchmark, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	var out []Benchmark
	for _, b := range s.rows {
		if b.SportCode == q.SportCode && b.SkillCode == q.SkillCode && b.AgeGroup == q.AgeGroup &&
			b.Gender == q.Gender && b.Level == q.Level {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *stubBenchmarks) FindTemplate(_ context.Context, id string) (*BenchmarkTemplate, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.templates[id], nil
}

func newApplicator(src BenchmarkSource) *BenchmarkApplicator {
	return NewBenchmarkApplicator(src, NewNGBMatcher([]string{"Athletics Ireland"}), 0, quietLogger())
}

func TestApplyBenchmarks_FixedStrategies(t *testing.T) {
	ctx := context.Background()
	a := newApplicator(nil)
	skills := []string{"passing", "tackling"}

	assert.Equal(t, map[string]int{"passing": 3, "tackling": 3},
		a.ApplyBenchmarks(ctx, BenchmarkSettings{Strategy: StrategyMiddle}, "soccer", "U12", skills))
	assert.Equal(t, map[string]int{"passing": 3, "tackling": 3},
		a.ApplyBenchmarks(ctx, BenchmarkSettings{Strategy: StrategyMiddle}, "rugby", "U18", skills))
	assert.Equal(t, map[string]int{"passing": 1, "tackling": 1},
		a.ApplyBenchmarks(ctx, BenchmarkSettings{Strategy: StrategyBlank}, "soccer", "U12", skills))
	assert.Empty(t, a.ApplyBenchmarks(ctx, BenchmarkSettings{Strategy: StrategyMiddle}, "soccer", "U12", nil))
}

func TestApplyBenchmarks_AgeAppropriate(t *testing.T) {
	ctx := context.Background()
	src := &stubBenchmarks{rows: []Benchmark{
		{SportCode: "soccer", SkillCode: "passing", AgeGroup: "U12", Gender: "all", Level: "competitive", ExpectedRating: 3.6, Source: "club"},
		{SportCode: "soccer", SkillCode: "passing", AgeGroup: "U12", Gender: "all", Level: "elite", ExpectedRating: 5, Source: "club"},
		{SportCode: "soccer", SkillCode: "tackling", AgeGroup: "U12", Gender: "female", Level: "competitive", ExpectedRating: 2.2, Source: "club"},
	}}
	a := newApplicator(src)

	got := a.ApplyBenchmarks(ctx, BenchmarkSettings{Strategy: StrategyAgeAppropriate}, "soccer", "U12",
		[]string{"passing", "tackling", "shooting"})
	assert.Equal(t, map[string]int{"passing": 4, "tackling": 3, "shooting": 3}, got)

	got = a.ApplyBenchmarks(ctx, BenchmarkSettings{Strategy: StrategyAgeAppropriate, Gender: "female"}, "soccer", "U12",
		[]string{"passing", "tackling"})
	assert.Equal(t, map[string]int{"passing": 4, "tackling": 2}, got, "female falls back to all for passing")

	got = a.ApplyBenchmarks(ctx, BenchmarkSettings{Strategy: StrategyAgeAppropriate, Level: "elite"}, "soccer", "U12",
		[]string{"passing"})
	assert.Equal(t, map[string]int{"passing": 5}, got)
}

func TestApplyBenchmarks_NGBRestrictsSources(t *testing.T) {
	ctx := context.Background()
	src := &stubBenchmarks{rows: []Benchmark{
		{SportCode: "athletics", SkillCode: "sprint", AgeGroup: "U14", Gender: "all", Level: "competitive", ExpectedRating: 4, Source: "Athletics Ireland"},
		{SportCode: "athletics", SkillCode: "jump", AgeGroup: "U14", Gender: "all", Level: "competitive", ExpectedRating: 5, Source: "coach estimate"},
		{SportCode: "athletics", SkillCode: "throw", AgeGroup: "U14", Gender: "all", Level: "competitive", ExpectedRating: 2, Source: "ngb:AAI"},
	}}
	a := newApplicator(src)

	got := a.ApplyBenchmarks(ctx, BenchmarkSettings{Strategy: StrategyNGB}, "athletics", "U14", []string{"sprint", "jump", "throw"})
	assert.Equal(t, map[string]int{"sprint": 4, "jump": 3, "throw": 2}, got)
}

func TestApplyBenchmarks_Custom(t *testing.T) {
	ctx := context.Background()
	src := &stubBenchmarks{templates: map[string]*BenchmarkTemplate{
		"tmpl-1": {ID: "tmpl-1", Ratings: map[string]float64{"passing": 5, "tackling": 0.2}},
	}}
	a := newApplicator(src)

	got := a.ApplyBenchmarks(ctx, BenchmarkSettings{Strategy: StrategyCustom, TemplateID: "tmpl-1"}, "soccer", "U12",
		[]string{"passing", "tackling", "heading"})
	assert.Equal(t, map[string]int{"passing": 5, "tackling": 1, "heading": 3}, got)

	got = a.ApplyBenchmarks(ctx, BenchmarkSettings{Strategy: StrategyCustom, TemplateID: "missing"}, "soccer", "U12",
		[]string{"passing"})
	assert.Equal(t, map[string]int{"passing": 3}, got)
}

func TestApplyBenchmarks_FailuresFallBack(t *testing.T) {
	ctx := context.Background()
	skills := []string{"passing", "tackling"}
	want := map[string]int{"passing": 3, "tackling": 3}

	failing := newApplicator(&stubBenchmarks{err: errors.New("db down")})
	for _, s := range []BenchmarkStrategy{StrategyAgeAppropriate, StrategyNGB, StrategyCustom} {
		assert.Equal(t, want, failing.ApplyBenchmarks(ctx, BenchmarkSettings{Strategy: s, TemplateID: "x"}, "soccer", "U12", skills), s)
	}

	empty := newApplicator(nil)
	for _, s := range []BenchmarkStrategy{StrategyAgeAppropriate, StrategyNGB, StrategyCustom, "bogus"} {
		assert.Equal(t, want, empty.ApplyBenchmarks(ctx, BenchmarkSettings{Strategy: s}, "soccer", "U12", skills), s)
	}
}

func TestClampRating(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{-2, 1}, {0, 1}, {1, 1}, {2.49, 2}, {2.5, 3}, {4.4, 4}, {5, 5}, {9, 5},
		{math.NaN(), 3}, {math.Inf(1), 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampRating(tt.in), "%v", tt.in)
	}
}

func TestBenchmarkStrategyValid(t *testing.T) {
	assert.True(t, StrategyNGB.Valid())
	assert.False(t, BenchmarkStrategy("random").Valid())
}
