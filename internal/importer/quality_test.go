package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoreOpts() QualityOptions {
	return QualityOptions{DateOrder: DateOrderDMY, AgeBounds: AgeBounds{Min: 3, Max: 25}, Now: nowFunc}
}

func TestScoreQuality_EmptyDataset(t *testing.T) {
	report := ScoreQuality(nil, scoreOpts())
	assert.Equal(t, 100, report.OverallScore)
	assert.Equal(t, GradeExcellent, report.Grade)
	assert.Equal(t, DimensionScores{100, 100, 100, 100, 100}, report.Dimensions)
	assert.Empty(t, report.Issues)
}

func TestScoreQuality_CleanDataset(t *testing.T) {
	records := []Record{
		{FieldFirstName: "John", FieldLastName: "Doe", FieldDateOfBirth: "2012-01-01", FieldGender: "male", FieldEmail: "j@doe.ie"},
		{FieldFirstName: "Mary", FieldLastName: "Murphy", FieldDateOfBirth: "2011-07-15", FieldGender: "female", FieldEmail: "m@murphy.ie"},
	}
	report := ScoreQuality(records, scoreOpts())
	assert.Equal(t, DimensionScores{100, 100, 100, 100, 100}, report.Dimensions)
	assert.Equal(t, 100, report.OverallScore)
	assert.Empty(t, report.Issues)
	assert.Equal(t, 2, report.Summary.TotalRows)
}

func TestScoreQuality_Dimensions(t *testing.T) {
	records := []Record{
		{FieldFirstName: "John", FieldLastName: "Doe", FieldDateOfBirth: "2012-05-01", FieldAgeGroup: "U12"},
		{FieldFirstName: "john", FieldLastName: "DOE", FieldDateOfBirth: "01/05/2012", FieldAgeGroup: "U12"},
		{FieldFirstName: "Amy", FieldDateOfBirth: "2008-03-01", FieldAgeGroup: "U12", FieldEmail: "amy@"},
		{FieldFirstName: "Zoe", FieldLastName: "Byrne", FieldDateOfBirth: "2015-09-09", FieldAgeGroup: "U10"},
	}
	report := ScoreQuality(records, scoreOpts())

	// 11 of 12 required cells filled.
	assert.Equal(t, 92, report.Dimensions.Completeness)
	// Row 1 repeats row 0 once names and dates are normalized.
	assert.Equal(t, 75, report.Dimensions.Uniqueness)
	// Amy is 15 on 1 January, outside U12.
	assert.Equal(t, 75, report.Dimensions.Timeliness)
	// 1 bad email out of 4 dates, 4 ages and 1 email.
	assert.Equal(t, 89, report.Dimensions.Accuracy)

	assert.Equal(t, report.Dimensions.Weighted(), report.OverallScore)

	var duplicates, missing int
	for _, is := range report.Issues {
		if is.Severity == QualityCritical && is.RowIndex == 1 && is.Field == "" {
			duplicates++
		}
		if is.Field == FieldLastName && is.Severity == QualityCritical {
			missing++
		}
	}
	assert.Equal(t, 1, duplicates)
	assert.Equal(t, 1, missing)
	assert.Equal(t, 4, report.Summary.RowsWithIssues)
}

func TestScoreQuality_Consistency(t *testing.T) {
	records := []Record{
		{FieldFirstName: "John", FieldLastName: "Doe", FieldDateOfBirth: "2012-01-01"},
		{FieldFirstName: "Mary", FieldLastName: "Ryan", FieldDateOfBirth: "2012-02-01"},
		{FieldFirstName: "Tom", FieldLastName: "Kane", FieldDateOfBirth: "2012-03-01"},
		{FieldFirstName: "Ann", FieldLastName: "Hayes", FieldDateOfBirth: "04/01/2012"},
	}
	report := ScoreQuality(records, scoreOpts())
	// names are uniform; dates are 3/4 ISO: (1 + 1 + 0.75) / 3
	assert.Equal(t, 92, report.Dimensions.Consistency)
}

func TestScoreQuality_SportAgeBounds(t *testing.T) {
	records := []Record{{FieldFirstName: "Old", FieldLastName: "Timer", FieldDateOfBirth: "1970-01-01"}}

	opts := scoreOpts()
	assert.Less(t, ScoreQuality(records, opts).Dimensions.Accuracy, 100)

	opts.SportCode = "golf"
	opts.SportAgeBounds = map[string]AgeBounds{"golf": {Min: 8, Max: 90}}
	assert.Equal(t, 100, ScoreQuality(records, opts).Dimensions.Accuracy)
}

func TestScoreQuality_OverallIsWeightedSum(t *testing.T) {
	datasets := [][]Record{
		{{}},
		{{FieldFirstName: "a"}, {FieldFirstName: "a"}, {FieldEmail: "x"}},
		{{FieldFirstName: "A", FieldLastName: "B", FieldDateOfBirth: "99/99/9999", FieldPhone: "??"}},
	}
	for i, records := range datasets {
		report := ScoreQuality(records, scoreOpts())
		for _, d := range []int{
			report.Dimensions.Completeness, report.Dimensions.Consistency, report.Dimensions.Accuracy,
			report.Dimensions.Uniqueness, report.Dimensions.Timeliness,
		} {
			assert.GreaterOrEqual(t, d, 0, "dataset %d", i)
			assert.LessOrEqual(t, d, 100, "dataset %d", i)
		}
		assert.Equal(t, report.Dimensions.Weighted(), report.OverallScore, "dataset %d", i)
		assert.GreaterOrEqual(t, report.OverallScore, 0)
		assert.LessOrEqual(t, report.OverallScore, 100)
	}
}

func TestWeighted(t *testing.T) {
	d := DimensionScores{Completeness: 80, Consistency: 60, Accuracy: 80, Uniqueness: 100, Timeliness: 0}
	// 24 + 15 + 20 + 15 + 0
	assert.Equal(t, 74, d.Weighted())
	assert.Equal(t, 100, DimensionScores{100, 100, 100, 100, 100}.Weighted())
}

func TestGradeFor(t *testing.T) {
	assert.Equal(t, GradeExcellent, gradeFor(90))
	assert.Equal(t, GradeGood, gradeFor(89))
	assert.Equal(t, GradeFair, gradeFor(60))
	assert.Equal(t, GradePoor, gradeFor(40))
	assert.Equal(t, GradeCritical, gradeFor(39))
}

func TestAgeBand(t *testing.T) {
	tests := []struct {
		label string
		want  AgeBounds
		ok    bool
	}{
		{"U12", AgeBounds{0, 11}, true},
		{"u-14", AgeBounds{0, 13}, true},
		{"Under 16s", AgeBounds{0, 15}, true},
		{"O35", AgeBounds{35, 120}, true},
		{"Minor", AgeBounds{0, 17}, true},
		{"Senior", AgeBounds{16, 120}, true},
		{"Blue", AgeBounds{}, false},
	}
	for _, tt := range tests {
		got, ok := ageBand(tt.label)
		require.Equal(t, tt.ok, ok, tt.label)
		assert.Equal(t, tt.want, got, tt.label)
	}
}

func TestScoreQuality_IncompleteIdentityIsNotADuplicate(t *testing.T) {
	records := []Record{
		{FieldFirstName: "John", FieldLastName: "Doe"},
		{FieldFirstName: "John", FieldLastName: "Doe"},
	}
	report := ScoreQuality(records, scoreOpts())
	assert.Equal(t, 100, report.Dimensions.Uniqueness)
}
