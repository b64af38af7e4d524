package importer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSimulator(lookup ExistingPlayerLookup) *Simulator {
	return NewSimulator(testValidator(DateOrderDMY), NewDuplicateDetector(lookup, DateOrderDMY, 0.85, 0), quietLogger())
}

var rosterMappings = []ColumnMapping{
	{SourceColumn: "First", ColumnIndex: 0, TargetField: FieldFirstName},
	{SourceColumn: "Last", ColumnIndex: 1, TargetField: FieldLastName},
	{SourceColumn: "DOB", ColumnIndex: 2, TargetField: FieldDateOfBirth},
	{SourceColumn: "Email", ColumnIndex: 3, TargetField: FieldEmail},
	{SourceColumn: "Notes", ColumnIndex: 4},
}

func assertSummaryConsistent(t *testing.T, res SimulationResult) {
	t.Helper()
	s := res.Summary
	assert.Equal(t, len(res.Previews), s.TotalRows)
	assert.Equal(t, s.TotalRows, s.Create+s.Update+s.Skip+s.Duplicate+s.Conflict)
}

func TestSimulate_BatchDuplicate(t *testing.T) {
	table := ParsedTable{
		Headers: []string{"First", "Last", "DOB", "Email", "Notes"},
		Rows: [][]string{
			{"John", "Doe", "2012-01-01", "", ""},
			{"John", "Doe", "2012-01-01", "", ""},
		},
	}
	res := newTestSimulator(&stubLookup{}).Simulate(context.Background(), table, rosterMappings, "org-1", SimulateOptions{})

	require.Len(t, res.Previews, 2)
	assert.Equal(t, ActionCreate, res.Previews[0].Action)
	assert.Equal(t, ActionDuplicate, res.Previews[1].Action)
	require.NotNil(t, res.Previews[1].MatchedRowIndex)
	assert.Equal(t, 0, *res.Previews[1].MatchedRowIndex)
	assertSummaryConsistent(t, res)
	assert.Equal(t, 1, res.Summary.Create)
	assert.Equal(t, 1, res.Summary.Duplicate)
}

func TestSimulate_MissingRequiredFieldIsSkipped(t *testing.T) {
	table := ParsedTable{
		Headers: []string{"First", "Last", "DOB", "Email", "Notes"},
		Rows:    [][]string{{"John", "", "2012-01-01", "", ""}},
	}
	res := newTestSimulator(&stubLookup{}).Simulate(context.Background(), table, rosterMappings, "org-1", SimulateOptions{})

	p := res.Previews[0]
	assert.Equal(t, ActionSkip, p.Action)
	require.Len(t, p.Issues, 1)
	assert.Equal(t, SeverityError, p.Issues[0].Severity)
	assert.Equal(t, 1, res.Summary.RowsWithErrors)
	assertSummaryConsistent(t, res)
}

func TestSimulate_SkippedRowsDoNotShadowLaterRows(t *testing.T) {
	records := []Record{
		{FieldFirstName: "John", FieldLastName: "Doe", FieldDateOfBirth: "2012-01-01", FieldEmail: "broken"},
		{FieldFirstName: "John", FieldLastName: "Doe", FieldDateOfBirth: "2012-01-01"},
	}
	res := newTestSimulator(&stubLookup{}).SimulateRecords(context.Background(), records, "org-1", SimulateOptions{})
	assert.Equal(t, ActionSkip, res.Previews[0].Action)
	assert.Equal(t, ActionCreate, res.Previews[1].Action)
}

func TestSimulate_ExistingRecords(t *testing.T) {
	lookup := &stubLookup{players: []ExistingPlayer{
		existing("p-1", Record{FieldFirstName: "John", FieldLastName: "Doe", FieldDateOfBirth: "2012-01-01"}),
		existing("p-2", Record{FieldFirstName: "Amy", FieldLastName: "Ryan", FieldDateOfBirth: "2011-04-04", FieldEmail: "amy@ryan.ie"}),
		existing("p-3", Record{FieldFirstName: "Tom", FieldLastName: "Kane", FieldDateOfBirth: "2010-02-02"}),
	}}
	records := []Record{
		{FieldFirstName: "John", FieldLastName: "Doe", FieldDateOfBirth: "2012-01-01"},
		{FieldFirstName: "Amy", FieldLastName: "Ryan", FieldDateOfBirth: "2011-04-04", FieldEmail: "amy@other.ie"},
		{FieldFirstName: "Tom", FieldLastName: "Kane", FieldDateOfBirth: "2010-02-02", FieldEmail: "tom@kane.ie"},
		{FieldFirstName: "Eve", FieldLastName: "Nolan", FieldDateOfBirth: "2013-03-03"},
	}

	res := newTestSimulator(lookup).SimulateRecords(context.Background(), records, "org-1", SimulateOptions{})

	want := []struct {
		action Action
		id     string
	}{
		{ActionDuplicate, "p-1"},
		{ActionConflict, "p-2"},
		{ActionUpdate, "p-3"},
		{ActionCreate, ""},
	}
	for i, w := range want {
		assert.Equal(t, w.action, res.Previews[i].Action, "row %d", i)
		assert.Equal(t, w.id, res.Previews[i].MatchedExistingID, "row %d", i)
	}
	assert.Len(t, res.Previews[1].Differences, 1)
	assertSummaryConsistent(t, res)
}

func TestSimulate_UnselectedRowsAreSkipped(t *testing.T) {
	records := []Record{
		{FieldFirstName: "John", FieldLastName: "Doe", FieldDateOfBirth: "2012-01-01"},
		{FieldFirstName: "Eve", FieldLastName: "Nolan", FieldDateOfBirth: "2013-03-03"},
	}
	res := newTestSimulator(&stubLookup{}).SimulateRecords(context.Background(), records, "org-1",
		SimulateOptions{SelectedRows: map[int]bool{1: true}})

	assert.Equal(t, ActionSkip, res.Previews[0].Action)
	assert.Equal(t, reasonNotSelected, res.Previews[0].Reason)
	assert.Equal(t, ActionCreate, res.Previews[1].Action)
	assertSummaryConsistent(t, res)
}

func TestSimulate_LookupFailuresBecomeSkippedRows(t *testing.T) {
	records := []Record{{FieldFirstName: "John", FieldLastName: "Doe", FieldDateOfBirth: "2012-01-01"}}

	for name, lookup := range map[string]*stubLookup{
		"error": {err: errLookup},
		"panic": {panics: true},
	} {
		t.Run(name, func(t *testing.T) {
			res := newTestSimulator(lookup).SimulateRecords(context.Background(), records, "org-1", SimulateOptions{})
			p := res.Previews[0]
			assert.Equal(t, ActionSkip, p.Action)
			require.NotEmpty(t, p.Issues)
			assert.Equal(t, IssueRowFailure, p.Issues[len(p.Issues)-1].Code)
			assertSummaryConsistent(t, res)
		})
	}
}

func TestSimulate_AutoFixesUnblockRows(t *testing.T) {
	records := []Record{{FieldFirstName: "John", FieldLastName: "Doe", FieldDateOfBirth: "2012/01/01"}}
	sim := newTestSimulator(&stubLookup{})

	res := sim.SimulateRecords(context.Background(), records, "org-1", SimulateOptions{})
	assert.Equal(t, ActionSkip, res.Previews[0].Action)

	res = sim.SimulateRecords(context.Background(), records, "org-1", SimulateOptions{ApplyAutoFixes: true})
	assert.Equal(t, ActionCreate, res.Previews[0].Action)
	assert.Equal(t, "2012-01-01", res.Previews[0].Record[FieldDateOfBirth])
}

func TestSimulate_WarningsDoNotBlock(t *testing.T) {
	records := []Record{{FieldFirstName: "John", FieldLastName: "Doe", FieldDateOfBirth: "15/03/2012", FieldGender: "?"}}
	res := newTestSimulator(&stubLookup{}).SimulateRecords(context.Background(), records, "org-1",
		SimulateOptions{BenchmarksEnabled: true, Skills: []string{"passing", "tackling"}})

	assert.Equal(t, ActionCreate, res.Previews[0].Action)
	assert.Equal(t, 1, res.Summary.RowsWithWarnings)
	assert.Equal(t, 0, res.Summary.RowsWithErrors)
	assert.Equal(t, 2, res.Summary.BenchmarksToApply)
}

func TestSimulate_NoErrorRowIsCreatedOrUpdated(t *testing.T) {
	records := []Record{
		{},
		{FieldFirstName: "A", FieldLastName: "B", FieldDateOfBirth: "nope"},
		{FieldFirstName: "A", FieldLastName: "B", FieldDateOfBirth: "2012-01-01", FieldPhone: "?"},
		{FieldFirstName: "A", FieldLastName: "B", FieldDateOfBirth: "2012-01-01"},
	}
	res := newTestSimulator(&stubLookup{}).SimulateRecords(context.Background(), records, "org-1", SimulateOptions{})
	for _, p := range res.Previews {
		if HasErrors(p.Issues) {
			assert.NotContains(t, []Action{ActionCreate, ActionUpdate}, p.Action, "row %d", p.RowIndex)
		}
	}
	assertSummaryConsistent(t, res)
}

func TestSimulate_MonthFirstReimportIsDuplicate(t *testing.T) {
	john := Record{FieldFirstName: "John", FieldLastName: "Doe", FieldDateOfBirth: "05/01/2012"}
	validator := testValidator(DateOrderMDY)

	for name, stored := range map[string]Record{
		"iso":    validator.CanonicalRecord(john),
		"legacy": john,
	} {
		t.Run(name, func(t *testing.T) {
			lookup := &stubLookup{players: []ExistingPlayer{existing("p-1", stored)}}
			sim := NewSimulator(validator, NewDuplicateDetector(lookup, DateOrderMDY, 0.85, 0), quietLogger())

			res := sim.SimulateRecords(context.Background(), []Record{john}, "org-1", SimulateOptions{})

			require.Len(t, res.Previews, 1)
			assert.Equal(t, ActionDuplicate, res.Previews[0].Action, res.Previews[0].Reason)
			assert.Equal(t, "p-1", res.Previews[0].MatchedExistingID)
		})
	}
}
