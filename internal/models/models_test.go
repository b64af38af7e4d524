package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
)

func TestImportStatusTransitions(t *testing.T) {
	assert.True(t, ImportUploading.CanTransitionTo(ImportMapping))
	assert.True(t, ImportReviewing.CanTransitionTo(ImportImporting))
	assert.True(t, ImportImporting.CanTransitionTo(ImportFailed))
	assert.True(t, ImportCompleted.CanTransitionTo(ImportUndone))

	assert.False(t, ImportImporting.CanTransitionTo(ImportCancelled))
	assert.False(t, ImportCompleted.CanTransitionTo(ImportMapping))
	assert.False(t, ImportUndone.CanTransitionTo(ImportCompleted))
	assert.False(t, ImportCancelled.CanTransitionTo(ImportUploading))

	assert.True(t, ImportSelecting.Active())
	assert.False(t, ImportCompleted.Active())
	assert.False(t, ImportCancelled.Active())
}

func TestPlayerRecordRoundTrip(t *testing.T) {
	p := &Player{}
	p.ApplyRecord(importer.Record{
		importer.FieldFirstName:       "Siobhán",
		importer.FieldLastName:        "O'Brien",
		importer.FieldDateOfBirth:     "2012-03-04",
		importer.FieldAddressPostcode: "D02 X285",
	})

	assert.Equal(t, "Siobhán", p.FirstName)
	assert.Equal(t, "siobhan", p.NormalizedFirstName)
	assert.Equal(t, "obrien", p.NormalizedLastName)

	rec := p.Record()
	assert.Len(t, rec, 4)
	assert.Equal(t, "D02 X285", rec[importer.FieldAddressPostcode])

	p.ApplyRecord(importer.Record{importer.FieldEmail: "a@b.ie"})
	assert.Equal(t, "Siobhán", p.FirstName, "apply keeps fields it does not mention")

	p.ReplaceRecord(importer.Record{importer.FieldFirstName: "Ann", importer.FieldLastName: "Lee"})
	assert.Empty(t, p.Email)
	assert.Empty(t, p.DateOfBirth)
	assert.Equal(t, "lee", p.NormalizedLastName)
}

func TestActiveSessionKey(t *testing.T) {
	assert.Equal(t, "u1|org1", ActiveSessionKey("u1", "org1"))
}

func TestImportStepValid(t *testing.T) {
	assert.True(t, StepBenchmarks.Valid())
	assert.False(t, ImportStep("done").Valid())
}
