package importer

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// IndexedRecord is a record with its position in the batch.
type IndexedRecord struct {
	RowIndex int
	Record   Record
}

// BatchMatch reports a within-batch duplicate. MatchedRowIndex is -1 when
// IsDuplicate is false.
type BatchMatch struct {
	IsDuplicate     bool `json:"isDuplicate"`
	MatchedRowIndex int  `json:"matchedRowIndex"`
}

// BatchIndex remembers the first row seen for each identity key. A later row
// with the same key is the duplicate, never the earlier one.
type BatchIndex struct {
	order DateOrder
	first map[string]int
}

func NewBatchIndex(order DateOrder) *BatchIndex {
	return &BatchIndex{order: order, first: make(map[string]int)}
}

func (b *BatchIndex) Check(rec Record) BatchMatch {
	key, ok := identityKey(rec, b.order)
	if !ok {
		return BatchMatch{MatchedRowIndex: -1}
	}
	if idx, seen := b.first[key]; seen {
		return BatchMatch{IsDuplicate: true, MatchedRowIndex: idx}
	}
	return BatchMatch{MatchedRowIndex: -1}
}

func (b *BatchIndex) Add(rowIndex int, rec Record) {
	key, ok := identityKey(rec, b.order)
	if !ok {
		return
	}
	if _, seen := b.first[key]; !seen {
		b.first[key] = rowIndex
	}
}

// CheckDuplicateInBatch compares rec against the rows that precede it.
func CheckDuplicateInBatch(rec Record, preceding []IndexedRecord, order DateOrder) BatchMatch {
	idx := NewBatchIndex(order)
	for _, p := range preceding {
		idx.Add(p.RowIndex, p.Record)
	}
	return idx.Check(rec)
}

// ExistingPlayer is an already enrolled player as seen by duplicate detection.
type ExistingPlayer struct {
	ID     string
	Fields Record
}

// PlayerProbe narrows the candidate search. Names are in NormalizeName form
// and DateOfBirth is ISO when known.
type PlayerProbe struct {
	FirstName   string
	LastName    string
	DateOfBirth string
}

// ExistingPlayerLookup returns enrolled players of an organization that could
// match the probe. It must not write.
type ExistingPlayerLookup interface {
	FindCandidates(ctx context.Context, orgID string, probe PlayerProbe) ([]ExistingPlayer, error)
}

type MatchKind string

const (
	MatchNone       MatchKind = "none"
	MatchExact      MatchKind = "exact"
	MatchCompatible MatchKind = "compatible"
	MatchPartial    MatchKind = "partial"
)

type FieldDifference struct {
	Field    TargetField `json:"field"`
	Existing string      `json:"existing"`
	Incoming string      `json:"incoming"`
}

// ExistingMatch is the outcome of comparing a row with enrolled players.
type ExistingMatch struct {
	Kind              MatchKind         `json:"kind"`
	MatchedExistingID string            `json:"matchedExistingId,omitempty"`
	Reason            string            `json:"reason,omitempty"`
	Differences       []FieldDifference `json:"differences,omitempty"`
	Fills             []TargetField     `json:"fills,omitempty"`
}

func (m ExistingMatch) IsDuplicate() bool { return m.Kind == MatchExact }

// NormalizeName is the stored comparison form of a person's name.
func NormalizeName(s string) string { return normalizeName(s) }

// DuplicateDetector checks rows against enrolled players.
type DuplicateDetector struct {
	lookup         ExistingPlayerLookup
	order          DateOrder
	nameSimilarity float64
	timeout        time.Duration
}

// NewDuplicateDetector builds a detector. nameSimilarity is the first-name
// similarity above which a same-surname, same-birthday player is a partial match.
func NewDuplicateDetector(lookup ExistingPlayerLookup, order DateOrder, nameSimilarity float64, timeout time.Duration) *DuplicateDetector {
	if nameSimilarity <= 0 {
		nameSimilarity = 0.85
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if order == "" {
		order = DateOrderDMY
	}
	return &DuplicateDetector{lookup: lookup, order: order, nameSimilarity: nameSimilarity, timeout: timeout}
}

// CheckExisting looks rec up among the organization's players.
func (d *DuplicateDetector) CheckExisting(ctx context.Context, orgID string, rec Record) (ExistingMatch, error) {
	if d == nil || d.lookup == nil {
		return ExistingMatch{Kind: MatchNone}, nil
	}
	probe := PlayerProbe{
		FirstName: normalizeName(rec.Get(FieldFirstName)),
		LastName:  normalizeName(rec.Get(FieldLastName)),
	}
	if v := rec.Get(FieldDateOfBirth); v != "" {
		probe.DateOfBirth = CanonicalDate(v, d.order)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	candidates, err := d.lookup.FindCandidates(lookupCtx, orgID, probe)
	if err != nil {
		return ExistingMatch{}, fmt.Errorf("existing player lookup: %w", err)
	}
	return ClassifyExisting(rec, candidates, d.order, d.nameSimilarity), nil
}

// ClassifyExisting decides how rec relates to the candidate players. Stored
// dates are ISO; older values that are not are read under order too. An
// identical identity with nothing new is exact; one that only fills blank
// fields is compatible; one that would overwrite values, or a near miss on
// the identity, is partial and needs a human decision.
func ClassifyExisting(rec Record, candidates []ExistingPlayer, order DateOrder, nameSimilarity float64) ExistingMatch {
	first := normalizeName(rec.Get(FieldFirstName))
	last := normalizeName(rec.Get(FieldLastName))
	dob := CanonicalDate(rec.Get(FieldDateOfBirth), order)

	for _, c := range candidates {
		cFirst := normalizeName(c.Fields.Get(FieldFirstName))
		cLast := normalizeName(c.Fields.Get(FieldLastName))
		cDOB := CanonicalDate(c.Fields.Get(FieldDateOfBirth), order)
		if cFirst == first && cLast == last && cDOB == dob {
			return compareFields(rec, c, order)
		}
	}

	for _, c := range candidates {
		cFirst := normalizeName(c.Fields.Get(FieldFirstName))
		cLast := normalizeName(c.Fields.Get(FieldLastName))
		cDOB := CanonicalDate(c.Fields.Get(FieldDateOfBirth), order)
		switch {
		case cFirst == first && cLast == last:
			return ExistingMatch{Kind: MatchPartial, MatchedExistingID: c.ID,
				Reason: fmt.Sprintf("same name, different date of birth (%s vs %s)", cDOB, dob)}
		case cLast == last && cDOB == dob && similarity(cFirst, first) >= nameSimilarity:
			return ExistingMatch{Kind: MatchPartial, MatchedExistingID: c.ID,
				Reason: fmt.Sprintf("similar first name %q with same surname and date of birth", c.Fields.Get(FieldFirstName))}
		}
	}
	return ExistingMatch{Kind: MatchNone}
}

func compareFields(rec Record, c ExistingPlayer, order DateOrder) ExistingMatch {
	m := ExistingMatch{MatchedExistingID: c.ID}
	for _, f := range AllFields() {
		incoming := rec.Get(f)
		if incoming == "" {
			continue
		}
		existing := c.Fields.Get(f)
		switch {
		case existing == "":
			m.Fills = append(m.Fills, f)
		case !sameValue(f, existing, incoming, order):
			m.Differences = append(m.Differences, FieldDifference{Field: f, Existing: existing, Incoming: incoming})
		}
	}
	switch {
	case len(m.Differences) > 0:
		m.Kind = MatchPartial
		m.Reason = fmt.Sprintf("existing player has different values for %d field(s)", len(m.Differences))
	case len(m.Fills) > 0:
		m.Kind = MatchCompatible
		m.Reason = fmt.Sprintf("adds %d missing field(s) to existing player", len(m.Fills))
	default:
		m.Kind = MatchExact
		m.Reason = "player already enrolled with identical details"
	}
	return m
}

func sameValue(f TargetField, a, b string, order DateOrder) bool {
	switch f.Kind() {
	case KindDate:
		return CanonicalDate(a, order) == CanonicalDate(b, order)
	case KindPhone:
		return comparablePhone(a) == comparablePhone(b)
	case KindGender:
		ga, okA := NormalizeGender(a)
		gb, okB := NormalizeGender(b)
		if okA && okB {
			return ga == gb
		}
	case KindName:
		return normalizeName(a) == normalizeName(b)
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func comparablePhone(v string) string {
	if fixed, ok := fixPhone(v); ok {
		return digitsOnly(fixed)
	}
	return digitsOnly(v)
}
