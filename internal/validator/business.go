package validator

import (
	"fmt"

	apperrors "github.com/SAP-F-2025/roster-import-service/internal/errors"
	"github.com/SAP-F-2025/roster-import-service/internal/models"
)

// BusinessValidator checks rules that span several fields of a request.
type BusinessValidator struct{}

func NewBusinessValidator() *BusinessValidator {
	return &BusinessValidator{}
}

func (b *BusinessValidator) Validate(s any) ValidationErrors {
	switch req := s.(type) {
	case *models.SaveDraftRequest:
		return b.validateMappings(req.Mappings)
	case *models.PreviewRequest:
		return b.validateMappings(req.Mappings)
	case *models.UndoRequest:
		return b.validateUndo(req)
	}
	return nil
}

// validateMappings rejects a target bound to two columns and a column listed twice.
func (b *BusinessValidator) validateMappings(mappings []models.MappingOverride) ValidationErrors {
	var errs ValidationErrors
	columns := map[string]bool{}
	targets := map[string]string{}
	for _, m := range mappings {
		if columns[m.SourceColumn] {
			errs = append(errs, *apperrors.NewValidationErrorWithRule("mappings",
				fmt.Sprintf("column %q is mapped more than once", m.SourceColumn), "unique_column", m.SourceColumn))
		}
		columns[m.SourceColumn] = true

		if m.TargetField == "" {
			continue
		}
		if prev, ok := targets[m.TargetField]; ok {
			errs = append(errs, *apperrors.NewValidationErrorWithRule("mappings",
				fmt.Sprintf("field %s is already mapped from column %q", m.TargetField, prev), "unique_target", m.TargetField))
			continue
		}
		targets[m.TargetField] = m.SourceColumn
	}
	return errs
}

func (b *BusinessValidator) validateUndo(req *models.UndoRequest) ValidationErrors {
	selectors := 0
	if len(req.PlayerIDs) > 0 {
		selectors++
	}
	if len(req.RowIndexes) > 0 {
		selectors++
	}
	if req.All {
		selectors++
	}
	if selectors != 1 {
		return ValidationErrors{*apperrors.NewValidationErrorWithRule("selector",
			"exactly one of player_ids, row_indexes or all must be given", "undo_selector", nil)}
	}
	return nil
}
