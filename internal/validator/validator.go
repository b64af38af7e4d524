package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
	"github.com/SAP-F-2025/roster-import-service/internal/models"
)

// Validator combines struct tag validation with cross-field business rules.
type Validator struct {
	structValidator   *validator.Validate
	businessValidator *BusinessValidator
}

func New() *Validator {
	structValidator := validator.New()

	// Register all custom validators once
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator:   structValidator,
		businessValidator: NewBusinessValidator(),
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s any) error {
	return v.structValidator.Struct(s)
}

// ValidateBusiness validates business rules only
func (v *Validator) ValidateBusiness(s any) ValidationErrors {
	return v.businessValidator.Validate(s)
}

// Validate runs struct tags first, then business rules.
func (v *Validator) Validate(s any) error {
	if err := v.ValidateStruct(s); err != nil {
		return err
	}
	if errs := v.ValidateBusiness(s); len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *Validator) Business() *BusinessValidator {
	return v.businessValidator
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("target_field", func(fl validator.FieldLevel) bool {
		return importer.TargetField(fl.Field().String()).Valid()
	})
	validate.RegisterValidation("benchmark_strategy", func(fl validator.FieldLevel) bool {
		return importer.BenchmarkStrategy(fl.Field().String()).Valid()
	})
	validate.RegisterValidation("conflict_resolution", func(fl validator.FieldLevel) bool {
		return models.ConflictResolution(fl.Field().String()).Valid()
	})
	validate.RegisterValidation("import_step", func(fl validator.FieldLevel) bool {
		return models.ImportStep(fl.Field().String()).Valid()
	})
	validate.RegisterValidation("date_order", func(fl validator.FieldLevel) bool {
		return importer.DateOrder(fl.Field().String()).Valid()
	})

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
