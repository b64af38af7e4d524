package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/roster-import-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")
	ErrBadRequest       = errors.New("bad request")
	ErrConflict         = errors.New("resource conflict")

	// Import session errors
	ErrSessionNotFound     = errors.New("import session not found")
	ErrSessionAccessDenied = errors.New("access denied to import session")
	ErrActiveSessionExists = errors.New("an import session is already active for this user and organization")
	ErrInvalidTransition   = errors.New("invalid import session status transition")
	ErrSessionNotEditable  = errors.New("import session cannot be edited in its current status")
	ErrNoRows              = errors.New("import has no data rows")
	ErrMissingRequiredMaps = errors.New("required fields are not mapped")
	ErrCommitInProgress    = errors.New("import is already being committed")

	// Undo errors
	ErrUndoNotAllowed   = errors.New("import cannot be undone")
	ErrUndoWindowClosed = errors.New("undo window has expired")

	// Reference data errors
	ErrPlayerNotFound   = errors.New("player not found")
	ErrTemplateNotFound = errors.New("benchmark template not found")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type BusinessRuleError struct {
	Rule    string         `json:"rule"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
	cause   error
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

// Unwrap lets errors.Is match the sentinel the rule was raised for.
func (bre *BusinessRuleError) Unwrap() error { return bre.cause }

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID string `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %s - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

func (pe *PermissionError) Unwrap() error { return ErrForbidden }

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value any) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewBusinessRuleError(rule, message string, context map[string]any) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

// newRuleError ties a business rule violation to one of the sentinel errors.
func newRuleError(cause error, rule, message string, context map[string]any) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context, cause: cause}
}

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrTemplateNotFound)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrSessionAccessDenied)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) || errors.Is(err, ErrBadRequest) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsBusinessRule checks if error represents a business rule violation
func IsBusinessRule(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrActiveSessionExists) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrSessionNotEditable) ||
		errors.Is(err, ErrCommitInProgress) ||
		errors.Is(err, ErrUndoNotAllowed) ||
		errors.Is(err, ErrUndoWindowClosed)
}
