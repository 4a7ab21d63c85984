package services

import (
	"errors"
	"fmt"

	apperrors "github.com/urpt/student-rotation-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("resource conflict")

	// Rotation specific errors
	ErrRotationNotFound  = errors.New("rotation not found")
	ErrRotationDateRange = errors.New("end date must be after start date")

	// Location specific errors
	ErrLocationNotFound       = errors.New("location not found")
	ErrLocationDuplicateTitle = errors.New("a location with this title already exists")

	// Import specific errors
	ErrImportRunNotFound = errors.New("import run not found")

	// User/Permission errors
	ErrInsufficientPermissions = errors.New("insufficient permissions")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Capability string `json:"capability"`
}

func (pe *PermissionError) Error() string {
	if pe.ResourceID == 0 {
		return fmt.Sprintf("permission denied: user %s cannot %s %s - requires %s",
			pe.UserID, pe.Action, pe.Resource, pe.Capability)
	}
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d - requires %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Capability)
}

func (pe *PermissionError) Unwrap() error {
	return ErrInsufficientPermissions
}

// ===== ERROR HELPERS =====

func NewPermissionError(userID string, resourceID uint, resource, action, capability string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Capability: capability,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRotationNotFound) ||
		errors.Is(err, ErrLocationNotFound) ||
		errors.Is(err, ErrImportRunNotFound) ||
		apperrors.HasCode(err, apperrors.CodeNotFound)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInsufficientPermissions) ||
		apperrors.HasCode(err, apperrors.CodePermissionDenied)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) || errors.Is(err, ErrRotationDateRange) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrLocationDuplicateTitle)
}
