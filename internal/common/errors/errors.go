// Package errors provides standardized error handling for the intake service.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeTeamUnknown       ErrorCode = "TEAM_UNKNOWN"
	ErrCodeApplicantBanned   ErrorCode = "APPLICANT_BANNED"
	ErrCodeAlreadyApplied    ErrorCode = "ALREADY_APPLIED"
	ErrCodeSessionNotFound   ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeStoreIOFailed     ErrorCode = "STORE_IO_FAILED"
	ErrCodeRecordNotFound    ErrorCode = "RECORD_NOT_FOUND"
	ErrCodePublicationFailed ErrorCode = "PUBLICATION_FAILED"
	ErrCodeDeliveryFailed    ErrorCode = "DELIVERY_FAILED"
	ErrCodeDecisionMalformed ErrorCode = "DECISION_MALFORMED"
	ErrCodeRelayInactive     ErrorCode = "RELAY_INACTIVE"
	ErrCodeRegistryInvalid   ErrorCode = "REGISTRY_INVALID"
	ErrCodeArchiveFailed     ErrorCode = "ARCHIVE_FAILED"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationFailedError flags applicant input that failed a form check.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Applicant input failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTeamUnknownError flags a team id outside the registry.
func NewTeamUnknownError(teamID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTeamUnknown,
		Message:   "Team is not part of the registry",
		Details:   fmt.Sprintf("teamId: %s", teamID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewApplicantBannedError flags an entry attempt by a banned applicant.
func NewApplicantBannedError(userID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicantBanned,
		Message:   "Applicant is banned from applying",
		Details:   fmt.Sprintf("userId: %d", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyAppliedError flags a cooldown or uniqueness rejection.
func NewAlreadyAppliedError(userID int64, teamID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlreadyApplied,
		Message:   "Applicant already has an eligible application for this team",
		Details:   fmt.Sprintf("userId: %d, teamId: %s", userID, teamID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionNotFoundError flags a form event for an applicant without a session.
func NewSessionNotFoundError(userID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "No active conversation session",
		Details:   fmt.Sprintf("userId: %d", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreIOFailedError wraps a persistence failure after the backup/restore
// attempt already ran.
func NewStoreIOFailedError(collection string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreIOFailed,
		Message:   "Store persistence failed",
		Details:   fmt.Sprintf("collection: %s, error: %s", collection, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordNotFoundError flags a lookup or delete miss.
func NewRecordNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordNotFound,
		Message:   "No stored record matches",
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPublicationFailedError wraps a review-channel send failure.
func NewPublicationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePublicationFailed,
		Message:   "Publishing to the review channel failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeliveryFailedError wraps a per-recipient send failure.
func NewDeliveryFailedError(recipient int64, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryFailed,
		Message:   "Message delivery failed",
		Details:   fmt.Sprintf("recipient: %d, error: %s", recipient, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDecisionMalformedError flags an unparseable decision payload.
func NewDecisionMalformedError(payload string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDecisionMalformed,
		Message:   "Decision action payload is malformed",
		Details:   fmt.Sprintf("payload: %s", payload),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRelayInactiveError flags a forward on an inactive relay session.
func NewRelayInactiveError(userID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeRelayInactive,
		Message:   "Relay session is not active",
		Details:   fmt.Sprintf("userId: %d", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRegistryInvalidError flags a team registry document that failed schema
// validation.
func NewRegistryInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRegistryInvalid,
		Message:   "Team registry document is invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewArchiveFailedError wraps a decision archive write failure.
func NewArchiveFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeArchiveFailed,
		Message:   "Decision archive write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps anything unexpected.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Retry Policy
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreIOFailed,
		ErrCodePublicationFailed,
		ErrCodeArchiveFailed:
		return 3

	case ErrCodeDeliveryFailed:
		return 2

	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// ==========================
// 4. Utility Functions
// ==========================

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "MALFORMED"):
		return "VALIDATION"
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "RECORD"):
		return "STORE"
	case strings.Contains(codeStr, "PUBLICATION") || strings.Contains(codeStr, "DELIVERY"):
		return "DELIVERY"
	case strings.Contains(codeStr, "BANNED") || strings.Contains(codeStr, "APPLIED") || strings.Contains(codeStr, "TEAM"):
		return "POLICY"
	case strings.Contains(codeStr, "SESSION") || strings.Contains(codeStr, "RELAY"):
		return "SESSION"
	case strings.Contains(codeStr, "REGISTRY"):
		return "REGISTRY"
	case strings.Contains(codeStr, "ARCHIVE"):
		return "ARCHIVE"
	default:
		return "OTHER"
	}
}
