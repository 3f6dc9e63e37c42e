package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInternal            = errors.New("internal error")
	ErrServiceUnavail      = errors.New("service unavailable")
	ErrCampaignUnavailable = errors.New("campaign unavailable")
	ErrRateLimited         = errors.New("rate limited")
	ErrDiscountDisabled    = errors.New("discount disabled")
	ErrProvisioningFailed  = errors.New("provisioning failed")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// CampaignUnavailable creates a 404 error for a missing or inactive campaign.
func CampaignUnavailable(campaignID string) *AppError {
	return &AppError{
		Code:    "CAMPAIGN_UNAVAILABLE",
		Message: fmt.Sprintf("campaign %s not found or not active", campaignID),
		Status:  http.StatusNotFound,
		Err:     ErrCampaignUnavailable,
	}
}

// RateLimited creates a 429 error.
func RateLimited(message string) *AppError {
	if message == "" {
		message = "too many requests, try again later"
	}
	return &AppError{
		Code:    "RATE_LIMITED",
		Message: message,
		Status:  http.StatusTooManyRequests,
		Err:     ErrRateLimited,
	}
}

// DiscountDisabled creates a 400 error for a campaign without an active discount.
func DiscountDisabled(campaignID string) *AppError {
	return &AppError{
		Code:    "DISCOUNT_DISABLED",
		Message: fmt.Sprintf("campaign %s has no active discount", campaignID),
		Status:  http.StatusBadRequest,
		Err:     ErrDiscountDisabled,
	}
}

// ProvisioningFailed creates a 500 error for a failed discount provisioning call.
func ProvisioningFailed(message string) *AppError {
	if message == "" {
		message = "failed to provision discount code"
	}
	return &AppError{
		Code:    "PROVISIONING_FAILED",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     ErrProvisioningFailed,
	}
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(message string) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     ErrServiceUnavail,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCampaignUnavailable):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrDiscountDisabled):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
