package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/bokzor/revenue-boost/pkg/errors"
)

// DownstreamErrorResponse mirrors the error envelope returned by downstream
// JSON APIs: either {"error": {"code": ..., "message": ...}} or a flat
// {"error": "message"} string.
type DownstreamErrorResponse struct {
	Error json.RawMessage `json:"error"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an appropriate AppError. If the body matches a known error envelope
// the message is preserved; otherwise a generic error with the status code and
// raw body is returned. The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	message := extractErrorMessage(bodyBytes)
	if message == "" {
		message = string(bodyBytes)
	}

	return mapDownstreamError(resp.StatusCode, message, serviceName)
}

// extractErrorMessage pulls a human-readable message out of a structured
// error body, tolerating both object and string forms of the "error" field.
func extractErrorMessage(body []byte) string {
	var envelope DownstreamErrorResponse
	if json.Unmarshal(body, &envelope) != nil || len(envelope.Error) == 0 {
		return ""
	}

	var asString string
	if json.Unmarshal(envelope.Error, &asString) == nil {
		return asString
	}

	var asObject struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(envelope.Error, &asObject) == nil && asObject.Message != "" {
		return asObject.Message
	}

	return ""
}

// mapDownstreamError translates a downstream HTTP status code into an
// AppError that preserves the error semantics.
func mapDownstreamError(status int, message, serviceName string) error {
	qualifiedMsg := fmt.Sprintf("%s: %s", serviceName, message)

	switch status {
	case http.StatusNotFound:
		return apperrors.NotFound(serviceName, message)
	case http.StatusBadRequest:
		return apperrors.InvalidInput(qualifiedMsg)
	case http.StatusUnauthorized:
		return apperrors.Unauthorized(qualifiedMsg)
	case http.StatusForbidden:
		return apperrors.Forbidden(qualifiedMsg)
	case http.StatusTooManyRequests:
		return apperrors.RateLimited(qualifiedMsg)
	case http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(qualifiedMsg)
	default:
		return fmt.Errorf("%s returned status %d: %s", serviceName, status, message)
	}
}
