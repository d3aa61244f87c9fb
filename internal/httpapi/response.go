package httpapi

import "time"

// Error codes surfaced in response envelopes. Authentication failures all
// collapse into CodeAuthError so callers cannot probe which check failed.
const (
	CodeAuthError       = "AUTH_ERROR"
	CodeValidationError = "VALIDATION_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

// ErrorBody is the error half of the response envelope.
type ErrorBody struct {
	Code      string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Response is the envelope wrapping every JSON body served by this API.
// Exactly one of Data and Error is set.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

func ok(data any) Response {
	return Response{Success: true, Data: data}
}

func fail(code, message string) Response {
	return Response{Success: false, Error: &ErrorBody{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}}
}
