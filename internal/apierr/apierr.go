// Package apierr defines the typed error envelopes returned to clients and
// the translation into the OpenAI-style {"error": {...}} wire shape.
package apierr

import "fmt"

// ClientError is a request-facing error with an HTTP status and a stable
// machine-readable code, mirroring the Provider/ValidationError split in
// the teacher's pkg/provider/errors package but scoped to what a proxy
// client needs: status, code, message.
type ClientError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ClientError) Unwrap() error { return e.Cause }

// New builds a ClientError.
func New(status int, code, message string) *ClientError {
	return &ClientError{Status: status, Code: code, Message: message}
}

// Wrap builds a ClientError carrying an underlying cause.
func Wrap(status int, code, message string, cause error) *ClientError {
	return &ClientError{Status: status, Code: code, Message: message, Cause: cause}
}

// Common client errors the gateway returns.
var (
	ErrNoUpstream    = New(502, "no_upstream_available", "no upstream responded successfully")
	ErrModelNotFound = New(404, "model_not_found", "no upstream is configured for this model")
	ErrBadRequest    = New(400, "invalid_request_error", "request body could not be parsed")
)

// ValidationError describes one field-level validation failure, matching
// the location/message/type/input shape callers of a config or request
// validator expect.
type ValidationError struct {
	Location []string    `json:"loc"`
	Message  string      `json:"msg"`
	Type     string      `json:"type"`
	Input    interface{} `json:"input,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", e.Location, e.Message)
}

// ValidationErrors is a joined set of ValidationError, returned when a
// config reload or request body fails schema validation.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	msg := e[0].Error()
	if len(e) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(e)-1)
	}
	return msg
}

// Envelope is the OpenAI-compatible error body: {"error": {...}}.
type Envelope struct {
	Error EnvelopeBody `json:"error"`
}

// EnvelopeBody is the inner object of an Envelope.
type EnvelopeBody struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param,omitempty"`
	Code    string  `json:"code,omitempty"`
}

// ToEnvelope converts a ClientError into the wire envelope.
func ToEnvelope(e *ClientError) Envelope {
	return Envelope{Error: EnvelopeBody{
		Message: e.Message,
		Type:    e.Code,
		Code:    e.Code,
	}}
}
