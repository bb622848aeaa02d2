package types

// Envelope wraps every successful API payload under "data".
type Envelope[T any] struct {
	Data T `json:"data"`
}

// SuccessEnvelope is the untyped envelope written by the response helpers.
type SuccessEnvelope = Envelope[any]

// APIError is the public error shape. Details carries per-field validation
// messages or other structured context, never internal error text.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
