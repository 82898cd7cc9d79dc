package observability

import "errors"

// Validation errors returned by Config.Validate and NewProvider. Callers match
// them with errors.Is; the wrapping message names the offending section.
var (
	ErrNilConfig          = errors.New("observability: config is nil")
	ErrMissingServiceName = errors.New("observability: service name is required when observability is enabled")
	ErrInvalidSampleRate  = errors.New("observability: trace sample rate must be between 0.0 and 1.0")
	ErrInvalidProtocol    = errors.New("observability: protocol must be either 'http' or 'grpc'")

	// ErrInvalidEndpointFormat: grpc wants host:port, http wants a scheme.
	ErrInvalidEndpointFormat = errors.New("observability: invalid endpoint format for protocol")

	ErrInvalidCompression = errors.New("observability: compression must be either 'gzip' or 'none'")
	ErrInvalidTemporality = errors.New("observability: temporality must be either 'delta' or 'cumulative'")
)
