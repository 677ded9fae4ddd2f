// Package errors provides structured error handling for service
// boundaries: a machine-readable code plus optional metadata and cause.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Configuration errors
	CodeConfigInvalid Code = "CONFIG_INVALID"

	// Storage errors
	CodeStorageUnavailable      Code = "STORAGE_UNAVAILABLE"
	CodePayloadStoreUnavailable Code = "PAYLOAD_STORE_UNAVAILABLE"
)
