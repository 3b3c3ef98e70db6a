package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Resolution errors
	ErrInvalidIdentifier  = fmt.Errorf("invalid identifier")
	ErrNoValidIdentifiers = fmt.Errorf("no valid identifiers")
	ErrContainerNotFound  = fmt.Errorf("container not found")

	// Per-track pipeline errors
	ErrTrackUnavailable = fmt.Errorf("track unavailable")
	ErrFetch            = fmt.Errorf("fetch failed")
	ErrStreamTimeout    = fmt.Errorf("stream timed out")
	ErrDecode           = fmt.Errorf("decode failed")
	ErrEncode           = fmt.Errorf("encode failed")
	ErrTag              = fmt.Errorf("tagging failed")
	ErrWrite            = fmt.Errorf("write failed")

	// Batch errors
	ErrPersistence       = fmt.Errorf("sync state persistence failed")
	ErrStateLocked       = fmt.Errorf("sync state is locked by another process")
	ErrNoTracksCompleted = fmt.Errorf("no tracks completed")

	// Collaborator errors
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrAPIRequest         = fmt.Errorf("API request failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
