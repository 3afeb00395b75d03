package core

// SessionState is the lifecycle state of an adapter session.
type SessionState int

const (
	StateInitializing SessionState = iota // Provisioning the wallet app
	StateReady                            // Watcher running, actions accepted
	StateStopping                         // Report received, tearing down
	StateStopped                          // Report delivered
)

// String returns the string representation of SessionState
func (s SessionState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if no further transitions are possible
func (s SessionState) IsTerminal() bool {
	return s == StateStopped
}

// AcceptsActions returns true if protocol actions may be dispatched
func (s SessionState) AcceptsActions() bool {
	return s == StateReady
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone        ErrorCategory = iota // No error
	ErrCategoryElement                          // Element not found, not enabled, not clickable
	ErrCategoryTimeout                          // Operation timed out
	ErrCategoryConnection                       // Device/server connection lost
	ErrCategoryUnsupported                      // Action not implemented for this wallet
	ErrCategoryProtocol                         // Malformed or unexpected glue message
	ErrCategoryInternal                         // Invariant violation
	ErrCategoryConfig                           // Invalid configuration, missing required field
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryElement:
		return "element"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryUnsupported:
		return "unsupported"
	case ErrCategoryProtocol:
		return "protocol"
	case ErrCategoryInternal:
		return "internal"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}
