package core

import "fmt"

// ConnectionError reports that a backend could not be reached or authenticated.
type ConnectionError struct {
	Engine string
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot connect to %s at %s", e.Engine, e.Target)
	}
	return fmt.Sprintf("cannot connect to %s at %s: %v", e.Engine, e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TunnelError reports an SSH session or local forward failure.
type TunnelError struct {
	Op  string
	Err error
}

func (e *TunnelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ssh tunnel %s failed", e.Op)
	}
	return fmt.Sprintf("ssh tunnel %s failed: %v", e.Op, e.Err)
}

func (e *TunnelError) Unwrap() error { return e.Err }

// QueryError wraps an error returned by the backend for a statement.
// Error returns the backend text unmodified.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string { return e.Err.Error() }

func (e *QueryError) Unwrap() error { return e.Err }

// ValidationError reports caller-supplied input the backend cannot accept,
// such as a malformed document identifier.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Value)
}

// UnsupportedOperationError reports a mutation kind or operation the engine
// does not implement.
type UnsupportedOperationError struct {
	Engine    string
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Engine, e.Operation)
}
