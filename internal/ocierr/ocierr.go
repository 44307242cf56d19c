// Package ocierr defines the error taxonomy used across the runtime so that
// every failure path produces a single, greppable one-line diagnostic.
package ocierr

import (
	"errors"
	"fmt"
)

// Kind identifies which stage of the runtime produced an error.
type Kind string

const (
	ConfigError      Kind = "ConfigError"
	PreconditionError Kind = "PreconditionError"
	CloneError       Kind = "CloneError"
	NamespaceError   Kind = "NamespaceError"
	MountError       Kind = "MountError"
	DeviceError      Kind = "DeviceError"
	CapabilityError  Kind = "CapabilityError"
	RlimitError      Kind = "RlimitError"
	SysctlError      Kind = "SysctlError"
	HostnameError    Kind = "HostnameError"
	HookError        Kind = "HookError"
	SocketError      Kind = "SocketError"
	ExecError        Kind = "ExecError"
)

// Error wraps an underlying cause with the kind that produced it and
// whatever context (phase, path, container id) is available at the call
// site. Errors that are returned are constructed through New so the
// message stays one line; Sentinel builds cause-less values used only as
// errors.Is comparison targets.
type Error struct {
	Kind    Kind
	Context string
	Err     error
}

func (e *Error) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with a formatted context string.
func New(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Context: fmt.Sprintf(format, args...), Err: err}
}

// Is lets errors.Is(err, SomeKindSentinel) work against the Kind alone,
// independent of the wrapped cause, by comparing two *Error values' Kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// KindOf returns the Kind of err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Sentinel constructs a zero-cause *Error purely to be used as a
// comparison target with errors.Is, e.g. errors.Is(err, ocierr.Sentinel(ocierr.ConfigError)).
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}
