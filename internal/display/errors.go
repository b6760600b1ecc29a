package display

import (
	"errors"
	"fmt"

	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ident"
	"github.com/bnema/displayhal/internal/logger"
)

// Error kinds surfaced to the compositor. Match with errors.Is.
var (
	// ErrInvalidDisplay means the identifier is not registered (or the
	// operation does not apply to that kind of display).
	ErrInvalidDisplay = errors.New("invalid display")
	// ErrUnsupported means the backend lacks the feature.
	ErrUnsupported = errors.New("unsupported by backend")
	// ErrBadParameter means the backend rejected the arguments.
	ErrBadParameter = errors.New("bad parameter")
	// ErrBackendFailure covers every other backend error.
	ErrBackendFailure = errors.New("backend failure")

	// ErrNoActiveMode means the backend reports no configured mode.
	ErrNoActiveMode = errors.New("no active mode")
	// ErrUnknownMode means the active mode is missing from the loaded modes.
	ErrUnknownMode = errors.New("unknown mode")
)

// OpError describes a failed display operation.
type OpError struct {
	Op      string
	Display ident.ID
	Kind    error
	Err     error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed for display %s: %v", e.Op, e.Display, e.Kind)
	}
	return fmt.Sprintf("%s failed for display %s: %v: %v", e.Op, e.Display, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the backend cause.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// classify maps a backend error onto an error kind.
func classify(err error) error {
	var code hal.Error
	if errors.As(err, &code) {
		switch code {
		case hal.Unsupported:
			return ErrUnsupported
		case hal.BadParameter:
			return ErrBadParameter
		}
	}
	return ErrBackendFailure
}

func invalidDisplay(op string, id ident.ID) error {
	logger.Error("Invalid display", "op", op, "display", id)
	return &OpError{Op: op, Display: id, Kind: ErrInvalidDisplay}
}

func backendError(op string, id ident.ID, err error) error {
	kind := classify(err)
	logger.Error("Backend call failed", "op", op, "display", id, "error", err)
	return &OpError{Op: op, Display: id, Kind: kind, Err: err}
}
