// Package hal describes the composition backend boundary consumed by the
// display adapter: the Composer command interface, the EventSink callback
// interface and the value types exchanged across both.
package hal

import (
	"errors"
	"fmt"
)

// Error is a status code reported by the composition backend.
type Error int32

const (
	None                Error = 0
	BadConfig           Error = 1
	BadDisplay          Error = 2
	BadLayer            Error = 3
	BadParameter        Error = 4
	HasChanges          Error = 5
	NoResources         Error = 6
	NotValidated        Error = 7
	Unsupported         Error = 8
	SeamlessNotAllowed  Error = 9
	SeamlessNotPossible Error = 10
)

func (e Error) Error() string {
	return fmt.Sprintf("%s (%d)", e.String(), int32(e))
}

func (e Error) String() string {
	switch e {
	case None:
		return "None"
	case BadConfig:
		return "BadConfig"
	case BadDisplay:
		return "BadDisplay"
	case BadLayer:
		return "BadLayer"
	case BadParameter:
		return "BadParameter"
	case HasChanges:
		return "HasChanges"
	case NoResources:
		return "NoResources"
	case NotValidated:
		return "NotValidated"
	case Unsupported:
		return "Unsupported"
	case SeamlessNotAllowed:
		return "SeamlessNotAllowed"
	case SeamlessNotPossible:
		return "SeamlessNotPossible"
	default:
		return "Unknown"
	}
}

// AsError converts a status code to an error, mapping None to nil.
func AsError(e Error) error {
	if e == None {
		return nil
	}
	return e
}

// IsHasChanges reports whether err is nil or the HasChanges status. Both
// mean validation completed and the caller should read back the changes.
func IsHasChanges(err error) bool {
	if err == nil {
		return true
	}
	var code Error
	if !errors.As(err, &code) {
		return false
	}
	return code == None || code == HasChanges
}
