package note

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a controller already has a request in flight.
	ErrBusy = errors.New("a request is already in progress")

	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidInput is wrapped by every local validation failure.
	ErrInvalidInput = errors.New("invalid input")

	ErrEmptyInstruction = fmt.Errorf("%w: instruction is required", ErrInvalidInput)
	ErrNoSelection      = fmt.Errorf("%w: no text is selected", ErrInvalidInput)
	ErrSelectionRange   = fmt.Errorf("%w: selection is outside the note", ErrInvalidInput)
	ErrEmptyNote        = fmt.Errorf("%w: there is no note to refine", ErrInvalidInput)
	ErrUnknownPreset    = fmt.Errorf("%w: unknown preset", ErrInvalidInput)
	ErrVersionRange     = fmt.Errorf("%w: version index out of range", ErrInvalidInput)
)
