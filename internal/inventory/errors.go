package inventory

import "errors"

var (
	// ErrInvalidTransition means the requested event is not legal from the
	// slot's current state. State is left unchanged.
	ErrInvalidTransition = errors.New("inventory: invalid transition")
	// ErrUnknownSlot means the slot id does not exist at this station.
	ErrUnknownSlot = errors.New("inventory: unknown slot")
	// ErrNoAvailableSlot means reserve found no available slot matching the filter.
	ErrNoAvailableSlot = errors.New("inventory: no available slot")
)
