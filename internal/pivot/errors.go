package pivot

import (
	"errors"
	"fmt"
)

// Policy errors. Each one is a synchronous, specific rejection; none of
// them is ever coerced into a silent no-op.
var (
	// ErrAlreadyProposed means a proposal is already pending on the slot.
	// First proposal wins; the second caller must wait for resolution.
	ErrAlreadyProposed = errors.New("a pivot is already proposed for this slot")

	// ErrTerminal means the pivot has reached a final state and cannot
	// transition again.
	ErrTerminal = errors.New("pivot is already in a terminal state")

	// ErrUnknownLabel means a classification label fell outside the fixed
	// label-to-trigger table.
	ErrUnknownLabel = errors.New("unknown classification label")

	// ErrMissingReplacement means an accept was attempted without naming
	// the replacement activity.
	ErrMissingReplacement = errors.New("accepting a pivot requires a replacement activity")
)

// DepthLimitError means the slot has consumed its adaptation budget. No
// PivotEvent is created; the caller is told no further adaptation is
// available for the slot.
type DepthLimitError struct {
	SlotID string
	Depth  int
	Max    int
}

func (e *DepthLimitError) Error() string {
	return fmt.Sprintf(
		"slot %s has no adaptation budget left: depth=%d, max=%d",
		e.SlotID,
		e.Depth,
		e.Max,
	)
}
