package history

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHeight is a caller error: the height cannot be served by the
	// aggregation contract, or was requested twice. It is never retried.
	ErrInvalidHeight = errors.New("invalid block height")
	ErrInvalidTiers  = errors.New("invalid concurrency tiers")
	// ErrEmptyResult means no height produced a row at all.
	ErrEmptyResult = errors.New("empty result")
	ErrIncomplete  = errors.New("incomplete result")
	// ErrStartBeyondHead means there is nothing to sample yet.
	ErrStartBeyondHead = errors.New("start height is beyond chain head")
)

// IncompleteError lists the heights that stayed unresolved after every tier.
type IncompleteError struct {
	Requested int
	Missing   []uint64
}

func (e *IncompleteError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("%s: %d heights requested", ErrIncomplete, e.Requested)
	}
	return fmt.Sprintf("%s: %d of %d heights unresolved (first %d)", ErrIncomplete, len(e.Missing), e.Requested, e.Missing[0])
}

func (e *IncompleteError) Unwrap() error {
	return ErrIncomplete
}
