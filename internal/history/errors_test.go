package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncompleteErrorMessage(t *testing.T) {
	err := &IncompleteError{Requested: 3, Missing: []uint64{20_730_108}}
	assert.Equal(t, "incomplete result: 1 of 3 heights unresolved (first 20730108)", err.Error())
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestIncompleteErrorWithoutMissingHeights(t *testing.T) {
	err := &IncompleteError{Requested: 2}
	assert.NotPanics(t, func() { _ = err.Error() })
	assert.Equal(t, "incomplete result: 2 heights requested", err.Error())

	assert.NotPanics(t, func() { _ = (&IncompleteError{}).Error() })
}
