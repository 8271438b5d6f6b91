package nutest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError(t *testing.T) {
	cause := errors.New("no test to run under /suite")
	err := NewRuntimeError(cause)

	assert.Equal(t, "runtime error: no test to run under /suite", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRuntimeError(err))
	assert.True(t, IsRuntimeError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsRuntimeError(cause))
	assert.False(t, IsRuntimeError(nil))
}

func TestTestFailureError(t *testing.T) {
	err := NewTestFailureError("  ✗ orders rejects empty cart\n")

	assert.Equal(t, "test failure:\n  ✗ orders rejects empty cart\n", err.Error())
	assert.True(t, IsTestFailureError(err))
	assert.True(t, IsTestFailureError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsTestFailureError(errors.New("other")))
	assert.False(t, IsTestFailureError(nil))
}

func TestErrorKindsAreDisjoint(t *testing.T) {
	assert.False(t, IsTestFailureError(NewRuntimeError(errors.New("x"))))
	assert.False(t, IsRuntimeError(NewTestFailureError("x")))
}
