package errx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errSentinel = errors.New("resolve packages")
	errCause    = errors.New("binder died")
)

func TestWrap(t *testing.T) {
	err := Wrap(errSentinel, errCause)
	require.Error(t, err)
	assert.ErrorIs(t, err, errSentinel)
	assert.ErrorIs(t, err, errCause)
	assert.Equal(t, "resolve packages: binder died", err.Error())
}

func TestWrap_NilCause(t *testing.T) {
	assert.Equal(t, errSentinel, Wrap(errSentinel, nil))
}

func TestWith(t *testing.T) {
	err := With(errSentinel, " uid=%d: %w", 10050, errCause)
	assert.ErrorIs(t, err, errSentinel)
	assert.ErrorIs(t, err, errCause)
	assert.Equal(t, "resolve packages uid=10050: binder died", err.Error())
}
