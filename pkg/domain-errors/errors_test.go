package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapAndHasCode(t *testing.T) {
	t.Run("wrap nil returns nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "noop"))
	})

	t.Run("code survives fmt wrapping", func(t *testing.T) {
		base := New(CodeNotFound, "action not found")
		err := fmt.Errorf("load: %w", base)
		assert.True(t, HasCode(err, CodeNotFound))
		assert.Equal(t, CodeNotFound, CodeOf(err))
		assert.Equal(t, "action not found", MessageOf(err))
	})

	t.Run("outermost code wins", func(t *testing.T) {
		inner := New(CodeNotFound, "missing")
		outer := Wrap(inner, CodeExternalDependency, "rule store unavailable")
		assert.True(t, HasCode(outer, CodeExternalDependency))
		assert.False(t, HasCode(outer, CodeNotFound))
	})

	t.Run("plain errors map to internal", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("unwrap exposes cause", func(t *testing.T) {
		cause := errors.New("conn reset")
		err := Wrap(cause, CodeExternalDependency, "redis unavailable")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "redis unavailable: conn reset", err.Error())
	})
}
