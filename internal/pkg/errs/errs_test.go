//go:build unit

package errs_test

import (
	"errors"
	"testing"

	"storefront/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
)

func TestIs(t *testing.T) {
	sentinel := errs.New("sentinel")

	t.Run("sees marks the standard library cannot", func(t *testing.T) {
		marked := errs.Mark(errs.New("root cause"), sentinel)

		assert.False(t, errors.Is(marked, sentinel))
		assert.True(t, errs.Is(marked, sentinel))
	})

	t.Run("sees wraps", func(t *testing.T) {
		wrapped := errs.Wrap(sentinel, "context")
		assert.True(t, errs.Is(wrapped, sentinel))
	})

	t.Run("marks survive further wrapping", func(t *testing.T) {
		err := errs.Wrap(errs.Mark(errs.New("root cause"), sentinel), "context")
		assert.True(t, errs.Is(err, sentinel))
	})

	t.Run("nil and mismatch", func(t *testing.T) {
		assert.False(t, errs.Is(nil, sentinel))
		assert.False(t, errs.Is(errs.New("other"), sentinel))
	})

	t.Run("mark with nil cause returns the sentinel itself", func(t *testing.T) {
		assert.True(t, errs.Is(errs.Mark(nil, sentinel), sentinel))
	})
}
