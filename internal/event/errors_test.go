package event

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codedError struct{ code int }

func (e *codedError) Error() string { return fmt.Sprintf("code %d", e.code) }

func TestNewErrorDetail(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, NewErrorDetail(nil))
	})

	t.Run("plain error has no chain", func(t *testing.T) {
		detail := NewErrorDetail(errors.New("boom"))
		assert.Equal(t, "*errors.errorString", detail.Type)
		assert.Equal(t, "boom", detail.Message)
		assert.Empty(t, detail.Chain)
	})

	t.Run("wrapped chain outermost first", func(t *testing.T) {
		err := fmt.Errorf("call tool: %w", fmt.Errorf("query: %w", &codedError{code: 7}))

		detail := NewErrorDetail(err)
		require.Len(t, detail.Chain, 2)
		assert.Equal(t, "query: code 7", detail.Chain[0].Message)
		assert.Equal(t, "code 7", detail.Chain[1].Message)
		assert.Equal(t, "*event.codedError", detail.Chain[1].Type)
	})

	t.Run("joined errors are all followed", func(t *testing.T) {
		err := errors.Join(errors.New("first"), fmt.Errorf("second: %w", errors.New("inner")))

		detail := NewErrorDetail(err)

		var messages []string
		for _, d := range detail.Chain {
			messages = append(messages, d.Message)
		}

		assert.Equal(t, []string{"first", "second: inner", "inner"}, messages)
	})

	t.Run("depth is bounded", func(t *testing.T) {
		err := errors.New("root")
		for i := range 3 * MaxChainDepth {
			err = fmt.Errorf("layer %d: %w", i, err)
		}

		assert.Len(t, NewErrorDetail(err).Chain, MaxChainDepth)
	})
}

func explode() {
	panic(&codedError{code: 42})
}

func TestPanicDetail(t *testing.T) {
	var detail *ErrorDetail

	func() {
		defer func() {
			detail = PanicDetail(recover(), 0)
		}()

		explode()
	}()

	require.NotNil(t, detail)
	assert.Equal(t, "panic", detail.Type)
	assert.Equal(t, "code 42", detail.Message)
	require.NotEmpty(t, detail.Frames)
	assert.LessOrEqual(t, len(detail.Frames), MaxFrames)

	found := false
	for _, f := range detail.Frames {
		assert.False(t, strings.HasPrefix(f.Function, "runtime."), f.Function)
		if strings.HasSuffix(f.Function, ".explode") {
			found = true
			assert.NotZero(t, f.Line)
		}
	}

	assert.True(t, found, "the panicking function is recorded")
}
