package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	assert.Equal(t, "[rejected] destructive command detected: DROP",
		New(ErrKindRejected, "destructive command detected: DROP").Error())
	assert.Equal(t, "[connection_failed] cannot open target: dial tcp: refused",
		Wrap(ErrKindConnectionFailed, "cannot open target", cause).Error())
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"not found", New(ErrKindNotFound, "x"), IsNotFound},
		{"timeout", New(ErrKindTimeout, "x"), IsTimeout},
		{"connection", New(ErrKindConnectionFailed, "x"), IsConnectionFailed},
		{"query", New(ErrKindQueryFailed, "x"), IsQueryFailed},
		{"input", New(ErrKindInvalidInput, "x"), IsInvalidInput},
		{"permission", New(ErrKindPermissionDenied, "x"), IsPermissionDenied},
		{"rejected", New(ErrKindRejected, "x"), IsRejected},
		{"format", New(ErrKindUnsupportedFormat, "x"), IsUnsupportedFormat},
		{"not indexed", New(ErrKindNotIndexed, "x"), IsNotIndexed},
		{"unavailable", New(ErrKindUnavailable, "x"), IsUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.pred(tt.err))
			assert.True(t, tt.pred(fmt.Errorf("outer: %w", tt.err)), "predicate must see through wrapping")
			assert.False(t, tt.pred(errors.New("plain")))
		})
	}
}

func TestKindOf_Unwrap(t *testing.T) {
	root := errors.New("boom")
	err := Wrap(ErrKindQueryFailed, "exec failed", root)

	assert.ErrorIs(t, err, root)
	assert.Equal(t, ErrKindQueryFailed, KindOf(err))
	assert.Equal(t, ErrKindUnknown, KindOf(nil))
	assert.Equal(t, "exec failed", MessageOf(fmt.Errorf("ctx: %w", err)))
	assert.Equal(t, "boom", MessageOf(root))
}
