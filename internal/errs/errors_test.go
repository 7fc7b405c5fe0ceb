package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	assert.Equal(t, "[invalid_input] pool misconfigured", New(ErrKindInvalidInput, "pool misconfigured").Error())
	assert.Equal(t, "[connection_failed] ping failed: dial tcp: connection refused",
		Wrap(ErrKindConnectionFailed, "ping failed", cause).Error())
	assert.Equal(t, "[not_found] database \"app\" missing", Newf(ErrKindNotFound, "database %q missing", "app").Error())
}

func TestKindOf_TraversesChain(t *testing.T) {
	cause := errors.New("boom")
	inner := Wrap(ErrKindTimeout, "query timed out", cause)
	outer := fmt.Errorf("opening pool: %w", inner)

	assert.Equal(t, ErrKindTimeout, KindOf(outer))
	assert.True(t, IsTimeout(outer))
	assert.ErrorIs(t, outer, cause)
	assert.Equal(t, ErrKindUnknown, KindOf(cause))
	assert.Equal(t, ErrKindUnknown, KindOf(nil))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		kind ErrKind
		pred func(error) bool
	}{
		{ErrKindNotFound, IsNotFound},
		{ErrKindTimeout, IsTimeout},
		{ErrKindConnectionFailed, IsConnectionFailed},
		{ErrKindQueryFailed, IsQueryFailed},
		{ErrKindInvalidInput, IsInvalidInput},
		{ErrKindPermissionDenied, IsPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.True(t, tt.pred(New(tt.kind, "x")))
			assert.False(t, tt.pred(New(ErrKindUnknown, "x")))
		})
	}
}
