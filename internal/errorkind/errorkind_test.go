// Copyright 2025 Blockscout

package errorkind

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_PlainErrorDefaultsToInternal(t *testing.T) {
	base := New(Upstream, "provider unreachable")
	wrapped := errors.New("context: " + base.Error())
	assert.Equal(t, Internal, KindOf(wrapped), "plain errors.New is not an *Error")
	assert.Equal(t, Upstream, KindOf(base))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(Upstream, "load checkpoints", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, Upstream, KindOf(err))
}

func TestRetryable_OnlyUpstream(t *testing.T) {
	assert.True(t, Retryable(New(Upstream, "x")))
	assert.False(t, Retryable(New(Internal, "x")))
	assert.False(t, Retryable(New(NotFound, "x")))
	assert.False(t, Retryable(errors.New("plain")))
}

func TestKind_String(t *testing.T) {
	cases := map[Kind]string{
		Internal:        "internal",
		InvalidArgument: "invalid_argument",
		NotFound:        "not_found",
		Conflict:        "conflict",
		Unauthorized:    "unauthorized",
		Forbidden:       "forbidden",
		Upstream:        "upstream",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
}
