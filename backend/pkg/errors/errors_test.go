package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsErrorType_WalksWrappedChain(t *testing.T) {
	cause := stderrors.New("connection reset")
	storeErr := NewStoreFailure("publish_diary", "spatial_index", cause)
	wrapped := fmt.Errorf("service: %w", storeErr)

	assert.True(t, IsErrorType(wrapped, ErrorTypeStore))
	assert.False(t, IsErrorType(wrapped, ErrorTypeValidation))
	assert.True(t, IsRetryable(wrapped))
	assert.ErrorIs(t, wrapped, cause)

	var sf *ErrStoreFailure
	if assert.ErrorAs(t, wrapped, &sf) {
		assert.Equal(t, "spatial_index", sf.Step)
		assert.Equal(t, "publish_diary", sf.Op)
	}
	assert.Contains(t, storeErr.Error(), "at step spatial_index")
}

func TestKindHelpers(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		notFound   bool
		validation bool
		retryable  bool
	}{
		{name: "user not found", err: NewUserNotFound("u1"), notFound: true},
		{name: "post not found", err: NewPostNotFound("p1"), notFound: true},
		{name: "validation", err: NewValidationFailed("latitude", "out of range"), validation: true},
		{name: "store", err: NewStoreFailure("register", "", nil), retryable: true},
		{name: "unauthorized", err: NewUnauthorized("missing token", nil)},
		{name: "plain", err: stderrors.New("boom")},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.validation, IsValidation(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestBaseError_Message(t *testing.T) {
	err := NewValidationFailed("permission", "must be one of public, friends, private")
	assert.Equal(t, "[validation] invalid permission: must be one of public, friends, private", err.Error())
}
