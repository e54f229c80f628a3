package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolioErrorError(t *testing.T) {
	tests := []struct {
		name     string
		err      *FolioError
		expected string
	}{
		{
			name:     "message only",
			err:      &FolioError{Message: "boom"},
			expected: "boom",
		},
		{
			name:     "code and component",
			err:      NewConfigError(ErrCodeConfigInvalid, "bad config").WithComponent("config"),
			expected: "[ERR_CONFIG_INVALID] component:config bad config",
		},
		{
			name:     "with cause",
			err:      NewStoreError(ErrCodeStoreWrite, "write failed", fmt.Errorf("connection refused")),
			expected: "[ERR_STORE_WRITE] write failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestFolioErrorIsAndUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewStoreError(ErrCodeStoreRead, "read failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, errors.Is(err, &FolioError{Type: ErrorTypeStore, Code: ErrCodeStoreRead}))
	assert.False(t, errors.Is(err, &FolioError{Type: ErrorTypeStore, Code: ErrCodeStoreWrite}))

	wrapped := fmt.Errorf("persist: %w", err)
	assert.True(t, IsStoreError(wrapped))
	assert.True(t, IsRecoverable(wrapped))
	assert.False(t, IsConfigError(wrapped))
}

func TestErrUnknownLocale(t *testing.T) {
	err := ErrUnknownLocale("xx")

	assert.True(t, IsConfigError(err))
	assert.False(t, IsRecoverable(err))
	assert.Equal(t, "xx", err.Context["code"])
	assert.Contains(t, err.Error(), "unknown locale code: xx")
}

func TestValidationErrorCollection(t *testing.T) {
	vec := &ValidationErrorCollection{}
	assert.False(t, vec.HasErrors())
	assert.Nil(t, vec.ToFolioError())
	assert.Equal(t, "no validation errors", vec.Error())

	vec.AddField("site.default", "de", "default locale is not configured", "add de to site.locales")
	assert.Equal(t, "site.default: default locale is not configured", vec.Error())

	vec.AddField("server.port", 70000, "port out of range")
	require.True(t, vec.HasErrors())
	assert.Equal(t, "validation failed with 2 errors", vec.Error())
	assert.Equal(t, []string{"server.port", "site.default"}, vec.Fields())

	fe := vec.ToFolioError()
	require.NotNil(t, fe)
	assert.Equal(t, ErrorTypeValidation, fe.Type)
	assert.Contains(t, fe.Context, "site.default")
	assert.Equal(t, "site.default: default locale is not configured; server.port: port out of range", fe.Message)
	assert.True(t, IsRecoverable(fe))
}

type recordingLogger struct {
	errors []string
	warns  []string
}

func (r *recordingLogger) Error(_ context.Context, _ error, msg string, _ ...interface{}) {
	r.errors = append(r.errors, msg)
}

func (r *recordingLogger) Warn(_ context.Context, _ error, msg string, _ ...interface{}) {
	r.warns = append(r.warns, msg)
}

func TestErrorHandler(t *testing.T) {
	logger := &recordingLogger{}
	handler := NewErrorHandler(logger)
	ctx := context.Background()

	handler.Handle(ctx, nil)
	handler.Handle(ctx, NewStoreError(ErrCodeStoreWrite, "write", nil))
	handler.Handle(ctx, NewConfigError(ErrCodeConfigInvalid, "config"))
	handler.Handle(ctx, errors.New("plain"))

	assert.Equal(t, []string{"Operation failed, continuing"}, logger.warns)
	assert.Equal(t, []string{"Operation failed", "Operation failed"}, logger.errors)
}
