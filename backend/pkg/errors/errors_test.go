package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorTypeOf(t *testing.T) {
	cause := stderrors.New("connection refused")

	tests := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{name: "fetch", err: NewFetchFailed("http://x/a.pdf", 0, cause), expected: ErrorTypeFetch},
		{name: "malformed", err: NewMalformedDocument("no trailer", cause), expected: ErrorTypeExtract},
		{name: "store", err: NewStoreUnavailable("find Author", cause), expected: ErrorTypeGraph},
		{name: "index", err: NewIndexUnavailable("4:x:1", cause), expected: ErrorTypeIndex},
		{name: "ingest wrapping store", err: NewIngestionFailed("http://x/a.pdf", NewStoreUnavailable("create", cause)), expected: ErrorTypeIngest},
		{name: "fmt-wrapped", err: fmt.Errorf("worker: %w", NewMalformedDocument("bad", nil)), expected: ErrorTypeExtract},
		{name: "untyped", err: cause, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ErrorTypeOf(tt.err))
		})
	}
}

func TestIsInfrastructure(t *testing.T) {
	cause := stderrors.New("boom")

	assert.True(t, IsInfrastructure(NewStoreUnavailable("find", cause)))
	assert.True(t, IsInfrastructure(NewIndexUnavailable("1", cause)))
	assert.True(t, IsInfrastructure(NewIngestionFailed("u", NewStoreUnavailable("create", cause))))
	assert.False(t, IsInfrastructure(NewIngestionFailed("u", cause)))
	assert.False(t, IsInfrastructure(NewFetchFailed("u", 503, cause)))
	assert.False(t, IsInfrastructure(NewMalformedDocument("bad", cause)))
	assert.False(t, IsInfrastructure(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewFetchFailed("u", 503, nil)))
	assert.True(t, IsRetryable(NewFetchFailed("u", 0, stderrors.New("reset"))))
	assert.False(t, IsRetryable(NewFetchFailed("u", 404, nil)))
	assert.False(t, IsRetryable(NewMalformedDocument("bad", nil)))
	assert.False(t, IsRetryable(NewContextTimeout("fetch", time.Second, nil)))
	assert.True(t, IsRetryable(NewStoreUnavailable("find", nil)))
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := stderrors.New("socket closed")
	err := NewIngestionFailed("u", NewStoreUnavailable("create", cause))

	assert.ErrorIs(t, err, cause)

	var storeErr *ErrStoreUnavailable
	assert.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "create", storeErr.Operation)
}

func TestFetchFailedMessage(t *testing.T) {
	assert.Equal(t, "[fetch] failed to fetch http://x: HTTP 404", NewFetchFailed("http://x", 404, nil).Error())
	assert.Equal(t, "[fetch] failed to fetch http://x: eof", NewFetchFailed("http://x", 0, stderrors.New("eof")).Error())
}
