package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContextAndFromContext_RoundTrip(t *testing.T) {
	lc := &LogContext{SessionID: 1, ServerID: 2, PeerAddr: "10.0.0.1:9000"}
	ctx := WithContext(context.Background(), lc)

	got := FromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, lc, got)
}

func TestFromContext_NilWhenAbsentOrNilContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	assert.Nil(t, FromContext(nil))
}

func TestLogContext_CloneIsIndependentCopy(t *testing.T) {
	lc := &LogContext{SessionID: 5}
	clone := lc.Clone()
	require.NotNil(t, clone)
	clone.SessionID = 9
	assert.Equal(t, uint32(5), lc.SessionID, "mutating the clone must not affect the original")
}

func TestLogContext_CloneOfNilIsNil(t *testing.T) {
	var lc *LogContext
	assert.Nil(t, lc.Clone())
}

func TestLogContext_WithRequestIDSetsOnClone(t *testing.T) {
	lc := &LogContext{SessionID: 1}
	withReq := lc.WithRequestID(42)
	require.NotNil(t, withReq)
	assert.Equal(t, uint64(42), withReq.RequestID)
	assert.Equal(t, uint64(0), lc.RequestID, "the original is untouched")
}

func TestLogContext_WithRequestIDOnNilReturnsNil(t *testing.T) {
	var lc *LogContext
	assert.Nil(t, lc.WithRequestID(1))
}
