package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
)

func TestAllocate_MintsDistinctHandlesAndResolves(t *testing.T) {
	s := New(1, 7)
	a := s.Allocate(handle.CuContext, 100)
	b := s.Allocate(handle.CuContext, 200)

	assert.NotEqual(t, a, b, "successive allocations never collide (I2)")
	assert.Equal(t, uint16(7), a.ServerID)
	assert.Equal(t, uint32(1), a.SessionID)

	localID, err := s.Get(a)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), localID)
}

func TestGet_UnknownHandleOrTableErrors(t *testing.T) {
	s := New(1, 7)
	_, err := s.Get(handle.Network{Type: handle.CuContext, ResourceID: 1})
	assert.Error(t, err, "no table yet for this resource type")

	h := s.Allocate(handle.CuContext, 1)
	_, err = s.Get(handle.Network{Type: handle.CuContext, ResourceID: h.ResourceID + 1})
	assert.Error(t, err, "table exists but this id was never allocated")
}

func TestRemove_IsIdempotent(t *testing.T) {
	s := New(1, 7)
	h := s.Allocate(handle.CuStream, 1)
	s.Remove(h)
	assert.NotPanics(t, func() { s.Remove(h) })
	_, err := s.Get(h)
	assert.Error(t, err)
}

func TestCountAndHandles(t *testing.T) {
	s := New(1, 7)
	s.Allocate(handle.CuEvent, 1)
	h2 := s.Allocate(handle.CuEvent, 2)
	assert.Equal(t, 2, s.Count(handle.CuEvent))

	s.Remove(h2)
	assert.Equal(t, 1, s.Count(handle.CuEvent))
	assert.Len(t, s.Handles(handle.CuEvent), 1)
}

func TestDevicePtrIndex_RoundTripsAndClears(t *testing.T) {
	s := New(1, 7)
	h := s.Allocate(handle.CuDevicePtr, 0xbeef)
	s.AllocateDevicePtr(0xbeef, h)

	got, ok := s.ResolveDevicePtr(0xbeef)
	require.True(t, ok)
	assert.Equal(t, h, got)

	s.RemoveDevicePtr(0xbeef)
	_, ok = s.ResolveDevicePtr(0xbeef)
	assert.False(t, ok)
}

func TestHostPtrIndex_RoundTripsAndClears(t *testing.T) {
	s := New(1, 7)
	h := s.Allocate(handle.CuHostPtr, 0xf00d)
	s.AllocateHostPtr(0xf00d, h)

	got, ok := s.ResolveHostPtr(0xf00d)
	require.True(t, ok)
	assert.Equal(t, h, got)

	s.RemoveHostPtr(0xf00d)
	_, ok = s.ResolveHostPtr(0xf00d)
	assert.False(t, ok)
}

func TestIsEmpty(t *testing.T) {
	s := New(1, 7)
	assert.True(t, s.IsEmpty())

	h := s.Allocate(handle.CuContext, 1)
	assert.False(t, s.IsEmpty())

	s.Remove(h)
	assert.True(t, s.IsEmpty())
}
