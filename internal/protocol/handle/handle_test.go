package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNetwork_IsZero(t *testing.T) {
	assert.True(t, Zero.IsZero())
	assert.True(t, (Network{}).IsZero())
	assert.False(t, (Network{ResourceID: 1}).IsZero())
}

func TestNetwork_StringFormatsNonZeroHandle(t *testing.T) {
	h := Network{ServerID: 1, SessionID: 2, ResourceID: 3, Type: CuDevice}
	s := h.String()
	assert.Contains(t, s, "cu_device")
	assert.Contains(t, s, "server=1")
	assert.Contains(t, s, "session=2")
	assert.Contains(t, s, "id=3")
}

func TestNetwork_StringOfZeroHandleIsNull(t *testing.T) {
	assert.Equal(t, "null", Zero.String())
}

func TestResourceType_UnknownValueStillStringifies(t *testing.T) {
	var unknown ResourceType = 250
	assert.NotPanics(t, func() { _ = unknown.String() })
}

func TestNetwork_IsComparable(t *testing.T) {
	a := Network{ServerID: 1, SessionID: 1, ResourceID: 1, Type: VkBuffer}
	b := Network{ServerID: 1, SessionID: 1, ResourceID: 1, Type: VkBuffer}
	c := Network{ServerID: 1, SessionID: 1, ResourceID: 2, Type: VkBuffer}
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	m := map[Network]bool{a: true}
	assert.True(t, m[b])
}
