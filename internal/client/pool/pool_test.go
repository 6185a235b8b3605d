package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fill84/RGPU-sub000/internal/config"
	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

func twoGpus(name string) []wire.GpuInfo {
	return []wire.GpuInfo{
		{LocalOrdinal: 0, DeviceName: name + "-0"},
		{LocalOrdinal: 1, DeviceName: name + "-1"},
	}
}

func TestPool_ConfigOrder_ConcatenatesByConnectOrder(t *testing.T) {
	p := New(config.PoolOrderingConfigOrder)
	p.SetBackendGpus(2, twoGpus("b2"))
	p.SetBackendGpus(1, twoGpus("b1"))

	virtual := p.Virtual()
	require.Len(t, virtual, 4)
	// server 2 connected first, so its GPUs occupy the first ordinals.
	assert.Equal(t, uint16(2), virtual[0].ServerID)
	assert.Equal(t, uint16(2), virtual[1].ServerID)
	assert.Equal(t, uint16(1), virtual[2].ServerID)
	assert.Equal(t, uint16(1), virtual[3].ServerID)
	for i, v := range virtual {
		assert.Equal(t, uint32(i), v.Ordinal)
	}
}

func TestPool_RoundRobin_InterleavesByServerIDOrder(t *testing.T) {
	p := New(config.PoolOrderingRoundRobin)
	p.SetBackendGpus(2, twoGpus("b2"))
	p.SetBackendGpus(1, twoGpus("b1"))

	virtual := p.Virtual()
	require.Len(t, virtual, 4)
	// round-robin sorts by server_id ascending, so 1 comes before 2
	// regardless of connect order.
	assert.Equal(t, []uint16{1, 2, 1, 2}, []uint16{
		virtual[0].ServerID, virtual[1].ServerID, virtual[2].ServerID, virtual[3].ServerID,
	})
}

func TestPool_ResolveOrdinal(t *testing.T) {
	p := New(config.PoolOrderingConfigOrder)
	p.SetBackendGpus(5, twoGpus("b5"))

	serverID, localOrdinal, err := p.ResolveOrdinal(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(5), serverID)
	assert.Equal(t, uint32(1), localOrdinal)

	_, _, err = p.ResolveOrdinal(99)
	assert.Error(t, err)
}

func TestPool_CudaVirtual_ExcludesVulkanOnlyGpusAndRenumbers(t *testing.T) {
	p := New(config.PoolOrderingConfigOrder)
	p.SetBackendGpus(1, []wire.GpuInfo{
		{LocalOrdinal: 0, DeviceName: "b1-cuda", IsCudaCapable: true},
		{LocalOrdinal: 1, DeviceName: "b1-vulkan-only", IsVulkanCapable: true},
	})
	p.SetBackendGpus(2, []wire.GpuInfo{
		{LocalOrdinal: 0, DeviceName: "b2-cuda", IsCudaCapable: true},
	})

	require.Len(t, p.Virtual(), 3, "cuDeviceGetCount must never see this unfiltered count")

	cudaOnly := p.CudaVirtual()
	require.Len(t, cudaOnly, 2)
	assert.Equal(t, "b1-cuda", cudaOnly[0].Info.DeviceName)
	assert.Equal(t, uint32(0), cudaOnly[0].Ordinal)
	assert.Equal(t, "b2-cuda", cudaOnly[1].Info.DeviceName)
	assert.Equal(t, uint32(1), cudaOnly[1].Ordinal)

	serverID, localOrdinal, err := p.ResolveCudaOrdinal(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), serverID)
	assert.Equal(t, uint32(0), localOrdinal)

	_, _, err = p.ResolveCudaOrdinal(2)
	assert.Error(t, err, "ordinal 2 only exists in the unfiltered view")
}

func TestPool_LargestVRAMFirst_SortsDescendingThenByServerThenLocalOrdinal(t *testing.T) {
	p := New(config.PoolOrderingLargestVRAMFirst)
	p.SetBackendGpus(2, []wire.GpuInfo{
		{LocalOrdinal: 0, DeviceName: "b2-small", VRAMBytes: 4 << 30},
		{LocalOrdinal: 1, DeviceName: "b2-tie", VRAMBytes: 8 << 30},
	})
	p.SetBackendGpus(1, []wire.GpuInfo{
		{LocalOrdinal: 0, DeviceName: "b1-tie", VRAMBytes: 8 << 30},
		{LocalOrdinal: 1, DeviceName: "b1-big", VRAMBytes: 16 << 30},
	})

	virtual := p.Virtual()
	require.Len(t, virtual, 4)
	names := []string{virtual[0].Info.DeviceName, virtual[1].Info.DeviceName, virtual[2].Info.DeviceName, virtual[3].Info.DeviceName}
	// b1-big has the most VRAM; the two 8GiB GPUs tie and are broken by
	// server_id ascending (1 before 2); b2-small is last.
	assert.Equal(t, []string{"b1-big", "b1-tie", "b2-tie", "b2-small"}, names)
	for i, v := range virtual {
		assert.Equal(t, uint32(i), v.Ordinal)
	}
}

func TestPool_RemoveBackend_DropsItsGpusAndReordersVirtual(t *testing.T) {
	p := New(config.PoolOrderingConfigOrder)
	p.SetBackendGpus(1, twoGpus("b1"))
	p.SetBackendGpus(2, twoGpus("b2"))
	require.Len(t, p.Virtual(), 4)

	p.RemoveBackend(1)
	virtual := p.Virtual()
	require.Len(t, virtual, 2)
	for _, v := range virtual {
		assert.Equal(t, uint16(2), v.ServerID)
	}

	_, _, err := p.ResolveOrdinal(3)
	assert.Error(t, err)
}

func TestPool_ServerIndexForHandle(t *testing.T) {
	p := New(config.PoolOrderingConfigOrder)
	p.SetBackendGpus(3, twoGpus("b3"))

	id, ok := p.ServerIndexForHandle(handle.Network{ServerID: 3})
	require.True(t, ok)
	assert.Equal(t, uint16(3), id)

	_, ok = p.ServerIndexForHandle(handle.Network{ServerID: 9})
	assert.False(t, ok)

	_, ok = p.ServerIndexForHandle(handle.Network{})
	assert.False(t, ok, "the zero handle never routes anywhere")
}

func TestPool_DevicePtrTracking(t *testing.T) {
	p := New(config.PoolOrderingConfigOrder)
	p.TrackDevicePtr(0x1000, 4)

	id, ok := p.ServerForDevicePtr(0x1000)
	require.True(t, ok)
	assert.Equal(t, uint16(4), id)

	p.UntrackDevicePtr(0x1000)
	_, ok = p.ServerForDevicePtr(0x1000)
	assert.False(t, ok)
}

func TestPool_HostPtrTracking(t *testing.T) {
	p := New(config.PoolOrderingConfigOrder)
	p.TrackHostPtr(0x2000, 6)

	id, ok := p.ServerForHostPtr(0x2000)
	require.True(t, ok)
	assert.Equal(t, uint16(6), id)
}

func TestPool_DefaultServerID(t *testing.T) {
	p := New(config.PoolOrderingConfigOrder)
	_, err := p.DefaultServerID()
	assert.Error(t, err, "no backends connected yet")

	p.SetBackendGpus(7, twoGpus("b7"))
	id, err := p.DefaultServerID()
	require.NoError(t, err)
	assert.Equal(t, uint16(7), id)
}

func TestPool_Backends_PreservesConnectOrder(t *testing.T) {
	p := New(config.PoolOrderingConfigOrder)
	p.SetBackendGpus(9, nil)
	p.SetBackendGpus(2, nil)
	p.SetBackendGpus(5, nil)

	assert.Equal(t, []uint16{9, 2, 5}, p.Backends())
}
