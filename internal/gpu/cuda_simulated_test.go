package gpu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCudaDriver() *SimulatedCudaDriver {
	return NewSimulatedCudaDriver([]Info{
		{LocalOrdinal: 0, DeviceName: "sim-0", VRAMBytes: 1 << 30, PCIBusID: "0000:01:00.0", UUID: "uuid-0"},
		{LocalOrdinal: 1, DeviceName: "sim-1", VRAMBytes: 1 << 31, PCIBusID: "0000:02:00.0", UUID: "uuid-1"},
	})
}

func TestCudaDriver_DeviceMetadataByOrdinal(t *testing.T) {
	d := newCudaDriver()
	ctx := context.Background()

	n, err := d.DeviceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	name, err := d.DeviceName(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "sim-1", name)

	uuid, err := d.DeviceUUID(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "uuid-0", uuid)

	bus, err := d.DevicePCIBusID(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "0000:01:00.0", bus)

	mem, err := d.DeviceTotalMem(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1<<31, mem)
}

func TestCudaDriver_InvalidOrdinalErrors(t *testing.T) {
	d := newCudaDriver()
	ctx := context.Background()

	_, err := d.DeviceName(ctx, 5)
	assert.Error(t, err)
	_, err = d.DeviceTotalMem(ctx, -1)
	assert.Error(t, err)
	_, err = d.CtxCreate(ctx, 5, 0)
	assert.Error(t, err)
}

func TestCudaDriver_MemAllocProducesUniqueNonZeroDevicePtrs(t *testing.T) {
	d := newCudaDriver()
	ctx := context.Background()

	_, ptrA, err := d.MemAlloc(ctx, 1, 64)
	require.NoError(t, err)
	_, ptrB, err := d.MemAlloc(ctx, 1, 64)
	require.NoError(t, err)

	assert.NotZero(t, ptrA)
	assert.NotZero(t, ptrB)
	assert.NotEqual(t, ptrA, ptrB)
}

func TestCudaDriver_MemFreeOfUnknownPointerErrors(t *testing.T) {
	d := newCudaDriver()
	assert.Error(t, d.MemFree(context.Background(), 0xdeadbeef))
}

func TestCudaDriver_MemcpyDtoD_CopiesBetweenTwoAllocations(t *testing.T) {
	d := newCudaDriver()
	ctx := context.Background()

	_, src, err := d.MemAlloc(ctx, 1, 8)
	require.NoError(t, err)
	_, dst, err := d.MemAlloc(ctx, 1, 8)
	require.NoError(t, err)

	require.NoError(t, d.MemcpyHtoD(ctx, src, []byte{9, 8, 7, 6}))
	require.NoError(t, d.MemcpyDtoD(ctx, dst, src, 4))

	out, err := d.MemcpyDtoH(ctx, dst, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7, 6}, out)
}

func TestCudaDriver_MemcpyDtoD_UnknownSrcOrDstErrors(t *testing.T) {
	d := newCudaDriver()
	ctx := context.Background()
	_, dst, err := d.MemAlloc(ctx, 1, 8)
	require.NoError(t, err)

	assert.Error(t, d.MemcpyDtoD(ctx, dst, 0xbad, 4))
	assert.Error(t, d.MemcpyDtoD(ctx, 0xbad, dst, 4))
}

func TestCudaDriver_HostAllocFreeRoundTrip(t *testing.T) {
	d := newCudaDriver()
	ctx := context.Background()

	_, hostPtr, err := d.HostAlloc(ctx, 1, 32, 0)
	require.NoError(t, err)
	assert.NotZero(t, hostPtr)

	require.NoError(t, d.HostFree(ctx, hostPtr))
	assert.Error(t, d.HostFree(ctx, hostPtr))
}

func TestCudaDriver_CtxAndStreamAndEventLifecycle(t *testing.T) {
	d := newCudaDriver()
	ctx := context.Background()

	ctxID, err := d.CtxCreate(ctx, 0, 0)
	require.NoError(t, err)
	require.NoError(t, d.CtxDestroy(ctx, ctxID))

	streamID, err := d.StreamCreate(ctx, ctxID, 0)
	require.NoError(t, err)
	require.NoError(t, d.StreamSynchronize(ctx, streamID))
	require.NoError(t, d.StreamDestroy(ctx, streamID))

	eventID, err := d.EventCreate(ctx, ctxID, 0)
	require.NoError(t, err)
	require.NoError(t, d.EventRecord(ctx, eventID, streamID))
	require.NoError(t, d.EventSynchronize(ctx, eventID))
	require.NoError(t, d.EventDestroy(ctx, eventID))
}

func TestCudaDriver_ModuleAndLinkerLifecycle(t *testing.T) {
	d := newCudaDriver()
	ctx := context.Background()

	ctxID, err := d.CtxCreate(ctx, 0, 0)
	require.NoError(t, err)

	modID, err := d.ModuleLoad(ctx, ctxID, []byte("fake-cubin"))
	require.NoError(t, err)
	fnID, err := d.ModuleGetFunction(ctx, modID, "kernel_main")
	require.NoError(t, err)
	assert.NotZero(t, fnID)
	require.NoError(t, d.ModuleUnload(ctx, modID))

	linkerID, err := d.LinkerCreate(ctx, ctxID)
	require.NoError(t, err)
	require.NoError(t, d.LinkerAddData(ctx, linkerID, []byte("ptx"), "module.ptx"))
	cubin, err := d.LinkerComplete(ctx, linkerID)
	require.NoError(t, err)
	assert.NotNil(t, cubin)
	require.NoError(t, d.LinkerDestroy(ctx, linkerID))
}

func TestCudaDriver_MemPoolLifecycle(t *testing.T) {
	d := newCudaDriver()
	ctx := context.Background()
	ctxID, err := d.CtxCreate(ctx, 0, 0)
	require.NoError(t, err)

	poolID, err := d.MemPoolCreate(ctx, ctxID)
	require.NoError(t, err)
	require.NoError(t, d.MemPoolTrimTo(ctx, poolID, 0))
	require.NoError(t, d.MemPoolDestroy(ctx, poolID))
}
