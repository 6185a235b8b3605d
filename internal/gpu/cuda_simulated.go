package gpu

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// SimulatedCudaDriver behaves like real hardware for every documented
// operation without linking a real libcuda: deterministic fake device
// pointers, counters that round-trip correctly, and errors for obviously
// invalid ids. It exists so the full request/response pipeline, handle
// virtualization, and cleanup ordering are exercised and testable without
// a GPU (§4.16).
type SimulatedCudaDriver struct {
	devices []Info

	mu        sync.Mutex
	nextID    uint64
	memory    map[uint64][]byte // devicePtr -> backing bytes
	hostMem   map[uint64][]byte // hostPtr -> backing bytes
	liveIDs   map[uint64]bool
}

// NewSimulatedCudaDriver returns a driver advertising devices.
func NewSimulatedCudaDriver(devices []Info) *SimulatedCudaDriver {
	return &SimulatedCudaDriver{
		devices: devices,
		nextID:  1,
		memory:  make(map[uint64][]byte),
		hostMem: make(map[uint64][]byte),
		liveIDs: make(map[uint64]bool),
	}
}

func (d *SimulatedCudaDriver) allocID() uint64 {
	return atomic.AddUint64(&d.nextID, 1)
}

func (d *SimulatedCudaDriver) DeviceCount(ctx context.Context) (int, error) {
	return len(d.devices), nil
}

func (d *SimulatedCudaDriver) device(ordinal int) (Info, error) {
	if ordinal < 0 || ordinal >= len(d.devices) {
		return Info{}, fmt.Errorf("gpu: invalid device ordinal %d", ordinal)
	}
	return d.devices[ordinal], nil
}

func (d *SimulatedCudaDriver) DeviceName(ctx context.Context, ordinal int) (string, error) {
	dev, err := d.device(ordinal)
	if err != nil {
		return "", err
	}
	return dev.DeviceName, nil
}

func (d *SimulatedCudaDriver) DeviceUUID(ctx context.Context, ordinal int) (string, error) {
	dev, err := d.device(ordinal)
	if err != nil {
		return "", err
	}
	return dev.UUID, nil
}

func (d *SimulatedCudaDriver) DevicePCIBusID(ctx context.Context, ordinal int) (string, error) {
	dev, err := d.device(ordinal)
	if err != nil {
		return "", err
	}
	return dev.PCIBusID, nil
}

func (d *SimulatedCudaDriver) DeviceTotalMem(ctx context.Context, ordinal int) (uint64, error) {
	dev, err := d.device(ordinal)
	if err != nil {
		return 0, err
	}
	return dev.VRAMBytes, nil
}

func (d *SimulatedCudaDriver) CtxCreate(ctx context.Context, deviceOrdinal int, flags uint32) (uint64, error) {
	if _, err := d.device(deviceOrdinal); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.liveIDs[id] = true
	return id, nil
}

func (d *SimulatedCudaDriver) CtxDestroy(ctx context.Context, id uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.liveIDs, id)
	return nil
}

func (d *SimulatedCudaDriver) ModuleLoad(ctx context.Context, ctxID uint64, data []byte) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.liveIDs[id] = true
	return id, nil
}

func (d *SimulatedCudaDriver) ModuleUnload(ctx context.Context, id uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.liveIDs, id)
	return nil
}

func (d *SimulatedCudaDriver) ModuleGetFunction(ctx context.Context, moduleID uint64, name string) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.liveIDs[id] = true
	return id, nil
}

func (d *SimulatedCudaDriver) MemAlloc(ctx context.Context, ctxID uint64, bytes uint64) (uint64, uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	// The device pointer is synthesized from the local id, per spec.md §9's
	// "Device pointers that look like addresses" note: unique, non-zero,
	// and collision-free within this process.
	devicePtr := id << 12
	d.memory[devicePtr] = make([]byte, bytes)
	return id, devicePtr, nil
}

func (d *SimulatedCudaDriver) MemFree(ctx context.Context, devicePtr uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.memory[devicePtr]; !ok {
		return fmt.Errorf("gpu: MemFree of unknown device pointer %#x", devicePtr)
	}
	delete(d.memory, devicePtr)
	return nil
}

func (d *SimulatedCudaDriver) MemcpyHtoD(ctx context.Context, devicePtr uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.memory[devicePtr]
	if !ok {
		return fmt.Errorf("gpu: MemcpyHtoD to unknown device pointer %#x", devicePtr)
	}
	copy(buf, data)
	return nil
}

func (d *SimulatedCudaDriver) MemcpyDtoH(ctx context.Context, devicePtr uint64, n uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.memory[devicePtr]
	if !ok {
		return nil, fmt.Errorf("gpu: MemcpyDtoH from unknown device pointer %#x", devicePtr)
	}
	out := make([]byte, n)
	copy(out, buf)
	return out, nil
}

func (d *SimulatedCudaDriver) MemcpyDtoD(ctx context.Context, dstPtr, srcPtr uint64, n uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	src, ok := d.memory[srcPtr]
	if !ok {
		return fmt.Errorf("gpu: MemcpyDtoD from unknown device pointer %#x", srcPtr)
	}
	dst, ok := d.memory[dstPtr]
	if !ok {
		return fmt.Errorf("gpu: MemcpyDtoD to unknown device pointer %#x", dstPtr)
	}
	copy(dst, src[:n])
	return nil
}

func (d *SimulatedCudaDriver) StreamCreate(ctx context.Context, ctxID uint64, flags uint32) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.liveIDs[id] = true
	return id, nil
}

func (d *SimulatedCudaDriver) StreamDestroy(ctx context.Context, id uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.liveIDs, id)
	return nil
}

func (d *SimulatedCudaDriver) StreamSynchronize(ctx context.Context, id uint64) error { return nil }

func (d *SimulatedCudaDriver) EventCreate(ctx context.Context, ctxID uint64, flags uint32) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.liveIDs[id] = true
	return id, nil
}

func (d *SimulatedCudaDriver) EventDestroy(ctx context.Context, id uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.liveIDs, id)
	return nil
}

func (d *SimulatedCudaDriver) EventRecord(ctx context.Context, eventID, streamID uint64) error { return nil }
func (d *SimulatedCudaDriver) EventSynchronize(ctx context.Context, id uint64) error           { return nil }

func (d *SimulatedCudaDriver) EventElapsedTime(ctx context.Context, startID, endID uint64) (float32, error) {
	return 0, nil
}

func (d *SimulatedCudaDriver) LaunchKernel(ctx context.Context, fnID, streamID uint64, grid, block [3]uint32, sharedMemBytes uint32, params []byte) error {
	return nil
}

func (d *SimulatedCudaDriver) MemPoolCreate(ctx context.Context, ctxID uint64) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.liveIDs[id] = true
	return id, nil
}

func (d *SimulatedCudaDriver) MemPoolDestroy(ctx context.Context, id uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.liveIDs, id)
	return nil
}

func (d *SimulatedCudaDriver) MemPoolTrimTo(ctx context.Context, id uint64, minBytes uint64) error {
	return nil
}

func (d *SimulatedCudaDriver) LinkerCreate(ctx context.Context, ctxID uint64) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.liveIDs[id] = true
	return id, nil
}

func (d *SimulatedCudaDriver) LinkerAddData(ctx context.Context, linkerID uint64, data []byte, name string) error {
	return nil
}

func (d *SimulatedCudaDriver) LinkerComplete(ctx context.Context, linkerID uint64) ([]byte, error) {
	return []byte{}, nil
}

func (d *SimulatedCudaDriver) LinkerDestroy(ctx context.Context, id uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.liveIDs, id)
	return nil
}

func (d *SimulatedCudaDriver) HostAlloc(ctx context.Context, ctxID uint64, bytes uint64, flags uint32) (uint64, uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	hostPtr := id<<12 | 1
	d.hostMem[hostPtr] = make([]byte, bytes)
	return id, hostPtr, nil
}

func (d *SimulatedCudaDriver) HostFree(ctx context.Context, hostPtr uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.hostMem[hostPtr]; !ok {
		return fmt.Errorf("gpu: HostFree of unknown host pointer %#x", hostPtr)
	}
	delete(d.hostMem, hostPtr)
	return nil
}
