// Package pool maintains the client-wide view of connected backends:
// their GPU lists merged into one virtual ordinal space, and the lookup
// tables that let the router resolve "which backend owns this handle or
// this device pointer" (P6, S2). It mirrors original_source daemon.rs's
// PoolManager: server_index_for_handle plus default_server_index.
package pool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Fill84/RGPU-sub000/internal/config"
	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

// VirtualGPU is one entry in the client's merged device list: a single
// global ordinal standing in for one physical GPU on one backend.
type VirtualGPU struct {
	Ordinal   uint32
	ServerID  uint16
	Info      wire.GpuInfo
}

// Pool tracks every connected backend's GPU list and the virtual ordinal
// remapping clients see through cuDeviceGet/cuDeviceGetCount.
type Pool struct {
	mu       sync.RWMutex
	ordering config.PoolOrderingPolicy
	byServer map[uint16][]wire.GpuInfo
	order    []uint16 // server connect order, for config_order policy

	devicePtrOwner map[uint64]uint16
	hostPtrOwner   map[uint64]uint16

	virtual    []VirtualGPU
	defaultIdx int
}

// New creates an empty pool using the given ordinal-assignment policy.
func New(ordering config.PoolOrderingPolicy) *Pool {
	if ordering == "" {
		ordering = config.PoolOrderingConfigOrder
	}
	return &Pool{
		ordering:       ordering,
		byServer:       make(map[uint16][]wire.GpuInfo),
		devicePtrOwner: make(map[uint64]uint16),
		hostPtrOwner:   make(map[uint64]uint16),
	}
}

// SetBackendGpus records (or replaces) the GPU list a backend advertised,
// in the order it appeared in its AuthResult/GpuList, and recomputes the
// merged virtual ordinal space.
func (p *Pool) SetBackendGpus(serverID uint16, gpus []wire.GpuInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, known := p.byServer[serverID]; !known {
		p.order = append(p.order, serverID)
	}
	p.byServer[serverID] = gpus
	p.rebuildVirtualLocked()
}

// RemoveBackend drops a disconnected backend's GPUs from the merged view
// (S6: a dead backend's devices disappear from enumeration until it
// reconnects).
func (p *Pool) RemoveBackend(serverID uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.byServer, serverID)
	for i, id := range p.order {
		if id == serverID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	p.rebuildVirtualLocked()
}

func (p *Pool) rebuildVirtualLocked() {
	servers := make([]uint16, len(p.order))
	copy(servers, p.order)

	switch p.ordering {
	case config.PoolOrderingRoundRobin:
		p.virtual = roundRobin(p.byServer, servers)
	case config.PoolOrderingLargestVRAMFirst:
		p.virtual = largestVRAMFirst(p.byServer, servers)
	default:
		p.virtual = configOrder(p.byServer, servers)
	}

	if len(p.virtual) > 0 {
		p.defaultIdx = int(p.virtual[0].ServerID)
	} else {
		p.defaultIdx = -1
	}
}

func configOrder(byServer map[uint16][]wire.GpuInfo, servers []uint16) []VirtualGPU {
	var out []VirtualGPU
	var ordinal uint32
	for _, serverID := range servers {
		for _, g := range byServer[serverID] {
			out = append(out, VirtualGPU{Ordinal: ordinal, ServerID: serverID, Info: g})
			ordinal++
		}
	}
	return out
}

func roundRobin(byServer map[uint16][]wire.GpuInfo, servers []uint16) []VirtualGPU {
	sorted := append([]uint16(nil), servers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var out []VirtualGPU
	var ordinal uint32
	idx := make(map[uint16]int)
	for {
		progressed := false
		for _, serverID := range sorted {
			gpus := byServer[serverID]
			i := idx[serverID]
			if i >= len(gpus) {
				continue
			}
			out = append(out, VirtualGPU{Ordinal: ordinal, ServerID: serverID, Info: gpus[i]})
			ordinal++
			idx[serverID] = i + 1
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return out
}

// largestVRAMFirst assigns ordinals by descending VRAM across every
// connected backend's GPUs, ties broken by (server_id, local_ordinal)
// for a stable, reproducible order across rebuilds (§4.6 apply_ordering).
func largestVRAMFirst(byServer map[uint16][]wire.GpuInfo, servers []uint16) []VirtualGPU {
	var flat []VirtualGPU
	for _, serverID := range servers {
		for _, g := range byServer[serverID] {
			flat = append(flat, VirtualGPU{ServerID: serverID, Info: g})
		}
	}

	sort.SliceStable(flat, func(i, j int) bool {
		if flat[i].Info.VRAMBytes != flat[j].Info.VRAMBytes {
			return flat[i].Info.VRAMBytes > flat[j].Info.VRAMBytes
		}
		if flat[i].ServerID != flat[j].ServerID {
			return flat[i].ServerID < flat[j].ServerID
		}
		return flat[i].Info.LocalOrdinal < flat[j].Info.LocalOrdinal
	})

	for i := range flat {
		flat[i].Ordinal = uint32(i)
	}
	return flat
}

// Virtual returns a snapshot of the merged GPU list, the order
// cuDeviceGet/cuDeviceGetCount see.
func (p *Pool) Virtual() []VirtualGPU {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]VirtualGPU, len(p.virtual))
	copy(out, p.virtual)
	return out
}

// ResolveOrdinal maps a virtual device ordinal to the backend that owns
// it, as cuDeviceGet must before it can forward the real call.
func (p *Pool) ResolveOrdinal(ordinal uint32) (serverID uint16, localOrdinal uint32, err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, v := range p.virtual {
		if v.Ordinal == ordinal {
			return v.ServerID, v.Info.LocalOrdinal, nil
		}
	}
	return 0, 0, fmt.Errorf("pool: no backend owns device ordinal %d", ordinal)
}

// CudaVirtual returns the subset of Virtual() whose GPUs are CUDA-capable,
// renumbered into its own contiguous ordinal space (0..n-1, same relative
// order as Virtual()). cuDeviceGetCount/cuDeviceGet (spec.md §4.6) must
// only see CUDA-capable devices, not every GPU in the pool — a
// Vulkan-only backend's device otherwise inflates the count and shifts
// every later ordinal out from under ResolveCudaOrdinal.
func (p *Pool) CudaVirtual() []VirtualGPU {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []VirtualGPU
	var ordinal uint32
	for _, v := range p.virtual {
		if !v.Info.IsCudaCapable {
			continue
		}
		v.Ordinal = ordinal
		out = append(out, v)
		ordinal++
	}
	return out
}

// ResolveCudaOrdinal is ResolveOrdinal restricted to CUDA-capable GPUs,
// so a caller's cuDeviceGet(ordinal) ordinal — drawn from
// CudaVirtual()'s renumbered space — maps back to the right backend and
// local ordinal instead of CudaVirtual and Virtual disagreeing on what
// ordinal N means.
func (p *Pool) ResolveCudaOrdinal(ordinal uint32) (serverID uint16, localOrdinal uint32, err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var i uint32
	for _, v := range p.virtual {
		if !v.Info.IsCudaCapable {
			continue
		}
		if i == ordinal {
			return v.ServerID, v.Info.LocalOrdinal, nil
		}
		i++
	}
	return 0, 0, fmt.Errorf("pool: no CUDA-capable backend owns device ordinal %d", ordinal)
}

// ServerIndexForHandle resolves which backend owns h, by its embedded
// ServerID — mirroring daemon.rs's server_index_for_handle, which reads
// the same field straight off the NetworkHandle rather than a lookup.
func (p *Pool) ServerIndexForHandle(h handle.Network) (uint16, bool) {
	if h.IsZero() {
		return 0, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.byServer[h.ServerID]; !ok {
		return 0, false
	}
	return h.ServerID, true
}

// TrackDevicePtr records which backend owns a synthesized device pointer,
// so a later cuMemFree/cuMemcpyHtoD/cuMemcpyDtoH carrying only the raw
// pointer (not a NetworkHandle) can still be routed (P6).
func (p *Pool) TrackDevicePtr(ptr uint64, serverID uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.devicePtrOwner[ptr] = serverID
}

// UntrackDevicePtr forgets a freed device pointer's owner.
func (p *Pool) UntrackDevicePtr(ptr uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.devicePtrOwner, ptr)
}

// ServerForDevicePtr resolves a raw device pointer to its owning backend.
func (p *Pool) ServerForDevicePtr(ptr uint64) (uint16, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.devicePtrOwner[ptr]
	return id, ok
}

// TrackHostPtr is TrackDevicePtr's counterpart for pinned host memory.
func (p *Pool) TrackHostPtr(ptr uint64, serverID uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hostPtrOwner[ptr] = serverID
}

// UntrackHostPtr forgets a freed host pointer's owner.
func (p *Pool) UntrackHostPtr(ptr uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.hostPtrOwner, ptr)
}

// ServerForHostPtr resolves a raw host pointer to its owning backend.
func (p *Pool) ServerForHostPtr(ptr uint64) (uint16, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.hostPtrOwner[ptr]
	return id, ok
}

// DefaultServerID returns the backend creation/global calls fall back to
// when they carry no routing handle: the first backend in ordinal order,
// or an error if none are connected. Mirrors daemon.rs's
// default_server_index().unwrap_or(0), but surfaces the no-backend case
// instead of silently picking server 0.
func (p *Pool) DefaultServerID() (uint16, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.virtual) == 0 {
		return 0, fmt.Errorf("pool: no backends connected")
	}
	return p.virtual[0].ServerID, nil
}

// Backends returns the set of currently connected server ids, in connect
// order.
func (p *Pool) Backends() []uint16 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]uint16, len(p.order))
	copy(out, p.order)
	return out
}
