// Package handlestore is the client-side mirror of internal/server/session:
// one table per resource kind mapping the local_id the intercepted driver
// caller sees back to the NetworkHandle that identifies the real resource
// on whichever backend owns it (spec.md §3's client-side handle tables).
package handlestore

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
)

// Store is one client connection's complete set of local_id -> NetworkHandle
// tables, plus the device_ptr/host_ptr secondary indices spec.md §3 calls
// for (P6).
type Store struct {
	mu      sync.RWMutex
	tables  map[handle.ResourceType]map[uint64]handle.Network
	nextID  atomic.Uint64

	devicePtrs map[uint64]handle.Network
	hostPtrs   map[uint64]handle.Network
}

// New creates an empty client-side handle store.
func New() *Store {
	return &Store{
		tables:     make(map[handle.ResourceType]map[uint64]handle.Network),
		devicePtrs: make(map[uint64]handle.Network),
		hostPtrs:   make(map[uint64]handle.Network),
	}
}

// Put allocates a fresh local_id for h and records the mapping, returning
// the local_id the intercepted call should hand back to its caller.
// Non-dispatchable opaque handles may reuse h.ResourceID directly per
// spec.md §3; this store always mints a client-local counter instead so a
// client juggling handles from several backends never collides two
// identical ResourceIDs from different ServerIDs.
func (s *Store) Put(kind handle.ResourceType, h handle.Network) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	localID := s.nextID.Add(1)
	table, ok := s.tables[kind]
	if !ok {
		table = make(map[uint64]handle.Network)
		s.tables[kind] = table
	}
	table[localID] = h
	return localID
}

// Get resolves a local_id back to its NetworkHandle.
func (s *Store) Get(kind handle.ResourceType, localID uint64) (handle.Network, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	table, ok := s.tables[kind]
	if !ok {
		return handle.Network{}, fmt.Errorf("handlestore: no table for %s", kind)
	}
	h, ok := table[localID]
	if !ok {
		return handle.Network{}, fmt.Errorf("handlestore: unknown %s local_id %d", kind, localID)
	}
	return h, nil
}

// Remove forgets a local_id, as the intercepted Destroy/Free call does.
func (s *Store) Remove(kind handle.ResourceType, localID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables[kind], localID)
}

// PutDevicePtr records the synthesized device pointer returned for a
// cuMemAlloc/vkAllocateMemory-shaped call, so a later call carrying only
// the raw pointer (cuMemFree, cuMemcpyHtoD/DtoH) can still resolve its
// NetworkHandle.
func (s *Store) PutDevicePtr(ptr uint64, h handle.Network) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devicePtrs[ptr] = h
}

// ResolveDevicePtr is PutDevicePtr's reverse lookup.
func (s *Store) ResolveDevicePtr(ptr uint64) (handle.Network, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.devicePtrs[ptr]
	return h, ok
}

// RemoveDevicePtr forgets a freed device pointer.
func (s *Store) RemoveDevicePtr(ptr uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devicePtrs, ptr)
}

// PutHostPtr/ResolveHostPtr/RemoveHostPtr mirror the device-pointer
// secondary index for pinned host memory (cuMemHostAlloc/cuMemFreeHost).
func (s *Store) PutHostPtr(ptr uint64, h handle.Network) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostPtrs[ptr] = h
}

func (s *Store) ResolveHostPtr(ptr uint64) (handle.Network, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hostPtrs[ptr]
	return h, ok
}

func (s *Store) RemoveHostPtr(ptr uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hostPtrs, ptr)
}

// Count reports how many live local_ids a kind currently holds, for
// diagnostics (rgpu-verify).
func (s *Store) Count(kind handle.ResourceType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[kind])
}

// DispatchHeader is the heap-allocated header every dispatchable Vulkan
// handle (instance, physical device, device, queue, command buffer) must
// begin with: a leading dispatch-table pointer, exactly as the loader ABI
// requires (spec.md §9/§4). LoaderMagic occupies that dispatch-table
// slot: NewDispatchable fills it with the ICD loader magic value (the
// value a Vulkan loader checks for in a handle an ICD hands back) rather
// than a table address, and ReadDispatchable rejects any header whose
// first word is not that value. The internal id directly follows the
// dispatch-table slot, and is
// always read through this layout rather than by treating the handle as
// a bare id.
type DispatchHeader struct {
	LoaderMagic uint64
	LocalID     uint64
}

// dispatchHeaders keeps every allocated header alive for the lifetime of
// the process; Go values referenced only via uintptr (as a C ABI caller
// sees them) are otherwise invisible to the garbage collector.
var (
	dispatchMu      sync.Mutex
	dispatchHeaders = make(map[uint64]*DispatchHeader)
)

// loaderMagic is the ICD loader's well-known dispatch-table identification
// value (VK_LOADER_DATA.loaderMagic in the real loader ABI).
const loaderMagic = 0x01cdc0de

// NewDispatchable allocates a DispatchHeader for localID and returns it,
// keeping the header pinned so its address stays valid for as long as
// the handle is live. Callers hand the header's address to the C caller
// as the dispatchable handle's value.
func NewDispatchable(localID uint64) *DispatchHeader {
	h := &DispatchHeader{LoaderMagic: loaderMagic, LocalID: localID}
	dispatchMu.Lock()
	dispatchHeaders[localID] = h
	dispatchMu.Unlock()
	return h
}

// ForgetDispatchable releases a dispatchable handle's pinned header once
// its owning resource is destroyed.
func ForgetDispatchable(localID uint64) {
	dispatchMu.Lock()
	delete(dispatchHeaders, localID)
	dispatchMu.Unlock()
}

// ReadDispatchable reads the internal id behind a dispatch-table pointer,
// the way every intercepted entry point taking a dispatchable handle must
// dereference its argument.
func ReadDispatchable(h *DispatchHeader) (uint64, error) {
	if h == nil {
		return 0, fmt.Errorf("handlestore: nil dispatchable handle")
	}
	if h.LoaderMagic != loaderMagic {
		return 0, fmt.Errorf("handlestore: dispatchable handle has wrong loader magic %#x", h.LoaderMagic)
	}
	return h.LocalID, nil
}
