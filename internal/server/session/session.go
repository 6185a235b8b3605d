// Package session tracks the per-client-connection state a backend holds:
// a session id, and one handle table per resource kind mapping the
// NetworkHandle the client was given back to the local driver id the
// executor passed to the (real or simulated) driver. It is the Go
// counterpart of dittofs's NFSv4 Session (internal/protocol/nfs/v4/state),
// generalized from one slot table to one table per CUDA/Vulkan resource
// kind.
package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
)

// Session is one authenticated client connection's server-side state.
type Session struct {
	ID        uint32
	ServerID  uint16
	CreatedAt time.Time

	nextResourceID atomic.Uint64

	mu     sync.Mutex
	tables map[handle.ResourceType]map[handle.Network]uint64

	// devicePtrIndex is the secondary device_ptr -> handle.Network lookup
	// P6 requires for CuDevicePtr handles; hostPtrIndex is its HostPtr
	// counterpart.
	devicePtrIndex map[uint64]handle.Network
	hostPtrIndex   map[uint64]handle.Network
}

// New creates an empty Session.
func New(id uint32, serverID uint16) *Session {
	return &Session{
		ID:             id,
		ServerID:       serverID,
		CreatedAt:      time.Now(),
		tables:         make(map[handle.ResourceType]map[handle.Network]uint64),
		devicePtrIndex: make(map[uint64]handle.Network),
		hostPtrIndex:   make(map[uint64]handle.Network),
	}
}

func (s *Session) tableFor(kind handle.ResourceType) map[handle.Network]uint64 {
	t, ok := s.tables[kind]
	if !ok {
		t = make(map[handle.Network]uint64)
		s.tables[kind] = t
	}
	return t
}

// Allocate mints a new handle of kind and stores localID under it (I2: a
// local id, once stored, is never produced again for this table until
// Remove is called for the handle it was stored under — the monotonic
// per-session resource id counter guarantees this without reuse).
func (s *Session) Allocate(kind handle.ResourceType, localID uint64) handle.Network {
	s.mu.Lock()
	defer s.mu.Unlock()
	resourceID := s.nextResourceID.Add(1)
	h := handle.Network{ServerID: s.ServerID, SessionID: s.ID, ResourceID: resourceID, Type: kind}
	s.tableFor(kind)[h] = localID
	return h
}

// Get resolves h to its local driver id. Returns InvalidHandle-shaped
// error if h has no mapping (spec.md §7: handle-lookup errors never reach
// the wire — callers translate this into a CommandResult error locally).
func (s *Session) Get(h handle.Network) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[h.Type]
	if !ok {
		return 0, fmt.Errorf("session: no table for resource type %s", h.Type)
	}
	localID, ok := t[h]
	if !ok {
		return 0, fmt.Errorf("session: unknown handle %s", h)
	}
	return localID, nil
}

// Remove deletes h from its table. Safe to call on an already-removed or
// unknown handle.
func (s *Session) Remove(h handle.Network) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tableFor(h.Type), h)
}

// Count returns the number of live handles of kind (used by P1's
// cardinality check in tests).
func (s *Session) Count(kind handle.ResourceType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables[kind])
}

// Handles returns every live handle.Network of kind, for cleanup passes.
func (s *Session) Handles(kind handle.ResourceType) []handle.Network {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tables[kind]
	out := make([]handle.Network, 0, len(t))
	for h := range t {
		out = append(out, h)
	}
	return out
}

// AllocateDevicePtr stores a memory handle's device pointer in the
// secondary index P6 requires.
func (s *Session) AllocateDevicePtr(devicePtr uint64, h handle.Network) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devicePtrIndex[devicePtr] = h
}

// ResolveDevicePtr reverses a device pointer back to its handle.Network.
func (s *Session) ResolveDevicePtr(devicePtr uint64) (handle.Network, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.devicePtrIndex[devicePtr]
	return h, ok
}

// RemoveDevicePtr deletes devicePtr from the secondary index (P6: MemFree
// removes the handle from both the handle table and this index).
func (s *Session) RemoveDevicePtr(devicePtr uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devicePtrIndex, devicePtr)
}

func (s *Session) AllocateHostPtr(hostPtr uint64, h handle.Network) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostPtrIndex[hostPtr] = h
}

func (s *Session) ResolveHostPtr(hostPtr uint64) (handle.Network, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hostPtrIndex[hostPtr]
	return h, ok
}

func (s *Session) RemoveHostPtr(hostPtr uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hostPtrIndex, hostPtr)
}

// IsEmpty reports whether every table is empty (P3's postcondition).
func (s *Session) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tables {
		if len(t) > 0 {
			return false
		}
	}
	return true
}
