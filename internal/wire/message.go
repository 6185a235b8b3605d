package wire

import (
	"github.com/Fill84/RGPU-sub000/internal/protocol/cuda"
	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
	"github.com/Fill84/RGPU-sub000/internal/protocol/vulkan"
)

// MessageType tags the sum type carried in a frame payload's first two
// bytes. Every variant in spec.md §6's wire-protocol table has exactly one
// MessageType; QueryGpus/GpuList, CudaCommand/CudaResponse and
// VulkanCommand/VulkanResponse are distinct request/response tags rather
// than a single bidirectional one, so a peer never has to sniff direction.
type MessageType uint16

const (
	MsgHello MessageType = iota + 1
	MsgAuthenticate
	MsgAuthResult
	MsgQueryGpus
	MsgGpuList
	MsgCudaCommand
	MsgCudaResponse
	MsgCudaBatch
	MsgCudaBatchResponse
	MsgVulkanCommand
	MsgVulkanResponse
	MsgSubmitRecordedCommands
	MsgPing
	MsgPong
	MsgQueryMetrics
	MsgMetricsData
	MsgError
)

// ProtocolVersion is advertised in Hello; peers whose versions differ
// refuse the connection.
const ProtocolVersion uint32 = 1

// Hello is the first message sent by either peer when a connection opens.
type Hello struct {
	ProtocolVersion uint32
	PeerName        string
	Challenge       []byte // server→client only; empty otherwise
}

// Authenticate answers a Hello's challenge with a token and a response hash.
type Authenticate struct {
	Token             string
	ChallengeResponse []byte
}

// GpuInfo describes one physical accelerator a backend advertises.
type GpuInfo struct {
	ServerID               uint16
	LocalOrdinal           uint32
	DeviceName             string
	VRAMBytes              uint64
	ComputeCapabilityMajor uint32
	ComputeCapabilityMinor uint32
	IsCudaCapable           bool
	IsVulkanCapable         bool
	PCIBusID                string
	UUID                    string
}

// AuthResult is the server's reply to Authenticate.
type AuthResult struct {
	Success   bool
	SessionID uint32
	ServerID  uint16
	Gpus      []GpuInfo
	Error     string
}

// QueryGpus asks a connected backend to re-list its GPUs.
type QueryGpus struct{}

// GpuList answers QueryGpus.
type GpuList struct {
	Gpus []GpuInfo
}

// CudaCommand carries one CUDA Driver API call's opcode, routing handle
// and opaque XDR-encoded arguments.
type CudaCommand struct {
	RequestID     uint64
	Opcode        cuda.Opcode
	RoutingHandle handle.Network
	Args          []byte
}

// CudaResponse answers a CudaCommand.
type CudaResponse struct {
	RequestID uint64
	Result    CommandResult
}

// CudaBatch forwards a sequence of CUDA commands as a single wire message;
// all are routed to the backend owning the first command's routing handle
// (original_source daemon.rs's CudaBatch forwarding rule).
type CudaBatch struct {
	RequestID uint64
	Commands  []CudaCommand
}

// CudaBatchResponse answers a CudaBatch: the responses in submitted order.
// If a command errors the batch continues executing the remainder; there is
// no overall status field, so a failure shows only in its own response.
type CudaBatchResponse struct {
	RequestID uint64
	Responses []CommandResult
}

// VulkanCommand carries one Vulkan call's opcode, routing handle and
// opaque XDR-encoded arguments.
type VulkanCommand struct {
	RequestID     uint64
	Opcode        vulkan.Opcode
	RoutingHandle handle.Network
	Args          []byte
}

// VulkanResponse answers a VulkanCommand.
type VulkanResponse struct {
	RequestID uint64
	Result    CommandResult
}

// SubmitRecordedCommands carries the vkCmd* calls buffered on the client
// between vkBeginCommandBuffer and vkEndCommandBuffer, replayed server-side
// in order between a real begin/end pair (S5).
type SubmitRecordedCommands struct {
	RequestID         uint64
	CommandBuffer     handle.Network
	RecordedCommands  []VulkanCommand
}

// Ping/Pong are the heartbeat pair; neither carries a payload beyond the
// frame's stream id, which callers use to correlate.
type Ping struct{ Nonce uint64 }
type Pong struct{ Nonce uint64 }

// QueryMetrics requests a snapshot of a backend's counters.
type QueryMetrics struct{}

// MetricsData answers QueryMetrics with the same counters the Prometheus
// registry exposes.
type MetricsData struct {
	ConnectionsTotal  uint64
	ConnectionsActive uint64
	RequestsTotal     uint64
	ErrorsTotal       uint64
	CudaCommands      uint64
	VulkanCommands    uint64
	UptimeSeconds     uint64
}

// CommandResult is the tagged response payload every command response
// carries: exactly one of a scalar, a handle, a byte buffer, or an error.
// Kind selects which field is meaningful, matching the teacher's pattern of
// a status-tagged response struct (see NFS4StateError / MountResponseBase).
type CommandResult struct {
	Kind    ResultKind
	Scalar  uint64
	Handle  handle.Network
	Handles []handle.Network
	Buffer  []byte
	Error   CommandError
}

// ResultKind discriminates CommandResult's payload.
type ResultKind uint8

const (
	ResultScalar ResultKind = iota
	ResultHandle
	ResultHandles
	ResultBuffer
	ResultError
)

// CommandError is the driver-surface-visible error carried in a failed
// CommandResult: Code is the native driver error code the client must
// return to the intercepted application unchanged.
type CommandError struct {
	Kind    ErrorKind
	Code    int32
	Message string
}

// ErrorKind classifies CommandError per spec.md §7.
type ErrorKind uint8

const (
	ErrorKindInvalidHandle ErrorKind = iota
	ErrorKindDriverError
	ErrorKindDriverUnavailable
	ErrorKindNotSupported
	ErrorKindTransport
	ErrorKindTimeout
	ErrorKindNoRoute
)

// ErrorMessage is the out-of-band MsgError variant, used for handshake and
// connection-level failures that predate any session-scoped request id.
type ErrorMessage struct {
	Code    int32
	Message string
}
