// Package recorder buffers the vkCmd* family between vkBeginCommandBuffer
// and vkEndCommandBuffer, exactly as original_source rgpu-vk-icd's
// command.rs does: nothing crosses the wire per vkCmd* call, the whole
// buffered sequence ships in one SubmitRecordedCommands message when the
// application calls vkQueueSubmit (S5).
package recorder

import (
	"fmt"
	"sync"

	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
	"github.com/Fill84/RGPU-sub000/internal/protocol/vulkan"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

type bufferState struct {
	recording bool
	commands  []wire.VulkanCommand
}

// Recorder owns every command buffer's recording state, keyed by the
// command buffer's client-local id (the id behind its dispatchable
// handle, not the NetworkHandle).
type Recorder struct {
	mu    sync.Mutex
	state map[uint64]*bufferState
}

// New creates an empty Recorder.
func New() *Recorder {
	return &Recorder{state: make(map[uint64]*bufferState)}
}

// Begin starts (or restarts) recording for a command buffer, clearing any
// previously buffered commands — matching vkBeginCommandBuffer and
// vkResetCommandBuffer's "clear the command list" behavior.
func (r *Recorder) Begin(localID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[localID] = &bufferState{recording: true}
}

// End stops recording without discarding the buffered commands; they are
// taken by Submit when vkQueueSubmit fires.
func (r *Recorder) End(localID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.state[localID]; ok {
		s.recording = false
	}
}

// Reset stops recording and discards any buffered commands, matching
// vkResetCommandBuffer.
func (r *Recorder) Reset(localID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[localID] = &bufferState{}
}

// record appends one vkCmd* call's wire form to localID's buffer. It is a
// no-op (mirroring the original's silent drop) if localID is not
// currently recording — calling a vkCmd* function outside a Begin/End
// pair is caller error, not something the recorder should panic over.
func (r *Recorder) record(localID uint64, cmd wire.VulkanCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.state[localID]
	if !ok || !s.recording {
		return
	}
	s.commands = append(s.commands, cmd)
}

// Take returns and clears the commands buffered for a command buffer,
// used to build the SubmitRecordedCommands message at vkQueueSubmit time.
func (r *Recorder) Take(localID uint64) []wire.VulkanCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.state[localID]
	if !ok {
		return nil
	}
	cmds := s.commands
	s.commands = nil
	return cmds
}

func encode(op vulkan.Opcode, args any) wire.VulkanCommand {
	body, err := wire.EncodeBody(args)
	if err != nil {
		// Args here are always this package's own fixed-shape structs;
		// a marshal failure means a programming error, not bad input.
		panic(fmt.Sprintf("recorder: encode %s: %v", op, err))
	}
	return wire.VulkanCommand{Opcode: op, Args: body}
}

// CmdBindPipeline buffers a vkCmdBindPipeline call.
func (r *Recorder) CmdBindPipeline(cmdBuf uint64, pipeline handle.Network) {
	r.record(cmdBuf, encode(vulkan.OpCmdBindPipeline, &vulkan.CmdBindPipelineArgs{Pipeline: pipeline}))
}

// CmdBindDescriptorSets buffers a vkCmdBindDescriptorSets call.
func (r *Recorder) CmdBindDescriptorSets(cmdBuf uint64, layout handle.Network, sets []handle.Network) {
	r.record(cmdBuf, encode(vulkan.OpCmdBindDescriptorSets, &vulkan.CmdBindDescriptorSetsArgs{
		PipelineLayout: layout,
		DescriptorSets: sets,
	}))
}

// CmdDispatch buffers a vkCmdDispatch call.
func (r *Recorder) CmdDispatch(cmdBuf uint64, x, y, z uint32) {
	r.record(cmdBuf, encode(vulkan.OpCmdDispatch, &vulkan.CmdDispatchArgs{GroupCountX: x, GroupCountY: y, GroupCountZ: z}))
}

// CmdDraw buffers a vkCmdDraw call.
func (r *Recorder) CmdDraw(cmdBuf uint64, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.record(cmdBuf, encode(vulkan.OpCmdDraw, &vulkan.CmdDrawArgs{
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	}))
}

// CmdCopyBuffer buffers a vkCmdCopyBuffer call.
func (r *Recorder) CmdCopyBuffer(cmdBuf uint64, src, dst handle.Network, bytes uint64) {
	r.record(cmdBuf, encode(vulkan.OpCmdCopyBuffer, &vulkan.CmdCopyBufferArgs{SrcBuffer: src, DstBuffer: dst, Bytes: bytes}))
}

// CmdPipelineBarrier buffers a vkCmdPipelineBarrier call. spec carries the
// barrier's serialized memory/buffer/image barrier descriptions as an
// opaque blob, the same approach command.rs takes for its own
// Serialized*Barrier payloads.
func (r *Recorder) CmdPipelineBarrier(cmdBuf uint64, spec []byte) {
	r.record(cmdBuf, encode(vulkan.OpCmdPipelineBarrier, &vulkan.CmdPipelineBarrierArgs{Spec: spec}))
}
