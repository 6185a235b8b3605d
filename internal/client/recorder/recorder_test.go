package recorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
	"github.com/Fill84/RGPU-sub000/internal/protocol/vulkan"
)

func TestRecorder_BuffersOnlyWhileRecording(t *testing.T) {
	r := New()
	const buf = 1

	// Not yet begun: calls are dropped.
	r.CmdDispatch(buf, 1, 1, 1)
	assert.Empty(t, r.Take(buf))

	r.Begin(buf)
	r.CmdBindPipeline(buf, handle.Network{ResourceID: 1, Type: handle.VkPipeline})
	r.CmdDispatch(buf, 4, 4, 1)
	r.End(buf)

	cmds := r.Take(buf)
	require.Len(t, cmds, 2)
	assert.Equal(t, vulkan.OpCmdBindPipeline, cmds[0].Opcode)
	assert.Equal(t, vulkan.OpCmdDispatch, cmds[1].Opcode)
}

func TestRecorder_TakeClearsBuffer(t *testing.T) {
	r := New()
	const buf = 2

	r.Begin(buf)
	r.CmdDispatch(buf, 1, 1, 1)
	r.End(buf)

	first := r.Take(buf)
	require.Len(t, first, 1)

	second := r.Take(buf)
	assert.Empty(t, second)
}

func TestRecorder_ResetDiscardsBufferedCommands(t *testing.T) {
	r := New()
	const buf = 3

	r.Begin(buf)
	r.CmdDispatch(buf, 1, 1, 1)
	r.Reset(buf)

	assert.Empty(t, r.Take(buf))
}

func TestRecorder_BeginAfterEndRestartsRecording(t *testing.T) {
	r := New()
	const buf = 4

	r.Begin(buf)
	r.CmdDispatch(buf, 1, 1, 1)
	r.End(buf)

	// Calls between End and the next Begin are dropped, not buffered.
	r.CmdDraw(buf, 3, 1, 0, 0)
	assert.Empty(t, r.Take(buf))

	r.Begin(buf)
	r.CmdDraw(buf, 3, 1, 0, 0)
	r.End(buf)

	cmds := r.Take(buf)
	require.Len(t, cmds, 1)
	assert.Equal(t, vulkan.OpCmdDraw, cmds[0].Opcode)
}

func TestRecorder_CommandBuffersAreIndependent(t *testing.T) {
	r := New()
	r.Begin(1)
	r.Begin(2)
	r.CmdDispatch(1, 1, 1, 1)
	r.CmdDraw(2, 1, 1, 0, 0)
	r.End(1)
	r.End(2)

	cmds1 := r.Take(1)
	cmds2 := r.Take(2)
	require.Len(t, cmds1, 1)
	require.Len(t, cmds2, 1)
	assert.Equal(t, vulkan.OpCmdDispatch, cmds1[0].Opcode)
	assert.Equal(t, vulkan.OpCmdDraw, cmds2[0].Opcode)
}

func TestRecorder_CmdCopyBufferEncodesArgs(t *testing.T) {
	r := New()
	const buf = 5
	src := handle.Network{ResourceID: 10, Type: handle.VkBuffer}
	dst := handle.Network{ResourceID: 20, Type: handle.VkBuffer}

	r.Begin(buf)
	r.CmdCopyBuffer(buf, src, dst, 4096)
	r.End(buf)

	cmds := r.Take(buf)
	require.Len(t, cmds, 1)
	assert.Equal(t, vulkan.OpCmdCopyBuffer, cmds[0].Opcode)
	assert.NotEmpty(t, cmds[0].Args)
}
