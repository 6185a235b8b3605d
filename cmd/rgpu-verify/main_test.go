package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Fill84/RGPU-sub000/internal/wire"
)

func TestCheckResultHelpers_SetNameStatusAndMessage(t *testing.T) {
	assert.Equal(t, checkResult{Name: "a", Status: statusPass, Message: "ok"}, pass("a", "ok"))
	assert.Equal(t, checkResult{Name: "a", Status: statusFail, Message: "bad"}, fail("a", "bad"))
	assert.Equal(t, checkResult{Name: "a", Status: statusWarn, Message: "meh"}, warn("a", "meh"))
	assert.Equal(t, checkResult{Name: "a", Status: statusSkip, Message: "n/a"}, skip("a", "n/a"))
}

func TestCheckResult_DetailAppends(t *testing.T) {
	r := pass("a", "ok").detail("first").detail("second")
	assert.Equal(t, []string{"first", "second"}, r.Details)
}

func TestCheckGpuPool_NilMeansDaemonUnreachable(t *testing.T) {
	var results []checkResult
	checkGpuPool(nil, &results)
	assert.Equal(t, statusSkip, results[0].Status)
}

func TestCheckGpuPool_EmptyWarns(t *testing.T) {
	var results []checkResult
	checkGpuPool([]wire.GpuInfo{}, &results)
	assert.Equal(t, statusWarn, results[0].Status)
}

func TestCheckGpuPool_NonEmptyPassesWithOneDetailPerGpu(t *testing.T) {
	var results []checkResult
	gpus := []wire.GpuInfo{
		{DeviceName: "sim-0", VRAMBytes: 2 << 20, IsCudaCapable: true},
		{DeviceName: "sim-1", VRAMBytes: 4 << 20, IsVulkanCapable: true},
	}
	checkGpuPool(gpus, &results)
	assert.Equal(t, statusPass, results[0].Status)
	assert.Len(t, results[0].Details, 2)
}
