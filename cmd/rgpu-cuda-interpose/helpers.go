package main

/*
#include <stdint.h>
*/
import "C"

import (
	"math"
	"unsafe"
)

// uintptrToPointer and pointerToUintptr convert between the local_ids this
// shim mints and the opaque pointer-sized values CUDA's ABI hands back to
// the intercepted caller. CUDA opaque handles carry no dispatch table (that
// requirement is Vulkan-specific), so a bare cast is enough.
func uintptrToPointer(id uint64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(id))
}

func pointerToUintptr(p unsafe.Pointer) uint64 {
	return uint64(uintptr(p))
}

func bitsToFloat32(bits uint64) float32 {
	return math.Float32frombits(uint32(bits))
}

func copyBytes(dst unsafe.Pointer, maxLen int, src []byte) {
	n := len(src)
	if n > maxLen {
		n = maxLen
	}
	if n == 0 {
		return
	}
	dstSlice := unsafe.Slice((*byte)(dst), maxLen)
	copy(dstSlice, src[:n])
}

// copyCString writes src into dst as a NUL-terminated string truncated to
// length-1 bytes, matching cuDeviceGetName/cuDeviceGetPCIBusId's contract.
func copyCString(dst *C.char, length C.int, src []byte) {
	max := int(length) - 1
	if max < 0 {
		max = 0
	}
	n := len(src)
	if n > max {
		n = max
	}
	dstSlice := unsafe.Slice((*byte)(unsafe.Pointer(dst)), int(length))
	copy(dstSlice, src[:n])
	dstSlice[n] = 0
}

// readModuleImage reads a cuModuleLoadData image from a raw pointer, which
// carries no length. It reads 4096-byte chunks until it reaches a chunk
// whose last byte is NUL, then drops the trailing NUL bytes; if no such
// chunk appears within 16 MiB it returns the full 16 MiB. It does not tell
// a cubin (ELF) image from PTX text and does not parse the ELF header, so
// the returned length is not derived from the image format.
func readModuleImage(image unsafe.Pointer) []byte {
	const maxScan = 1 << 24
	const chunk = 4096
	base := (*byte)(image)
	buf := unsafe.Slice(base, maxScan)
	for end := chunk; end <= maxScan; end += chunk {
		if buf[end-1] == 0 {
			return trimNulTail(buf[:end])
		}
	}
	return append([]byte(nil), buf[:maxScan]...)
}

func trimNulTail(b []byte) []byte {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	out := make([]byte, i)
	copy(out, b[:i])
	return out
}

// collectKernelParams reads a cuLaunchKernel kernel_params argv-style
// array of pointers, each treated as pointing at one 8-byte parameter
// word, matching the original interposer's conservative fixed-width
// parameter capture.
func collectKernelParams(kernelParams **unsafe.Pointer) []byte {
	if kernelParams == nil {
		return nil
	}
	const maxParams = 256
	ptrs := unsafe.Slice(kernelParams, maxParams)
	var out []byte
	for i := 0; i < maxParams; i++ {
		p := ptrs[i]
		if p == nil {
			break
		}
		word := *(*uint64)(p)
		b := make([]byte, 8)
		for j := 0; j < 8; j++ {
			b[j] = byte(word >> (8 * j))
		}
		out = append(out, b...)
	}
	return out
}
