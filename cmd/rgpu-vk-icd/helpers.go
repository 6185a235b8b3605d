package main

import "unsafe"

// copyN copies n bytes out of a C-owned buffer into a Go-owned slice the
// wire codec can own independently of the caller's memory, mirroring the
// CUDA shim's copyBytes/readModuleImage helpers.
func copyN(src unsafe.Pointer, n int) []byte {
	if src == nil || n <= 0 {
		return nil
	}
	buf := unsafe.Slice((*byte)(src), n)
	out := make([]byte, n)
	copy(out, buf)
	return out
}
