// Package wasm provides the WebAssembly binary primitives used by the
// expansion pass: a decoded instruction model, LEB128 readers and writers,
// and a module codec covering the core spec.
//
// The codec is deliberately scoped to what a code generator emits for this
// toolchain: MVP sections plus sign extension, saturating truncation, and
// bulk memory. SIMD, threads, GC types, and exception handling are rejected
// at decode time.
package wasm
