// Package errors defines the structured error type shared by the expansion
// toolchain. Every error carries a processing phase and a kind; callers match
// with errors.Is against a (Phase, Kind) pair rather than by message.
package errors
