// Package errors provides structured error types for the metalib decoder.
//
// Errors are categorized by Phase (where the error occurred) and Kind
// (error category), and carry the byte offset at which the failure was
// detected. A decode failure is always fatal to the session: a misaligned
// read at one record corrupts the interpretation of every record after it,
// so the offset is surfaced to the caller instead of attempting recovery.
//
// Use the convenience constructors:
//
//	err := errors.UnexpectedEOF(0x1F4, 4)
//	err := errors.UnknownTypeKind(99, 0x2C0)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
