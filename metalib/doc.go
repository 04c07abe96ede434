// Package metalib decodes compiled metalib blobs into an immutable type
// graph.
//
// A metalib is the binary companion the schema compiler emits next to
// its generated code: a fixed 0x114-byte header followed by tables of
// macros, composite descriptors and macro groups, with all names stored
// as offset-addressed, null-terminated GBK strings. Parse consumes such
// a blob and returns a Lib, an arena of type descriptors where every
// cross reference is an index rather than a pointer, so recursive
// schemas decode in one flat pass and renderers can walk the graph with
// a plain visited set.
//
// Offsets carried by decode errors use the same base the format's own
// pointers use, the first byte after the header; only header errors are
// absolute positions in the input.
package metalib
