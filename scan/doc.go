// Package scan locates metalib blobs embedded in host files.
//
// Compiled blobs commonly travel inside larger artifacts (resource
// packs, shared objects, gzip archives). Bytes finds every signature
// hit whose full header validates; File additionally handles reading
// and transparent gzip decompression. Scanning never decodes tables, so
// it stays cheap even on large hosts.
package scan
