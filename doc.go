// Package mldec decodes compiled metalib blobs, the binary schema form
// an interface-definition compiler emits, back into readable schemas.
//
// # Architecture Overview
//
// The library is organized into packages with distinct responsibilities:
//
//	mldec/           Root package with the high-level decode helpers
//	├── metalib/     Blob decoding into an immutable type graph
//	├── render/      Document trees and XML/JSON serialization
//	├── scan/        Locating blobs embedded in host files
//	└── errors/      Structured error types for debugging
//
// # Quick Start
//
// Decode a blob and print its schema:
//
//	data, _ := os.ReadFile("resources.bin")
//	lib, err := mldec.DecodeFirst(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	render.WriteXML(os.Stdout, mldec.Schema(lib))
//
// The decoded Lib is an arena of type descriptors: structs, unions,
// enums, arrays, bitfields, pointers and aliases, all cross-referenced
// by index. Recursive schemas decode without recursion and render with
// cycle cuts, so arbitrarily shaped inputs stay safe to process.
//
// For finer control use the subpackages directly: scan.File locates
// every blob in an artifact (transparently decompressing gzip),
// metalib.Parse decodes one position, and render.Type expands a single
// type structurally.
package mldec
