// Package render turns a decoded type graph into document trees and
// serializes them.
//
// Two shapes are produced. Metalib is the flat schema form, one element
// per composite with fields referencing types by name; it round-trips
// with the XML the schema compiler originally consumed. Type is the
// structural form: every composite expanded inline, with recursion cut
// by backref elements so cyclic schemas stay finite.
//
// Trees are plain data; WriteXML and JSON only traverse them. Rendering
// never mutates the Lib, so All fans out over the roots concurrently.
package render
