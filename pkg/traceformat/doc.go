// Package traceformat encodes and decodes the binary trace stream.
//
// The stream is a sequence of CBOR (RFC 8949) items. A method call is a
// tagged indefinite-length array opened by its header and closed by its
// footer; everything the call produced (nested calls, trace-begin records,
// attributes, exceptions) sits between the two:
//
//	D8 28 9F 48 <methodID:24|tick:40>    header
//	  D8 29 82 <clock> <traceID>         trace begin
//	  C7 A1 <attrID> <value>             attribute
//	  D8 2B 85 <id> ... / D8 2C <id>     exception / exception reference
//	  D8 28 9F ...                      nested call
//	48 <calls:24|duration:40> FF         footer
//
// Method ids, call counts and durations that do not fit their packed fields
// use 16-byte headers and footers instead. Names (classes, methods, files)
// are written as tag 6 references to symbol ids.
//
// The Encoder computes every record's exact size and reserves it from the
// tracebuf.Buffer in a single call before writing. Header and footer writes
// do not allocate.
//
// Decode walks method records byte by byte and reads every other record with
// github.com/fxamacker/cbor/v2. Attribute values that are not simple scalars
// are encoded with canonical CBOR from the same library.
package traceformat
