// Package symbols provides the string interning table shared by recorders.
//
// Class names, method names, file names and attribute keys are written to the
// trace stream as small integer ids instead of text. The table maps names to
// ids and back; it is read-mostly and safe for concurrent use by any number of
// recorders.
//
//	syms := symbols.NewTable()
//	id := syms.Intern("com.example.Service.handle")
//	name := syms.Name(id) // "com.example.Service.handle"
//
// A table can be persisted with Snapshot and restored with Load so that a
// decoder running in another process resolves the same ids.
package symbols
