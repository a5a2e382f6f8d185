// Package content defines the hierarchical content model shared by the query,
// fingerprint and reconciliation engines.
//
// A tree is a set of nodes addressed by absolute slash-separated paths. Each
// node carries a primary type, zero or more mixin types, an ordered list of
// child names, and typed properties. Property values are sealed: only the
// Value implementations in this package exist, so every consumer can switch
// over them exhaustively.
//
// Two trees are served through the Accessor interface: the live tree, backed
// by the SQLite store, and MemTree, an in-memory tree used for replicas and
// tests.
package content
