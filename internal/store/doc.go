// Package store provides SQLite-backed storage for the live content tree,
// the version archive and release records.
//
// The store holds:
//   - Nodes: the live tree, one row per node with JSON-encoded properties
//   - Binaries: content-addressed blobs referenced by binary properties
//   - Archive versions: immutable captures of versionable subtrees
//   - Archive labels: release labels attached to captured versions
//   - Releases: release scopes of a site and their marks
//
// # Critical Patterns
//
// Deterministic query results
//   - Every read that returns a list is ordered, with path COLLATE BINARY
//     as the final tiebreaker
//
// Immutable archive
//   - archive_versions and archive_nodes rows are written once by
//     CaptureVersion and never updated
//   - Labels move between versions of one originating path; the captured
//     content does not
//
// Path ranges
//   - Descendants of p are selected with path > p||'/' AND path < p||'0';
//     '0' is the byte after '/', so the range is exactly the subtree
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
