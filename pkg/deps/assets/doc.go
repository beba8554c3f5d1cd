// Package assets implements the container-introspection cache.
//
// Containers are host resources that may hold sub-resources (objects). The
// cache stores, per container, the objects found in it, their outgoing edges
// grouped by resolver, and the container timestamp each resolver last saw.
//
// # Resolvers
//
//   - file-membership: object → its container file (hard)
//   - object-reference: object → every referenced resource (hard)
//   - derived-from: object → its build-time sources (indirect)
//
// Resolvers implement [ContentResolver]. A changed container is opened once
// and every applicable resolver runs on the same [source.Content].
//
// # Persistence
//
// State is written to "assets_v3.cache":
//
//	int32 entry count
//	per entry (sorted by id):
//	    string id
//	    int32 timestamp count, then (string resolver, int64 timestamp) sorted
//	    int32 resource count, per resource:
//	        string id, string type
//	        int32 resolver count, then (string resolver, dependency list) sorted
//	string EOF marker
//
// Encoding is deterministic, so saving unchanged state is byte-identical.
package assets
