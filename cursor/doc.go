// Package cursor translates between a log's native, partition-local offsets and
// the versioned, lexically sortable cursor tokens handed to log-reading clients.
//
// # Token format
//
// A cursor offset token has three dash separated parts:
//
//	001-0001-000000000000000042
//	 |    |          |
//	 |    |          +-- native offset, zero padded to OffsetWidth (18) digits
//	 |    +------------- generation
//	 +------------------ format version
//
// A partition that has never been written to has no last event. Its token is
// the sentinel "001-0001--1", which is deliberately NOT padded: readers detect
// an empty partition by the literal "-1".
//
// # Resolution
//
// Resolver asks an OffsetSource for the partitions of a topic and their
// high-water marks (the offset the next write will get) and derives either the
// raw next offsets or the "read from latest" cursors:
//
//	res := cursor.NewResolver(source)
//	cursors, err := res.LatestCursors(ctx, "orders")
//	// hwm 0 -> {0 001-0001--1}
//	// hwm 3 -> {1 001-0001-000000000000000002}
//
// Everything in this package is synchronous and holds no shared mutable state.
package cursor
