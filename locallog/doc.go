// Package locallog implements an embedded, Pebble-backed partitioned log with
// Kafka-like semantics: topics split into partitions, each an append-only
// sequence numbered from 0 by partition-local native offsets.
//
// It lets test scenarios exercise cursor resolution without a running broker.
//
// Key layout:
//
//	/topic/{topic}                          -> msgpack(TopicMeta)
//	/hwm/{topic}/{partition:010d}           -> uint64 big endian (next offset)
//	/rec/{topic}/{partition:010d}/{off:020d} -> frame(msgpack(record))
//
// Offsets are zero padded so Pebble's byte ordering matches offset ordering.
// All methods are safe for concurrent use; appends to one partition are serialized.
package locallog
