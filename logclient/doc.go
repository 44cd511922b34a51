// Package logclient is the facade test scenarios use to talk to a partitioned
// event log: produce and consume records, provision topics, read topic
// configuration and resolve cursors.
//
// # Backends
//
// A Backend wraps one log system. Implementations live in logclient/backend
// and register themselves by name at init time:
//
//	import _ "github.com/maxpert/logcursor/logclient/backend"
//
//	b, err := logclient.NewBackend(cfg.Config)
//	helper := logclient.NewHelper(b, logclient.HelperConfigFrom(cfg.Config))
//
// # Cursors
//
// Helper keeps the two offset views apart:
//
//   - GetNextOffsets returns raw high-water marks ("3"), for write-then-verify checks
//   - GetOffsetsToReadFromLatest returns "001-0001-000000000000000002" style cursors
//     that let a reader see only events written afterwards
package logclient
