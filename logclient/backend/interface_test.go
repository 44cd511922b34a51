package backend

import "github.com/maxpert/logcursor/logclient"

// Compile-time interface verification
var (
	_ logclient.Backend = (*KafkaBackend)(nil)
	_ logclient.Backend = (*NatsBackend)(nil)
	_ logclient.Backend = (*LocalBackend)(nil)
	_ logclient.Backend = (*MockBackend)(nil)
)
