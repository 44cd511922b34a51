package cfg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidate_DefaultConfig(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = DefaultConfiguration()

	if err := Validate(); err != nil {
		t.Errorf("Expected no error for default config, got: %v", err)
	}
}

func TestValidate_InvalidBackend(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = DefaultConfiguration()
	Config.Log.Backend = "zookeeper"

	if err := Validate(); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestValidate_BackendRequirements(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	tests := []struct {
		name   string
		mutate func(c *Configuration)
	}{
		{"kafka without brokers", func(c *Configuration) {
			c.Log.Backend = BackendKafka
			c.Log.Brokers = nil
		}},
		{"nats without url", func(c *Configuration) {
			c.Log.Backend = BackendNats
			c.Log.NatsURL = ""
		}},
		{"local without dir", func(c *Configuration) {
			c.Log.Backend = BackendLocal
			c.Log.LocalDir = ""
		}},
	}

	for _, tt := range tests {
		Config = DefaultConfiguration()
		tt.mutate(Config)

		if err := Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	tests := []struct {
		name   string
		mutate func(c *Configuration)
	}{
		{"dial timeout", func(c *Configuration) { c.Log.DialTimeoutMS = 0 }},
		{"request timeout", func(c *Configuration) { c.Log.RequestTimeoutMS = -1 }},
		{"partitions", func(c *Configuration) { c.Topic.Partitions = 0 }},
		{"replication factor", func(c *Configuration) { c.Topic.ReplicationFactor = 0 }},
		{"required acks", func(c *Configuration) { c.Producer.RequiredAcks = 2 }},
		{"batch timeout", func(c *Configuration) { c.Producer.BatchTimeoutMS = -5 }},
		{"logging format", func(c *Configuration) { c.Logging.Format = "xml" }},
		{"admin port low", func(c *Configuration) { c.Admin.Port = 0 }},
		{"admin port high", func(c *Configuration) { c.Admin.Port = 70000 }},
		{"watch interval", func(c *Configuration) { c.Admin.WatchIntervalMS = 0 }},
	}

	for _, tt := range tests {
		Config = DefaultConfiguration()
		tt.mutate(Config)

		if err := Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = DefaultConfiguration()

	err := Load("non-existent-file.toml")
	if err != nil {
		t.Errorf("Expected no error for non-existent file, got: %v", err)
	}

	if Config.Log.Backend != BackendKafka {
		t.Errorf("Expected default backend kafka, got %s", Config.Log.Backend)
	}
}

func TestLoad_FromFile(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = DefaultConfiguration()

	path := filepath.Join(t.TempDir(), "logcursor.toml")
	content := `
[log]
backend = "local"
local_dir = "/tmp/logcursor-test"

[topic]
partitions = 4
replication_factor = 3

[topic.config]
"retention.ms" = "172800000"
"cleanup.policy" = "compact"

[producer]
key = "k"
required_acks = 1

[logging]
format = "json"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := Load(path); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if Config.Log.Backend != BackendLocal {
		t.Errorf("Expected backend local, got %s", Config.Log.Backend)
	}
	if Config.Log.LocalDir != "/tmp/logcursor-test" {
		t.Errorf("Expected local dir /tmp/logcursor-test, got %s", Config.Log.LocalDir)
	}
	if Config.Topic.Partitions != 4 || Config.Topic.ReplicationFactor != 3 {
		t.Errorf("Unexpected topic defaults: %+v", Config.Topic)
	}
	if Config.Topic.Config["retention.ms"] != "172800000" {
		t.Errorf("Expected retention.ms 172800000, got %q", Config.Topic.Config["retention.ms"])
	}
	if Config.Topic.Config["cleanup.policy"] != "compact" {
		t.Errorf("Expected cleanup.policy compact, got %q", Config.Topic.Config["cleanup.policy"])
	}
	if Config.Producer.Key != "k" || Config.Producer.RequiredAcks != 1 {
		t.Errorf("Unexpected producer config: %+v", Config.Producer)
	}
	// Untouched sections keep their defaults
	if Config.Admin.Port != 8089 {
		t.Errorf("Expected default admin port 8089, got %d", Config.Admin.Port)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = DefaultConfiguration()

	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("[log\nbackend = "), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := Load(path); err == nil {
		t.Error("Expected decode error for broken TOML")
	}
}

func TestLoad_CLIOverrides(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	*BackendFlag = "local"
	*BrokersFlag = "kafka-1:9092, kafka-2:9092,"
	*LocalDirFlag = "/tmp/override"

	defer func() {
		*BackendFlag = ""
		*BrokersFlag = ""
		*LocalDirFlag = ""
	}()

	Config = DefaultConfiguration()

	if err := Load(""); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	if Config.Log.Backend != BackendLocal {
		t.Errorf("Expected backend local, got %s", Config.Log.Backend)
	}

	if len(Config.Log.Brokers) != 2 || Config.Log.Brokers[0] != "kafka-1:9092" || Config.Log.Brokers[1] != "kafka-2:9092" {
		t.Errorf("Unexpected brokers: %v", Config.Log.Brokers)
	}

	if Config.Log.LocalDir != "/tmp/override" {
		t.Errorf("Expected local dir /tmp/override, got %s", Config.Log.LocalDir)
	}
}

func BenchmarkValidate(b *testing.B) {
	original := Config
	defer func() { Config = original }()

	Config = DefaultConfiguration()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Validate()
	}
}

func TestAdminAuthEnabled(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = DefaultConfiguration()
	if IsAdminAuthEnabled() {
		t.Error("Expected admin auth to be disabled by default")
	}

	Config.Admin.Secret = "s3cret"
	if !IsAdminAuthEnabled() || GetAdminSecret() != "s3cret" {
		t.Error("Expected admin auth to be enabled with the configured secret")
	}
}
