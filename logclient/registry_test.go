package logclient

import (
	"errors"
	"testing"

	"github.com/maxpert/logcursor/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackendUnknown(t *testing.T) {
	config := cfg.DefaultConfiguration()
	config.Log.Backend = "carrier-pigeon"

	_, err := NewBackend(config)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestRegisterBackend(t *testing.T) {
	const name cfg.BackendType = "registry-test"
	boom := errors.New("boom")

	RegisterBackend(name, func(*cfg.Configuration) (Backend, error) {
		return nil, boom
	})
	assert.Contains(t, RegisteredBackends(), string(name))

	config := cfg.DefaultConfiguration()
	config.Log.Backend = name

	_, err := NewBackend(config)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
