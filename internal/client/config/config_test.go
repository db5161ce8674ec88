package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "127.0.0.1:50051", c.ServerEndpointAddr)
	assert.Equal(t, ".gophauth", c.TokenDir)
	assert.Equal(t, time.Minute, c.RequestTimeout)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()

	t.Run("overlays present keys", func(t *testing.T) {
		path := filepath.Join(dir, "client.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"server_endpoint_addr":"auth:9000","request_timeout":"5s"}`), 0o600))

		var c Config
		c.LoadDefaults()
		require.NoError(t, c.LoadJSON(path))

		assert.Equal(t, "auth:9000", c.ServerEndpointAddr)
		assert.Equal(t, 5*time.Second, c.RequestTimeout)
		assert.Equal(t, ".gophauth", c.TokenDir)
	})

	t.Run("invalid json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{nope`), 0o600))

		var c Config
		assert.Error(t, c.LoadJSON(path))
	})

	t.Run("missing file", func(t *testing.T) {
		var c Config
		assert.Error(t, c.LoadJSON(filepath.Join(dir, "absent.json")))
	})
}
