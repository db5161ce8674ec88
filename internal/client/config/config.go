// Package config holds settings for the gophauth CLI client.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// Config holds runtime settings for the gophauth CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the gRPC endpoint.
//   - TokenDir: directory holding the cached access token.
//   - RequestTimeout: per-call deadline. Slow-tier signups derive for a
//     while on the server, so keep it generous.
type Config struct {
	ServerEndpointAddr string
	TokenDir           string
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.TokenDir = ".gophauth"
	c.RequestTimeout = time.Minute
}

// JsonConfig is the on-disk shape of the client config file.
type JsonConfig struct {
	ServerEndpointAddr string          `json:"server_endpoint_addr"`
	TokenDir           string          `json:"token_dir"`
	RequestTimeout     *timex.Duration `json:"request_timeout"`
}

// LoadJSON overlays c with values from the JSON file at path. Keys missing
// from the file keep their current values.
func (c *Config) LoadJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if jc.ServerEndpointAddr != "" {
		c.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.TokenDir != "" {
		c.TokenDir = jc.TokenDir
	}
	if jc.RequestTimeout != nil {
		c.RequestTimeout = jc.RequestTimeout.Duration
	}
	return nil
}
