package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations use
// timex.Duration so both "30s" and integer nanoseconds are accepted.
// Fields left out of the file keep their previous values.
type JsonConfig struct {
	EndpointAddrGRPC         string          `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP         *string         `json:"endpoint_addr_http"`
	StorageBackend           string          `json:"storage_backend"`
	StoreFile                string          `json:"store_file"`
	DatabaseDSN              string          `json:"database_dsn"`
	SecretKey                string          `json:"secret_key"`
	SessionTTL               *timex.Duration `json:"session_ttl"`
	SessionSweepInterval     *timex.Duration `json:"session_sweep_interval"`
	DerivationTimeout        *timex.Duration `json:"derivation_timeout"`
	MaxConcurrentDerivations int             `json:"max_concurrent_derivations"`
	S3RootUser               string          `json:"s3_root_user"`
	S3RootPassword           string          `json:"s3_root_password"`
	S3Bucket                 string          `json:"s3_bucket"`
	S3Region                 string          `json:"s3_region"`
	S3BaseEndpoint           string          `json:"s3_base_endpoint"`
	S3ObjectKey              string          `json:"s3_object_key"`
	LogLevel                 string          `json:"log_level"`
	LogFormat                string          `json:"log_format"`
}

// parseJSON overlays values from the file named by -c/-config in args.
// No flag means nothing to load.
func parseJSON(config *Config, args []string) error {
	path := flagx.JSONConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	overlay(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	overlay(&config.StorageBackend, c.StorageBackend)
	overlay(&config.StoreFile, c.StoreFile)
	overlay(&config.DatabaseDSN, c.DatabaseDSN)
	overlay(&config.SecretKey, c.SecretKey)
	overlay(&config.S3RootUser, c.S3RootUser)
	overlay(&config.S3RootPassword, c.S3RootPassword)
	overlay(&config.S3Bucket, c.S3Bucket)
	overlay(&config.S3Region, c.S3Region)
	overlay(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	overlay(&config.S3ObjectKey, c.S3ObjectKey)
	overlay(&config.LogLevel, c.LogLevel)
	overlay(&config.LogFormat, c.LogFormat)

	// an explicit "" disables the HTTP surface
	if c.EndpointAddrHTTP != nil {
		config.EndpointAddrHTTP = *c.EndpointAddrHTTP
	}
	if c.SessionTTL != nil {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.SessionSweepInterval != nil {
		config.SessionSweepInterval = c.SessionSweepInterval.Duration
	}
	if c.DerivationTimeout != nil {
		config.DerivationTimeout = c.DerivationTimeout.Duration
	}
	if c.MaxConcurrentDerivations != 0 {
		config.MaxConcurrentDerivations = c.MaxConcurrentDerivations
	}

	return nil
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
