package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "GOPHAUTH_"

// parseEnv loads envFile into the process environment (a missing file is
// skipped; variables already set are not overridden) and then applies every
// GOPHAUTH_* variable that is set.
func parseEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	setString(&cfg.EndpointAddrGRPC, "GRPC_ADDR")
	setString(&cfg.EndpointAddrHTTP, "HTTP_ADDR")
	setString(&cfg.StorageBackend, "STORAGE")
	setString(&cfg.StoreFile, "STORE_FILE")
	setString(&cfg.DatabaseDSN, "DATABASE_DSN")
	setString(&cfg.SecretKey, "SECRET_KEY")
	setString(&cfg.S3RootUser, "S3_ROOT_USER")
	setString(&cfg.S3RootPassword, "S3_ROOT_PASSWORD")
	setString(&cfg.S3Bucket, "S3_BUCKET")
	setString(&cfg.S3Region, "S3_REGION")
	setString(&cfg.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	setString(&cfg.S3ObjectKey, "S3_OBJECT_KEY")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")

	for key, dst := range map[string]*time.Duration{
		"SESSION_TTL":            &cfg.SessionTTL,
		"SESSION_SWEEP_INTERVAL": &cfg.SessionSweepInterval,
		"DERIVATION_TIMEOUT":     &cfg.DerivationTimeout,
	} {
		if err := setDuration(dst, key); err != nil {
			return err
		}
	}

	if v, ok := os.LookupEnv(envPrefix + "MAX_DERIVATIONS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_DERIVATIONS: %w", envPrefix, err)
		}
		cfg.MaxConcurrentDerivations = n
	}

	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = d
	return nil
}
