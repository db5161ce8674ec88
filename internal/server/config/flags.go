package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

var serverFlags = []string{
	"-g", "-a", "-storage", "-f", "-d", "-s", "-ttl", "-sweep", "-dt", "-w",
	"-u", "-p", "-b", "-r", "-e", "-k", "-log-level", "-log-format",
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-g string        gRPC bind address (e.g., ":50051")
//	-a string        HTTP bind address (e.g., ":3000"; "" disables HTTP)
//	-storage string  credential storage backend: file, postgres, s3
//	-f string        credential file for the file backend
//	-d string        PostgreSQL DSN
//	-s string        access token HMAC secret
//	-ttl duration    session lifetime (0 = no expiry)
//	-sweep duration  expired session sweep interval
//	-dt duration     key derivation timeout
//	-w int           max concurrent key derivations
//	-u / -p string   S3 root user / password
//	-b / -r string   S3 bucket / region
//	-e string        S3 base endpoint
//	-k string        S3 object key of the credential snapshot
//	-log-level       debug, info, warn, error
//	-log-format      json or text
//
// args is filtered down to the flags above first, so the -c/-config flag
// and unrelated arguments do not cause parse errors.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("gophauth", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.StorageBackend, "storage", config.StorageBackend, "credential storage backend")
	fs.StringVar(&config.StoreFile, "f", config.StoreFile, "credential file")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.SessionTTL, "ttl", config.SessionTTL, "session lifetime")
	fs.DurationVar(&config.SessionSweepInterval, "sweep", config.SessionSweepInterval, "session sweep interval")
	fs.DurationVar(&config.DerivationTimeout, "dt", config.DerivationTimeout, "key derivation timeout")
	fs.IntVar(&config.MaxConcurrentDerivations, "w", config.MaxConcurrentDerivations, "max concurrent key derivations")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "r", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3ObjectKey, "k", config.S3ObjectKey, "S3 object key")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format")

	return fs.Parse(flagx.FilterArgs(args, serverFlags))
}
