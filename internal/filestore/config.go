package filestore

import "time"

// Config holds all settings needed to connect to an S3-compatible object
// store (MinIO, AWS S3, Ceph RGW).
type Config struct {
	// Endpoint is the host:port of the storage server.
	// Example: "localhost:9000" for local MinIO.
	Endpoint string

	// AccessKey is the access key ID (MinIO / S3 style).
	AccessKey string

	// SecretKey is the secret access key.
	SecretKey string

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool

	// Region is used by region-aware backends (e.g. AWS S3).
	// Leave empty for MinIO.
	Region string

	// Bucket receives export archives. It is created on first use.
	Bucket string

	// URLTTL is the lifetime of presigned download links.
	URLTTL time.Duration
}

// DefaultURLTTL applies when Config.URLTTL is zero.
const DefaultURLTTL = time.Hour

// DefaultConfig returns a sensible local-dev config for MinIO.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Bucket:    "sqlpilot-exports",
		URLTTL:    DefaultURLTTL,
	}
}
