package storage

// Config holds configuration for the report archive bucket.
type Config struct {
	// Endpoint is the URL of the storage service.
	Endpoint string `mapstructure:"endpoint" default:"localhost:9000"`
	// AccessKey is the access key ID for authentication.
	AccessKey string `mapstructure:"access_key" default:"minioadmin"`
	// SecretKey is the secret access key for authentication.
	SecretKey string `mapstructure:"secret_key" default:"minioadmin"`
	UseSSL    bool   `mapstructure:"use_ssl" default:"false"`
	// Bucket receives one object per archived sync pass.
	Bucket string `mapstructure:"bucket" default:"access-sync"`
	Region string `mapstructure:"region" default:""`
	// TimeoutSeconds bounds connection setup and the first response byte.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
