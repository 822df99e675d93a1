// Package config loads the application configuration from the environment
// and an optional .env file.
//
// Every section is owned by the package that uses it and declares its
// defaults in `default` struct tags:
//   - server: listen port and API key
//   - device: iDFace address, credentials, session and request limits
//   - database: MySQL (or sqlite) connection
//   - storage: MinIO/S3 bucket for archived reports
//   - log: level and format
//   - sync: default entity types, protocol error policy, archive and history settings
//
// Keys map to environment variables by upper-casing and replacing dots with
// underscores, so device.requests_per_second is DEVICE_REQUESTS_PER_SECOND.
//
//	cfg, err := config.LoadConfig(".")
package config
