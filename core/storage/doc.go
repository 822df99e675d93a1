// Package storage wraps the MinIO Go client for the few object storage
// operations the sync service needs: checking and creating the archive
// bucket, uploading a report and reading it back.
//
// It works against AWS S3 and self-hosted MinIO alike. The Client interface
// is mocked in core/storage/mocks for unit tests.
//
//	client, err := storage.NewClient(cfg.Storage)
//	exists, err := client.BucketExists(ctx, cfg.Storage.Bucket)
package storage
