package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"access-sync/core/reconcile"
	"access-sync/core/storage"

	"github.com/goccy/go-json"
	"github.com/minio/minio-go/v7"
)

// Archive keeps one JSON object per finished pass in object storage.
type Archive struct {
	client storage.Client
	bucket string
	prefix string
}

// New creates an archive writing to bucket under prefix.
func New(client storage.Client, bucket, prefix string) *Archive {
	return &Archive{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object name used for pass id.
func (a *Archive) Key(id string) string {
	return path.Join(a.prefix, id+".json")
}

// EnsureBucket creates the archive bucket when it does not exist yet.
func (a *Archive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Save uploads report as <prefix>/<id>.json.
func (a *Archive) Save(ctx context.Context, report *reconcile.PassReport) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode pass %s: %w", report.ID, err)
	}

	_, err = a.client.PutObject(ctx, a.bucket, a.Key(report.ID), bytes.NewReader(raw), int64(len(raw)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("upload pass %s: %w", report.ID, err)
	}
	return nil
}

// Load reads an archived report back. A missing object yields reconcile.ErrNotFound.
func (a *Archive) Load(ctx context.Context, id string) (*reconcile.PassReport, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, a.Key(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, a.readError(id, err)
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		return nil, a.readError(id, err)
	}

	var report reconcile.PassReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode archived pass %s: %w", id, err)
	}
	return &report, nil
}

func (a *Archive) readError(id string, err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && (resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket") {
		return fmt.Errorf("archived pass %s: %w", id, reconcile.ErrNotFound)
	}
	return fmt.Errorf("download pass %s: %w", id, err)
}
