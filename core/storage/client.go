package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Client is the subset of object storage used to archive pass reports.
type Client interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
}

// NewClient builds the archive client. No request is made here: the bucket
// check in EnsureBucket is the first call that reaches the server.
func NewClient(cfg Config) (Client, error) {
	host, secure := splitEndpoint(cfg.Endpoint)
	secure = secure || cfg.UseSSL

	transport, err := minio.DefaultTransport(secure)
	if err != nil {
		return nil, fmt.Errorf("storage transport: %w", err)
	}
	// One report per pass, so a single warm connection is enough.
	transport.MaxIdleConns = 2
	transport.MaxIdleConnsPerHost = 1
	transport.ResponseHeaderTimeout = cfg.timeout()
	transport.TLSHandshakeTimeout = cfg.timeout()

	mc, err := minio.New(host, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    secure,
		Region:    cfg.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("storage client for %q: %w", host, err)
	}
	return archiveClient{mc}, nil
}

// splitEndpoint strips an optional scheme. An https scheme turns TLS on.
func splitEndpoint(endpoint string) (host string, secure bool) {
	scheme, rest, ok := strings.Cut(endpoint, "://")
	if !ok {
		return endpoint, false
	}
	return rest, strings.EqualFold(scheme, "https")
}

func (c Config) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// archiveClient narrows GetObject to a plain reader.
type archiveClient struct {
	*minio.Client
}

func (c archiveClient) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return c.Client.GetObject(ctx, bucketName, objectName, opts)
}
