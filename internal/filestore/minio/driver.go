// Package minio reads dbpool configuration documents from a MinIO (or any
// S3-compatible) bucket.
//
//	store, err := minio.New(ctx, filestore.DefaultConfig("localhost:9000", key, secret))
//	...
//	cfg, err := config.LoadFromStore(ctx, store, "settings", "dbpool.yaml")
package minio

import (
	"context"
	"io"

	"github.com/koustreak/dbpool/internal/errs"
	"github.com/koustreak/dbpool/internal/filestore"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Driver serves configuration objects from MinIO. Safe for concurrent use.
type Driver struct {
	client *miniogo.Client
}

// New builds a MinIO client for cfg and fails fast if the endpoint or the
// credentials are wrong.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to create minio client", err)
	}

	d := &Driver{client: client}

	if err := d.Ping(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

// Ping lists buckets, which needs both a reachable endpoint and valid keys.
func (d *Driver) Ping(ctx context.Context) error {
	if _, err := d.client.ListBuckets(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close satisfies filestore.Store. The configuration loader only holds the
// client for one fetch, and minio-go has nothing to release.
func (d *Driver) Close() error {
	return nil
}

// GetObject opens the configuration object at bucket/key. The caller closes it.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	obj, err := d.client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	// minio-go defers the request until the first read; stat now so a missing
	// document is reported as not_found here.
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, mapError(err, "failed to stat object after get")
	}

	return &object{ReadCloser: obj, info: infoOf(stat)}, nil
}

// StatObject reports size and ETag of a configuration object without
// fetching it.
func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	stat, err := d.client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}
	return infoOf(stat), nil
}

func infoOf(stat miniogo.ObjectInfo) *filestore.ObjectInfo {
	return &filestore.ObjectInfo{
		Key:          stat.Key,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
	}
}

// object pairs the response body with the stat taken in GetObject.
type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}
