package mirror

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioBlobs implements BlobStore on a MinIO (or any S3-compatible) bucket.
type MinioBlobs struct {
	client *minio.Client
	bucket string
}

// Verify *MinioBlobs satisfies BlobStore at compile time.
var _ BlobStore = (*MinioBlobs)(nil)

// NewMinioBlobs connects to the object store and ensures the bucket exists.
func NewMinioBlobs(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioBlobs, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio blobs: connect: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio blobs: bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio blobs: make bucket: %w", err)
		}
	}
	return &MinioBlobs{client: client, bucket: bucket}, nil
}

// Upload stores the artifact and returns its retrieval URL.
func (b *MinioBlobs) Upload(ctx context.Context, key string, data []byte) (string, error) {
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "image/jpeg"})
	if err != nil {
		return "", fmt.Errorf("minio blobs: put %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s/%s", b.client.EndpointURL(), b.bucket, key), nil
}

// Remove deletes the object at key.
func (b *MinioBlobs) Remove(ctx context.Context, key string) error {
	if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio blobs: remove %s: %w", key, err)
	}
	return nil
}
