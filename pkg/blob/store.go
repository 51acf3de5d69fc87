// Package blob relocates downloaded files into object storage.
package blob

import (
	"context"

	"github.com/minio/minio-go/v7"
)

type Store interface {
	Upload(ctx context.Context, localPath, objectName string) error
	Download(ctx context.Context, objectName, localPath string) error
	Remove(ctx context.Context, objectName string) error
}

type minioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(client *minio.Client, bucket string) Store {
	return &minioStore{
		client: client,
		bucket: bucket,
	}
}

func (s *minioStore) Upload(ctx context.Context, localPath, objectName string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, objectName, localPath, minio.PutObjectOptions{})
	return err
}

func (s *minioStore) Download(ctx context.Context, objectName, localPath string) error {
	return s.client.FGetObject(ctx, s.bucket, objectName, localPath, minio.GetObjectOptions{})
}

func (s *minioStore) Remove(ctx context.Context, objectName string) error {
	return s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
}
