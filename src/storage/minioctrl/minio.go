package minioctrl

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"nuvaru/src/core/rag"
)

const DocumentsBucket = "documents"

// MinioService stores original uploads so documents can be reprocessed
// without a fresh upload. It implements rag.ObjectStore against a fixed
// bucket.
type MinioService struct {
	client *minio.Client
	bucket string
}

func NewMinioService(endpoint, accessKeyID, secretAccessKey string, useSSL bool, bucket string) (*MinioService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %v", err)
	}
	if bucket == "" {
		bucket = DocumentsBucket
	}

	return &MinioService{
		client: client,
		bucket: bucket,
	}, nil
}

func (s *MinioService) EnsureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %v", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %v", err)
		}
	}

	return nil
}

func (s *MinioService) Put(ctx context.Context, objectName string, content []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	reader := bytes.NewReader(content)
	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %v", err)
	}

	return nil
}

func (s *MinioService) Get(ctx context.Context, objectName string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %v", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object data: %v", err)
	}

	return data, nil
}

func (s *MinioService) Remove(ctx context.Context, objectName string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object: %v", err)
	}

	return nil
}

var _ rag.ObjectStore = (*MinioService)(nil)
