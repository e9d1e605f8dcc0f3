package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

/*
Storage provider for S3-compatible object storage. We use the minio client
library. Uploads are chunked at a configurable part size.
*/

////////////////////////////////////////////////////////////////////////////////

const (
	minioErrObjectNotExist = "The specified key does not exist."

	megabyte = 1 << 20
)

// DefaultPartSize is the multipart chunk size used when none is supplied.
const DefaultPartSize = 16 * megabyte

type s3store struct {
	mc     *minio.Client
	bucket string

	partsize int
}

// NewS3Store creates a storage provider backed by an S3-compatible object
// store. A nonpositive partsizeBytes selects the default part size.
func NewS3Store(mc *minio.Client, bucket string, partsizeBytes int) *s3store {
	if partsizeBytes <= 0 {
		partsizeBytes = DefaultPartSize
	}
	return &s3store{
		mc:       mc,
		bucket:   bucket,
		partsize: partsizeBytes,
	}
}

// Put stores the data in the object store.
func (s *s3store) Put(ctx context.Context, id string, r io.Reader, size int64) error {
	_, err := s.mc.PutObject(
		ctx,
		s.bucket,
		id,
		r,
		size,
		minio.PutObjectOptions{
			PartSize: uint64(s.partsize),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

// GetRange retrieves a range of bytes from the object store.
func (s *s3store) GetRange(ctx context.Context, id string, offset int, length int) ([]byte, error) {
	req := minio.GetObjectOptions{}
	if err := req.SetRange(int64(offset), int64(offset+length-1)); err != nil {
		return nil, fmt.Errorf("failed to set range: %w", err)
	}
	obj, err := s.mc.GetObject(ctx, s.bucket, id, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if err.Error() == minioErrObjectNotExist {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// Delete removes an object from the object store.
func (s *s3store) Delete(ctx context.Context, id string) error {
	if err := s.mc.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		if err.Error() == minioErrObjectNotExist {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

func (s *s3store) String() string {
	return fmt.Sprintf("s3(%s)", s.bucket)
}
