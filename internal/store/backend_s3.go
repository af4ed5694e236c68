package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/kenneth/fs2cloud/internal/ferrors"
	"github.com/kenneth/fs2cloud/internal/s3"
)

// S3Store backs store.type: s3, adapting internal/s3.Client (an
// S3-compatible PutObject/GetObject client) to the Store capability: one
// bucket, one key per object uuid.
type S3Store struct {
	client s3.Client
	bucket string
}

// NewS3Store wraps an already-constructed s3.Client.
func NewS3Store(client s3.Client, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Put uploads data under key uuid.
func (s *S3Store) Put(ctx context.Context, uuid string, data []byte) error {
	if err := s.client.PutObject(ctx, s.bucket, uuid, bytes.NewReader(data), nil); err != nil {
		return fmt.Errorf("%w: s3 put %s: %v", ferrors.ErrStore, uuid, err)
	}
	return nil
}

// Get downloads the object named uuid.
func (s *S3Store) Get(ctx context.Context, uuid string) ([]byte, error) {
	rc, _, err := s.client.GetObject(ctx, s.bucket, uuid)
	if err != nil {
		return nil, fmt.Errorf("%w: s3 get %s: %v", ferrors.ErrStore, uuid, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: s3 read body %s: %v", ferrors.ErrStore, uuid, err)
	}
	return data, nil
}
