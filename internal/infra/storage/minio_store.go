package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"heystak-spider/internal/domain/model"
	"heystak-spider/internal/domain/ports/adapter"
)

var _ adapter.RawStore = (*MinioRawStore)(nil)

// MinioRawStore keeps each scrape batch as one JSON object so a run can be
// replayed or re-analyzed without hitting the provider again.
type MinioRawStore struct {
	client *minio.Client
	bucket string
	log    *zerolog.Logger
}

func NewMinioRawStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, log *zerolog.Logger) (*MinioRawStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}

	return &MinioRawStore{client: client, bucket: bucket, log: log}, nil
}

// SaveBatch stores the batch under raw/<jobID>.json, overwriting any
// earlier attempt for the same job.
func (s *MinioRawStore) SaveBatch(ctx context.Context, jobID string, items []*model.AdItem) error {
	if len(items) == 0 {
		return nil
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return err
	}

	objectName := "raw/" + jobID + ".json"
	_, err = s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("minio put %s: %w", objectName, err)
	}
	s.log.Debug().Str("object", objectName).Int("items", len(items)).Msg("raw batch stored")
	return nil
}
