// Package archive uploads daily segments of the earnings log to object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/okian/fleetledger/internal/domain/model"
)

// ErrInvalidDay is returned when a segment day is not YYYY-MM-DD.
var ErrInvalidDay = errors.New("invalid segment day")

// Archiver stores one calendar day of earning events.
type Archiver interface {
	// ArchiveSegment uploads events for day (YYYY-MM-DD) and returns the object key.
	ArchiveSegment(ctx context.Context, day string, events []model.EarningEvent) (string, error)
}

// Uploader is the subset of manager.Uploader the archiver needs.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Segment is the JSON document written for one day.
type Segment struct {
	Day        string               `json:"day"`
	ArchivedAt time.Time            `json:"archivedAt"`
	Count      int                  `json:"count"`
	Events     []model.EarningEvent `json:"events"`
}

// S3Archiver writes segments to paths like:
//
//	s3://<bucket>/<prefix>/earnings/YYYY/MM/DD.json
type S3Archiver struct {
	bucket   string
	prefix   string
	uploader Uploader
	now      func() time.Time
}

// NewS3Archiver creates an S3Archiver with credentials and region taken from
// the default AWS chain (AWS_REGION, AWS_PROFILE, AWS_ACCESS_KEY_ID and so on).
func NewS3Archiver(ctx context.Context, bucket, prefix string) (*S3Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3ArchiverWithUploader(bucket, prefix, manager.NewUploader(s3.NewFromConfig(cfg))), nil
}

// NewS3ArchiverWithUploader builds an archiver on an existing uploader.
func NewS3ArchiverWithUploader(bucket, prefix string, up Uploader) *S3Archiver {
	return &S3Archiver{bucket: bucket, prefix: prefix, uploader: up, now: time.Now}
}

// ObjectKey returns the key a segment for day is stored under.
func (s *S3Archiver) ObjectKey(day string) (string, error) {
	t, err := time.Parse(model.DateLayout, day)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}
	year, month, d := t.Date()
	return path.Join(s.prefix, "earnings",
		fmt.Sprintf("%04d", year),
		fmt.Sprintf("%02d", int(month)),
		fmt.Sprintf("%02d.json", d),
	), nil
}

// ArchiveSegment implements Archiver. Re-archiving a day overwrites the object.
func (s *S3Archiver) ArchiveSegment(ctx context.Context, day string, events []model.EarningEvent) (string, error) {
	key, err := s.ObjectKey(day)
	if err != nil {
		return "", err
	}
	if events == nil {
		events = []model.EarningEvent{}
	}
	body, err := json.Marshal(Segment{Day: day, ArchivedAt: s.now().UTC(), Count: len(events), Events: events})
	if err != nil {
		return "", fmt.Errorf("marshal segment: %w", err)
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}
	return key, nil
}
