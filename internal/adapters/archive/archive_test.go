package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/fleetledger/internal/domain/model"
)

type fakeUploader struct {
	bucket, key string
	body        []byte
	err         error
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	return &manager.UploadOutput{}, nil
}

func TestObjectKey(t *testing.T) {
	a := NewS3ArchiverWithUploader("fleet-bucket", "fleet", &fakeUploader{})

	key, err := a.ObjectKey("2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, "fleet/earnings/2026/03/04.json", key)

	_, err = a.ObjectKey("04/03/2026")
	assert.ErrorIs(t, err, ErrInvalidDay)
}

func TestArchiveSegment(t *testing.T) {
	up := &fakeUploader{}
	a := NewS3ArchiverWithUploader("fleet-bucket", "", up)
	a.now = func() time.Time { return time.Date(2026, 3, 5, 1, 0, 0, 0, time.UTC) }

	events := []model.EarningEvent{
		{ID: "earn-2", DriverID: "d-1", Amount: 45, Type: model.EventTrip},
		{ID: "earn-1", DriverID: "d-1", Amount: 62, Type: model.EventTrip},
	}
	key, err := a.ArchiveSegment(context.Background(), "2026-03-04", events)
	require.NoError(t, err)
	assert.Equal(t, "earnings/2026/03/04.json", key)
	assert.Equal(t, "fleet-bucket", up.bucket)
	assert.Equal(t, key, up.key)

	var seg Segment
	require.NoError(t, json.Unmarshal(up.body, &seg))
	assert.Equal(t, "2026-03-04", seg.Day)
	assert.Equal(t, 2, seg.Count)
	assert.Equal(t, "earn-2", seg.Events[0].ID)
}

func TestArchiveSegmentEmptyDay(t *testing.T) {
	up := &fakeUploader{}
	a := NewS3ArchiverWithUploader("b", "p", up)

	_, err := a.ArchiveSegment(context.Background(), "2026-03-04", nil)
	require.NoError(t, err)
	assert.Contains(t, string(up.body), `"events":[]`)
}

func TestArchiveSegmentUploadError(t *testing.T) {
	a := NewS3ArchiverWithUploader("b", "p", &fakeUploader{err: errors.New("access denied")})

	_, err := a.ArchiveSegment(context.Background(), "2026-03-04", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3 upload failed")
}
