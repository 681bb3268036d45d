package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/dlbar/internal/progress"
)

type fakeS3 struct {
	body    []byte
	headErr error
	getErr  error
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(f.body)))}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(f.body)),
		ContentLength: aws.Int64(int64(len(f.body))),
	}, nil
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		raw     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://bucket/key.bin", "bucket", "key.bin", false},
		{"s3://bucket/deep/path/key.bin", "bucket", "deep/path/key.bin", false},
		{"s3://bucket", "", "", true},
		{"s3://bucket/folder/", "", "", true},
		{"https://bucket/key", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			bucket, key, err := ParseS3URL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestS3Download(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "obj.bin")
	rec := newRecorder()
	job := Job{ID: "obj.bin", URL: "s3://bucket/obj.bin", OutputPath: dest, Count: 2}
	src := NewS3Source(&fakeS3{body: payload})
	require.NoError(t, src.Download(context.Background(), job, rec))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	init, _ := rec.first(job.ID, progress.EventInit)
	assert.Equal(t, int64(len(payload)), init.Total)
	assert.Equal(t, 2, init.Count)
	done, _ := rec.last(job.ID, progress.EventComplete)
	assert.Equal(t, progress.OutcomeOK, done.Outcome)
	assert.Equal(t, int64(len(payload)), done.Transferred)
}

func TestS3DownloadFailure(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	job := Job{ID: "missing", URL: "s3://bucket/missing", OutputPath: filepath.Join(dir, "missing")}
	src := NewS3Source(&fakeS3{headErr: errors.New("not found"), getErr: errors.New("access denied")})
	err := src.Download(context.Background(), job, rec)
	assert.ErrorContains(t, err, "access denied")

	init, _ := rec.first(job.ID, progress.EventInit)
	assert.Equal(t, progress.UnknownSize, init.Total)
	done, _ := rec.last(job.ID, progress.EventComplete)
	assert.Equal(t, progress.OutcomeFailed, done.Outcome)
	assert.NoFileExists(t, job.OutputPath)
}

func TestS3DownloadBadURL(t *testing.T) {
	rec := newRecorder()
	job := Job{ID: "bad", URL: "s3://bucket", OutputPath: filepath.Join(t.TempDir(), "bad")}
	err := NewS3Source(&fakeS3{}).Download(context.Background(), job, rec)
	require.Error(t, err)
	assert.Equal(t, []progress.EventKind{progress.EventInit, progress.EventComplete}, rec.kinds(job.ID))
}
