package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/tanq16/dlbar/internal/output"
	"github.com/tanq16/dlbar/internal/progress"
)

const (
	s3PartSize    = 16 * 1024 * 1024
	s3Concurrency = 4
)

// S3API is the subset of the S3 client used for downloads.
type S3API interface {
	manager.DownloadAPIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type S3Source struct {
	client S3API
	now    func() time.Time
	log    zerolog.Logger
}

func NewS3Source(client S3API) *S3Source {
	return &S3Source{client: client, now: time.Now, log: output.GetLogger("transfer/s3")}
}

// NewS3Client loads the shared AWS config for profile; an empty profile uses
// AWS_PROFILE or the default chain.
func NewS3Client(ctx context.Context, profile string) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRetryMode(aws.RetryModeAdaptive)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %v", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.DisableLogOutputChecksumValidationSkipped = true
	}), nil
}

func ParseS3URL(rawURL string) (string, string, error) {
	if !strings.HasPrefix(rawURL, "s3://") {
		return "", "", fmt.Errorf("not an s3 URL: %s", rawURL)
	}
	parts := strings.SplitN(strings.TrimPrefix(rawURL, "s3://"), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" || strings.HasSuffix(parts[1], "/") {
		return "", "", fmt.Errorf("s3 URL must name an object: %s", rawURL)
	}
	return parts[0], parts[1], nil
}

// s3ProgressWriter counts bytes written by the concurrent part downloads.
type s3ProgressWriter struct {
	writer   io.WriterAt
	progress *progressWriter
}

func (w *s3ProgressWriter) WriteAt(p []byte, off int64) (int, error) {
	n, err := w.writer.WriteAt(p, off)
	if n > 0 {
		w.progress.add(int64(n))
	}
	return n, err
}

func (s *S3Source) Download(ctx context.Context, job Job, r Reporter) error {
	bucket, key, err := ParseS3URL(job.URL)
	if err != nil {
		r.Init(job.ID, progress.UnknownSize, job.Count, s.now())
		r.Complete(job.ID, 0, s.now(), progress.OutcomeFailed, err)
		return err
	}
	size := progress.UnknownSize
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Debug().Str("id", job.ID).Err(err).Msg("head object failed")
	} else if head.ContentLength != nil {
		size = *head.ContentLength
	}
	r.Init(job.ID, size, job.Count, s.now())

	tempPath, err := tempPartPath(job.OutputPath)
	if err != nil {
		r.Complete(job.ID, 0, s.now(), progress.OutcomeFailed, err)
		return err
	}
	file, err := os.Create(tempPath)
	if err != nil {
		err = fmt.Errorf("error creating temp file: %v", err)
		r.Complete(job.ID, 0, s.now(), progress.OutcomeFailed, err)
		return err
	}
	downloader := manager.NewDownloader(s.client, func(d *manager.Downloader) {
		d.PartSize = s3PartSize
		d.Concurrency = s3Concurrency
	})
	counter := newProgressWriter(job.ID, size, 0, r, s.now)
	_, err = downloader.Download(ctx, &s3ProgressWriter{writer: file, progress: counter}, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("error closing temp file: %v", closeErr)
	}
	written := counter.flush()
	if err != nil {
		err = fmt.Errorf("error downloading s3://%s/%s: %w", bucket, key, err)
	}
	return finish(ctx, job, r, tempPath, written, s.now(), err)
}
