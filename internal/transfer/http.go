package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/tanq16/dlbar/internal/output"
	"github.com/tanq16/dlbar/internal/progress"
	"github.com/tanq16/dlbar/internal/utils"
)

const (
	DefaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
	httpBufferSize    = 1024 * 1024
)

type HTTPSource struct {
	client     *utils.HTTPClient
	maxRetries int
	backoff    time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

func NewHTTPSource(client *utils.HTTPClient, maxRetries int) *HTTPSource {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &HTTPSource{
		client:     client,
		maxRetries: maxRetries,
		backoff:    defaultBackoff,
		now:        time.Now,
		log:        output.GetLogger("transfer/http"),
	}
}

func (s *HTTPSource) Download(ctx context.Context, job Job, r Reporter) error {
	size, err := s.probe(ctx, job.URL)
	if err != nil {
		s.log.Debug().Str("id", job.ID).Err(err).Msg("size probe failed")
	}
	r.Init(job.ID, size, job.Count, s.now())

	tempPath, err := tempPartPath(job.OutputPath)
	if err != nil {
		r.Complete(job.ID, 0, s.now(), progress.OutcomeFailed, err)
		return err
	}
	var written int64
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			s.log.Warn().Str("id", job.ID).Err(lastErr).Msgf("retrying download (attempt %d/%d)", attempt+1, s.maxRetries+1)
			r.Retry(job.ID, s.now(), lastErr)
			select {
			case <-ctx.Done():
				return finish(ctx, job, r, tempPath, written, s.now(), ctx.Err())
			case <-time.After(time.Duration(attempt) * s.backoff):
			}
			if info, statErr := os.Stat(tempPath); statErr == nil {
				written = info.Size()
			}
		}
		written, err = s.attempt(ctx, job, tempPath, written, size, r)
		if err == nil {
			s.log.Debug().Str("id", job.ID).Int64("bytes", written).Msg("download complete")
			return finish(ctx, job, r, tempPath, written, s.now(), nil)
		}
		if ctx.Err() != nil {
			return finish(ctx, job, r, tempPath, written, s.now(), err)
		}
		lastErr = err
	}
	return finish(ctx, job, r, tempPath, written, s.now(), fmt.Errorf("%w (%d attempts): %w", ErrRetriesExhausted, s.maxRetries+1, lastErr))
}

// probe asks for the size with a HEAD request; UnknownSize when not given.
func (s *HTTPSource) probe(ctx context.Context, link string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return progress.UnknownSize, fmt.Errorf("error creating HEAD request: %v", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return progress.UnknownSize, fmt.Errorf("error executing HEAD request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return progress.UnknownSize, fmt.Errorf("server returned error: %d", resp.StatusCode)
	}
	contentLength := resp.Header.Get("Content-Length")
	if contentLength == "" {
		return progress.UnknownSize, nil
	}
	size, err := strconv.ParseInt(contentLength, 10, 64)
	if err != nil || size <= 0 {
		return progress.UnknownSize, nil
	}
	return size, nil
}

// attempt fetches the body into tempPath, resuming after offset bytes when the
// server answers a Range request. It returns the bytes held in tempPath.
func (s *HTTPSource) attempt(ctx context.Context, job Job, tempPath string, offset, total int64, r Reporter) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return offset, fmt.Errorf("error creating GET request: %v", err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return offset, fmt.Errorf("error executing GET request: %w", err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	switch {
	case offset > 0 && resp.StatusCode == http.StatusPartialContent:
		flags |= os.O_APPEND
		s.log.Debug().Str("id", job.ID).Int64("offset", offset).Msg("resuming download")
	case resp.StatusCode == http.StatusOK:
		if offset > 0 {
			s.log.Warn().Str("id", job.ID).Msg("server does not support resume, restarting download")
		}
		offset = 0
		flags |= os.O_TRUNC
	default:
		return offset, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if total <= 0 && resp.ContentLength > 0 {
		total = offset + resp.ContentLength
	}

	outFile, err := os.OpenFile(tempPath, flags, 0644)
	if err != nil {
		return offset, fmt.Errorf("error opening temp file: %v", err)
	}
	defer outFile.Close()

	counter := newProgressWriter(job.ID, total, offset, r, s.now)
	buffer := make([]byte, httpBufferSize)
	_, copyErr := io.CopyBuffer(io.MultiWriter(outFile, counter), resp.Body, buffer)
	written := counter.flush()
	if copyErr != nil {
		return written, fmt.Errorf("error reading response body: %w", copyErr)
	}
	if err := outFile.Sync(); err != nil {
		return written, fmt.Errorf("error syncing temp file: %v", err)
	}
	return written, nil
}
