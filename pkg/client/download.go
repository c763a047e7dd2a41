package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/planetlabs/planet-client-go/pkg/models"
)

// DefaultChunkSize is the download streaming chunk size. It trades memory
// against progress-callback granularity and has no effect on correctness.
const DefaultChunkSize = 64 * 1024

// ProgressFunc is invoked after each downloaded chunk with the bytes
// written so far and the total length, or -1 when the server did not
// report a Content-Length.
type ProgressFunc func(downloaded, total int64)

// WriteOptions control the behavior of Session.Write.
type WriteOptions struct {
	// Filename is the destination file name. When empty, the name is
	// resolved from the Content-Disposition header, then the response
	// URL, then a generated name.
	Filename string

	// Directory is the destination directory, created as needed.
	// Defaults to the working directory.
	Directory string

	// Overwrite replaces an existing destination file. When false and the
	// destination exists, Write returns the existing path untouched.
	Overwrite bool

	// Progress, when non-nil, receives per-chunk progress updates.
	Progress ProgressFunc

	// ChunkSize overrides DefaultChunkSize when positive.
	ChunkSize int
}

// DefaultWriteOptions returns options that overwrite existing files.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{Overwrite: true}
}

// Write downloads the resource at rawURL and streams it to disk,
// returning the path of the written file. The download passes through the
// limiter and the retry loop like any other request.
func (s *Session) Write(ctx context.Context, rawURL string, opts WriteOptions) (string, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	dir := opts.Directory
	if dir == "" {
		dir = "."
	}

	// With a known filename the existence check happens before any
	// transport work.
	if opts.Filename != "" && !opts.Overwrite {
		path := filepath.Join(dir, opts.Filename)
		if _, err := os.Stat(path); err == nil {
			s.logger.Debug().Str("path", path).Msg("Destination exists, skipping download")
			return path, nil
		}
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}
	defer s.limiter.Release()

	var path string
	err := s.retry(ctx, func() error {
		p, writeErr := s.writeResponse(ctx, rawURL, dir, opts)
		if writeErr != nil {
			return writeErr
		}
		path = p
		return nil
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// writeResponse performs one download attempt: fetch, resolve the
// destination, and stream the body to disk in chunks.
func (s *Session) writeResponse(ctx context.Context, rawURL, dir string, opts WriteOptions) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req, false)
	req.Header.Del("Accept")

	httpResp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		planetErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return "", &APIError{Class: ErrorClassNetwork, Message: "transport failure", Err: err}
	}
	defer httpResp.Body.Close()

	endpoint := req.URL.Path
	planetRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(httpResp.StatusCode)).Inc()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		resp := models.NewResponse(httpResp, data)
		apiErr := responseError(resp).(*APIError)
		planetErrorsTotal.WithLabelValues(string(apiErr.Class)).Inc()
		s.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", httpResp.StatusCode).
			Str("error_class", string(apiErr.Class)).
			Msg("Download request error")
		return "", apiErr
	}

	name := opts.Filename
	if name == "" {
		name = models.FilenameFromHeaders(httpResp.Header)
		if name == "" && httpResp.Request != nil && httpResp.Request.URL != nil {
			name = models.FilenameFromURL(httpResp.Request.URL.String())
		}
		if name == "" {
			name = models.RandomFilename(httpResp.Header.Get("Content-Type"))
		}
	}
	path := filepath.Join(dir, name)

	if !opts.Overwrite {
		if _, err := os.Stat(path); err == nil {
			s.logger.Debug().Str("path", path).Msg("Destination exists, skipping download")
			return path, nil
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}

	// The body is streamed into a temp file and renamed into place only
	// once fully written, so the destination never holds a truncated
	// download for a retry or a later no-overwrite call to find.
	f, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := f.Name()
	discard := func() {
		f.Close()
		os.Remove(tmpPath)
	}

	total := int64(-1)
	if httpResp.ContentLength >= 0 {
		total = httpResp.ContentLength
	}

	var downloaded int64
	buf := make([]byte, opts.ChunkSize)
	for {
		n, readErr := httpResp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				discard()
				return "", fmt.Errorf("write %s: %w", tmpPath, writeErr)
			}
			downloaded += int64(n)
			if opts.Progress != nil {
				opts.Progress(downloaded, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			discard()
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			planetErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return "", &APIError{Class: ErrorClassNetwork, Message: "read download stream", Err: readErr}
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename %s to %s: %w", tmpPath, path, err)
	}

	s.logger.Info().
		Str("path", path).
		Int64("bytes", downloaded).
		Msg("Download complete")
	return path, nil
}
