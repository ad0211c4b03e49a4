package dataset

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofrs/flock"
	"github.com/sethvargo/go-retry"

	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/config"
	"github.com/chesspuzzlekit/chesspuzzlekit/pkg/logger"
)

const (
	defaultDownloadTimeout = 30 * time.Minute
	defaultRetryBackoff    = time.Second
	lockRetryDelay         = 100 * time.Millisecond
)

var errTruncated = errors.New("dataset: download truncated")

// Result describes a finished download.
type Result struct {
	Path     string
	Bytes    int64
	Skipped  bool
	Duration time.Duration
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

func WithTimeout(d time.Duration) DownloaderOption {
	return func(dl *Downloader) {
		if d > 0 {
			dl.timeout = d
		}
	}
}

// WithRetries sets how many times a failed transfer is attempted again.
func WithRetries(n int) DownloaderOption {
	return func(dl *Downloader) {
		if n >= 0 {
			dl.retries = n
		}
	}
}

func WithRetryBackoff(d time.Duration) DownloaderOption {
	return func(dl *Downloader) {
		if d > 0 {
			dl.backoff = d
		}
	}
}

// Downloader fetches dataset files into place atomically.
type Downloader struct {
	client  *resty.Client
	timeout time.Duration
	retries int
	backoff time.Duration
}

func NewDownloader(opts ...DownloaderOption) *Downloader {
	dl := &Downloader{timeout: defaultDownloadTimeout, retries: 3, backoff: defaultRetryBackoff}
	for _, opt := range opts {
		opt(dl)
	}
	dl.client = resty.New().
		SetTimeout(dl.timeout).
		SetRetryCount(dl.retries).
		SetRetryWaitTime(dl.backoff).
		SetRetryMaxWaitTime(dl.backoff * 8)
	dl.client.AddRetryCondition(retryCondition)
	return dl
}

// DownloaderFromConfig builds a Downloader from the dataset section.
func DownloaderFromConfig(cfg *config.DatasetConfig) *Downloader {
	return NewDownloader(
		WithTimeout(cfg.Timeout),
		WithRetries(cfg.Retries),
		WithRetryBackoff(cfg.RetryBackoff),
	)
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

// Download saves url to dest. An existing dest is kept unless force is set.
// Concurrent downloads of the same dest are serialized by a lock file.
func (dl *Downloader) Download(ctx context.Context, url, dest string, force bool) (*Result, error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	if !force {
		if info, err := os.Stat(dest); err == nil && !info.IsDir() {
			log.Info("Dataset already present, skipping download", "path", dest)
			return &Result{Path: dest, Bytes: info.Size(), Skipped: true}, nil
		}
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dataset: creating %s: %w", dir, err)
	}

	lock := flock.New(dest + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("dataset: locking %s: %w", dest, err)
	}
	if !locked {
		return nil, fmt.Errorf("dataset: could not lock %s", dest)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("Failed to release download lock", "path", dest, "error", err)
		}
	}()

	log.Info("Downloading dataset", "url", url, "path", dest)
	var written int64
	backoff := retry.WithMaxRetries(uint64(dl.retries), retry.NewExponential(dl.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		n, err := dl.fetch(ctx, url, dest)
		if errors.Is(err, errTruncated) {
			log.Warn("Retrying truncated download", "url", url, "bytes", n)
			return retry.RetryableError(err)
		}
		written = n
		return err
	})
	if err != nil {
		return nil, err
	}
	res := &Result{Path: dest, Bytes: written, Duration: time.Since(start)}
	log.Info("Dataset downloaded", "path", dest, "bytes", res.Bytes, "duration", res.Duration)
	return res, nil
}

// fetch performs one transfer into a temp file next to dest and renames it
// into place on success.
func (dl *Downloader) fetch(ctx context.Context, url, dest string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("dataset: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	keep := false
	defer func() {
		if !keep {
			os.Remove(tmpPath)
		}
	}()

	resp, err := dl.client.R().SetContext(ctx).SetOutput(tmpPath).Get(url)
	if err != nil {
		return 0, fmt.Errorf("dataset: downloading %s: %w", url, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("dataset: downloading %s: unexpected status %s", url, resp.Status())
	}
	info, err := os.Stat(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("dataset: inspecting download: %w", err)
	}
	if want := resp.RawResponse.ContentLength; want >= 0 && info.Size() != want {
		return info.Size(), fmt.Errorf("%w: got %d of %d bytes", errTruncated, info.Size(), want)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return 0, fmt.Errorf("dataset: moving download into place: %w", err)
	}
	keep = true
	return info.Size(), nil
}
