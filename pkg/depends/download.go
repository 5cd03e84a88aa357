package depends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ErrNotFound means the remote answered 404 for an archive
var ErrNotFound = errors.New("archive not found")

const (
	defaultRetries = 3
	defaultBackoff = 500 * time.Millisecond
)

// Downloader fetches archives over HTTP, retrying transient failures
type Downloader struct {
	Client  *http.Client
	Tokens  []string
	Retries int
	Backoff time.Duration
	Logger  *slog.Logger
}

// NewDownloader creates a downloader with the given request timeout
func NewDownloader(timeout time.Duration, tokens []string, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Downloader{
		Client:  &http.Client{Timeout: timeout},
		Tokens:  tokens,
		Retries: defaultRetries,
		Backoff: defaultBackoff,
		Logger:  logger,
	}
}

func (d *Downloader) token() string {
	for _, t := range d.Tokens {
		if t != "" {
			return t
		}
	}
	return ""
}

// Download writes url to dst. A 404 is returned as ErrNotFound without
// retrying; other failures are retried up to Retries times.
func (d *Downloader) Download(ctx context.Context, url, dst string) error {
	attempts := d.Retries
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		err := d.fetch(ctx, url, dst)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return err
		}
		lastErr = err
		d.Logger.Debug("download attempt failed", "url", url, "attempt", i, "error", err)
		if i < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.Backoff * time.Duration(i)):
			}
		}
	}
	return fmt.Errorf("failed to download %s after %d attempts: %w", url, attempts, lastErr)
}

func (d *Downloader) fetch(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "watchdogs")
	if tok := d.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
