package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

// maxRetries bounds the extra attempts after the first send.
const maxRetries = 3

// transientError is a provider reply worth retrying: a 5xx or a 429. The
// body rides along for the final error message when every attempt fails.
type transientError struct {
	status int
	body   string
}

func (e *transientError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.status, e.body)
}

// retryDelay grows quadratically per attempt, with jitter so parallel
// sessions hitting the same provider spread their retries out.
func retryDelay(attempt int) time.Duration {
	base := time.Duration(attempt*attempt) * time.Second
	return base + time.Duration(rand.Int63n(int64(base/2 + 1)))
}

// doWithRetry sends the request produced by build, retrying network errors,
// 5xx replies and 429 rate limits. build runs once per attempt so the body
// reader is fresh each time. Other status codes, 4xx included, go straight
// back to the caller.
func doWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(attempt)
			logger.Warn("retrying model request", "attempt", attempt, "delay", delay, "err", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = &transientError{status: resp.StatusCode, body: string(body)}
			continue
		}
		return resp, nil
	}

	return nil, fmt.Errorf("giving up after %d retries: %w", maxRetries, lastErr)
}
