package signals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// client is the shared retrying JSON fetcher for the external signal
// feeds. Feeds are read-only GETs, so retries are safe.
type client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func newClient(baseURL, apiKey string, timeout time.Duration) *client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func (c *client) getJSON(ctx context.Context, path string, dst any) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("build request %s: %w", path, err)
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			defer resp.Body.Close()
			return json.NewDecoder(resp.Body).Decode(dst)
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = errors.New(resp.Status)
			resp.Body.Close()
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return fmt.Errorf("fetch %s: %w", path, lastErr)
			}
		}

		sleep := time.Duration((1<<i)*100) * time.Millisecond
		sleep += time.Duration(rand.Intn(150)) * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return fmt.Errorf("fetch %s: %w", path, lastErr)
}
