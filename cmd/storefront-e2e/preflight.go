package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/storefront-e2e/internal/poll"
	"github.com/ternarybob/storefront-e2e/internal/storefront"
)

// siteURL joins path onto baseURL without doubling slashes. An unparsable
// base is returned as given plus path so the request reports the error.
func siteURL(baseURL, path string) string {
	joined, err := url.JoinPath(baseURL, path)
	if err != nil {
		return baseURL + path
	}
	return joined
}

// waitForService polls url until it answers with a non-5xx status
func waitForService(ctx context.Context, target string, timeout time.Duration, logger arbor.ILogger) error {
	client := &http.Client{Timeout: 2 * time.Second}

	status := func(ctx context.Context) (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return 0, fmt.Errorf("invalid storefront URL %s: %w", target, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, poll.Transient(err)
		}
		resp.Body.Close()
		return resp.StatusCode, nil
	}

	_, err := poll.Until(ctx, status, poll.LessOrEqual(http.StatusInternalServerError-1), poll.Policy{
		Name:     "storefront " + target,
		Timeout:  timeout,
		Interval: 500 * time.Millisecond,
		Logger:   logger,
	})
	if _, ok := poll.AsTimeout(err); ok {
		return fmt.Errorf("storefront did not become ready within %v: %w", timeout, err)
	}
	return err
}

// checkConnectivity logs whether the storefront's status endpoint answers.
// Only the demo storefront has one, so a failure is informational.
func checkConnectivity(ctx context.Context, baseURL string, logger arbor.ILogger) {
	client := &http.Client{Timeout: 5 * time.Second}
	statusURL := siteURL(baseURL, storefront.StatusPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		logger.Debug().Err(err).Str("url", statusURL).Msg("Status endpoint not reachable (non-critical)")
		return
	}
	resp.Body.Close()

	logger.Debug().Int("status", resp.StatusCode).Str("url", statusURL).Msg("Status endpoint checked")
}
