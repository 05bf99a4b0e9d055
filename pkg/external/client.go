// Package external holds the HTTP collaborators of the case pipeline: rs
// number lookup, disease-to-gene mapping and VCF projection.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/genomic-case-qc/internal/domain"
)

// StatusError is a non-2xx response from a collaborator.
type StatusError struct {
	Service string
	Code    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Service, e.Code)
}

// decodeError wraps a response body that could not be read.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decoding response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// retryable reports whether err may go away on a later attempt.
func retryable(err error) bool {
	var statusErr *StatusError
	var decodeErr *decodeError
	switch {
	case errors.As(err, &statusErr):
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	case errors.As(err, &decodeErr),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// caller runs requests against one collaborator with rate limiting, a
// circuit breaker and bounded exponential retries.
type caller struct {
	service    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	retries    int
	log        *logrus.Logger

	initialInterval time.Duration
	maxInterval     time.Duration
}

func newCaller(service string, config domain.ServiceConfig, logger *logrus.Logger) *caller {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 5
	}
	if config.RetryCount < 0 {
		config.RetryCount = 0
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !retryable(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &caller{
		service:         service,
		httpClient:      &http.Client{Timeout: config.Timeout},
		limiter:         rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		breaker:         breaker,
		retries:         config.RetryCount,
		log:             logger,
		initialInterval: 250 * time.Millisecond,
		maxInterval:     5 * time.Second,
	}
}

// call runs op until it succeeds, fails permanently or runs out of attempts.
// Exhausted attempts and an open breaker become a LookupTimeoutError.
func (c *caller) call(ctx context.Context, key string, op func(ctx context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	policy.MaxInterval = c.maxInterval
	policy.MaxElapsedTime = 0

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, op(ctx)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || !retryable(err) {
			return backoff.Permanent(err)
		}
		c.log.WithError(err).WithFields(logrus.Fields{
			"service": c.service,
			"key":     key,
			"attempt": attempts,
		}).Debug("Retrying external request")
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.retries)), ctx))

	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || retryable(err) {
		return &domain.LookupTimeoutError{Service: c.service, Key: key, Attempts: attempts, Err: err}
	}
	return err
}

// doJSON sends body (if any) as JSON and decodes a 200 response into out.
// 404 maps to domain.ErrNotFound.
func (c *caller) doJSON(ctx context.Context, method, url string, header http.Header, body, out interface{}) error {
	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	var req *http.Request
	var err error
	if payload != nil {
		req, err = http.NewRequestWithContext(ctx, method, url, payload)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return &StatusError{Service: c.service, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &decodeError{err: err}
	}
	return nil
}
