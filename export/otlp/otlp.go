package otlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/protobuf/proto"

	"github.com/statsforge/metrics"
)

// ErrExportFailed wraps every failed export; match with errors.Is.
var ErrExportFailed = errors.New("otlp: export failed")

// StatusError reports a non-success HTTP response from the collector.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("otlp: export failed: status %d: %s", e.Code, e.Status)
}

func (e *StatusError) Unwrap() error { return ErrExportFailed }

// Exporter POSTs serialized checkpoints to an OTLP/HTTP collector. It
// implements metrics.Exporter. Failures are reported to the configured
// error handler and returned; they never panic into the collection cycle.
type Exporter struct {
	cfg    config
	client *http.Client
}

// New validates the configuration and constructs an Exporter. The endpoint
// is required and must use the http or https scheme.
func New(opts ...Option) (*Exporter, error) {
	cfg := config{
		timeout:        defaultTimeout,
		maxElapsedTime: defaultMaxElapsedTime,
	}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	if cfg.endpoint == "" {
		return nil, errors.New("otlp: endpoint is required")
	}
	u, err := url.Parse(cfg.endpoint)
	if err != nil {
		return nil, fmt.Errorf("otlp: invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("otlp: unsupported endpoint scheme %q", u.Scheme)
	}
	client := cfg.client
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout}
	}
	return &Exporter{cfg: cfg, client: client}, nil
}

// Export converts records to the wire format and POSTs them, retrying
// transport errors and retryable status codes with exponential backoff.
func (e *Exporter) Export(ctx context.Context, records []metrics.Record) error {
	if len(records) == 0 {
		return nil
	}
	req := transform(records, e.cfg.serviceName, e.cfg.attributes)
	body, err := proto.Marshal(req)
	if err != nil {
		return e.fail(fmt.Errorf("otlp: marshal request: %w", err))
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = e.cfg.maxElapsedTime
	err = backoff.Retry(func() error {
		return e.send(ctx, body)
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return e.fail(err)
	}
	return nil
}

func (e *Exporter) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	for k, v := range e.cfg.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// drain so the connection can be reused
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 299 {
		return nil
	}
	serr := &StatusError{Code: resp.StatusCode, Status: statusMessage(resp.Status, msg)}
	if retryable(resp.StatusCode) {
		return serr
	}
	return backoff.Permanent(serr)
}

func retryable(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return true
	}
	return code >= 500
}

func statusMessage(status string, body []byte) string {
	if len(body) == 0 {
		return status
	}
	return status + ": " + string(body)
}

func (e *Exporter) fail(err error) error {
	if !errors.Is(err, ErrExportFailed) {
		err = fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	if e.cfg.onError != nil {
		e.cfg.onError(err)
	}
	return err
}
