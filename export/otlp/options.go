// Package otlp exports checkpointed metric records to an OpenTelemetry
// collector over OTLP/HTTP. Records are converted into protobuf
// ExportMetricsServiceRequest messages and POSTed to the configured
// endpoint; http and https are selected by the endpoint URL's scheme.
package otlp

import (
	"net/http"
	"time"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultMaxElapsedTime = 30 * time.Second
)

type config struct {
	endpoint       string
	headers        map[string]string
	attributes     map[string]any
	serviceName    string
	timeout        time.Duration
	maxElapsedTime time.Duration
	onError        func(error)
	client         *http.Client
}

// Option configures an Exporter.
type Option func(*config)

// WithEndpoint sets the collector URL, e.g.
// "https://collector.example.com:4318/v1/metrics". Required.
func WithEndpoint(url string) Option {
	return func(c *config) { c.endpoint = url }
}

// WithHeaders adds headers to every export request.
func WithHeaders(headers map[string]string) Option {
	return func(c *config) {
		if len(headers) == 0 {
			return
		}
		if c.headers == nil {
			c.headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithAttributes layers extra attributes on top of the records' resource.
// Values are encoded as string, bool or double; all numbers become doubles.
func WithAttributes(attrs map[string]any) Option {
	return func(c *config) {
		if len(attrs) == 0 {
			return
		}
		if c.attributes == nil {
			c.attributes = make(map[string]any, len(attrs))
		}
		for k, v := range attrs {
			c.attributes[k] = v
		}
	}
}

// WithServiceName sets the service.name resource attribute, overriding any
// value already present on the resource.
func WithServiceName(name string) Option {
	return func(c *config) { c.serviceName = name }
}

// WithTimeout bounds a single export request. Default 10s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxElapsedTime bounds the total time spent retrying one export,
// including backoff waits. Default 30s.
func WithMaxElapsedTime(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.maxElapsedTime = d
		}
	}
}

// WithErrorHandler sets the callback receiving export failures (transport
// errors, or a StatusError carrying the response code and message).
func WithErrorHandler(f func(error)) Option {
	return func(c *config) { c.onError = f }
}

// WithHTTPClient replaces the transport client, e.g. to configure TLS.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.client = client }
}
