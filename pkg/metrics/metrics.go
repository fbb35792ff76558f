// Package metrics defines the observability interfaces for FileDepot
// components.
//
// All metrics are optional: components take an interface and the noop
// implementations have zero overhead, so the service runs identically
// with collection disabled. The Prometheus implementations live in
// pkg/metrics/prometheus and are selected by configuration.
package metrics

import "time"

// HTTPMetrics observes the REST API.
type HTTPMetrics interface {
	// RecordRequest records a completed request with its route template
	// (e.g. "/api/files/{id}"), status code, duration, and response
	// body size.
	RecordRequest(method, route string, status int, duration time.Duration, bytes int64)

	// RecordRequestStart increments the in-flight gauge for a route.
	RecordRequestStart(route string)

	// RecordRequestEnd decrements the in-flight gauge for a route.
	RecordRequestEnd(route string)
}

// StoreMetrics observes metadata store queries.
type StoreMetrics interface {
	// RecordQuery records one store operation ("create_user",
	// "list_files", ...) with its duration and outcome.
	RecordQuery(op string, duration time.Duration, err error)
}

// BlobMetrics observes blob store operations.
type BlobMetrics interface {
	// RecordOperation records one blob operation ("put", "get",
	// "delete", "presign") with the bytes moved, its duration, and
	// outcome. Pass zero bytes for operations that move none.
	RecordOperation(op string, bytes int64, duration time.Duration, err error)
}

// AuthMetrics observes authentication outcomes.
type AuthMetrics interface {
	// RecordLogin records a login attempt.
	RecordLogin(success bool)

	// RecordTokenRefresh records a successful refresh token rotation.
	RecordTokenRefresh()

	// RecordShareAccess records a successful public share download.
	RecordShareAccess()
}

// Registry bundles the component metrics handed around at wiring time.
type Registry struct {
	HTTP  HTTPMetrics
	Store StoreMetrics
	Blob  BlobMetrics
	Auth  AuthMetrics
}

// NewNoopRegistry returns a registry whose members all discard their
// observations.
func NewNoopRegistry() *Registry {
	return &Registry{
		HTTP:  NewNoopHTTPMetrics(),
		Store: NewNoopStoreMetrics(),
		Blob:  NewNoopBlobMetrics(),
		Auth:  NewNoopAuthMetrics(),
	}
}

// NewNoopHTTPMetrics returns an HTTPMetrics that discards everything.
func NewNoopHTTPMetrics() HTTPMetrics { return noopHTTPMetrics{} }

// NewNoopStoreMetrics returns a StoreMetrics that discards everything.
func NewNoopStoreMetrics() StoreMetrics { return noopStoreMetrics{} }

// NewNoopBlobMetrics returns a BlobMetrics that discards everything.
func NewNoopBlobMetrics() BlobMetrics { return noopBlobMetrics{} }

// NewNoopAuthMetrics returns an AuthMetrics that discards everything.
func NewNoopAuthMetrics() AuthMetrics { return noopAuthMetrics{} }

type noopHTTPMetrics struct{}

func (noopHTTPMetrics) RecordRequest(method, route string, status int, duration time.Duration, bytes int64) {
}
func (noopHTTPMetrics) RecordRequestStart(route string) {}
func (noopHTTPMetrics) RecordRequestEnd(route string)   {}

type noopStoreMetrics struct{}

func (noopStoreMetrics) RecordQuery(op string, duration time.Duration, err error) {}

type noopBlobMetrics struct{}

func (noopBlobMetrics) RecordOperation(op string, bytes int64, duration time.Duration, err error) {}

type noopAuthMetrics struct{}

func (noopAuthMetrics) RecordLogin(success bool) {}
func (noopAuthMetrics) RecordTokenRefresh()      {}
func (noopAuthMetrics) RecordShareAccess()       {}
