package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/marmos91/filedepot/internal/logger"
)

// Component represents a long-running subsystem that can be managed by Depot.
//
// Each component owns one concern of the running service (the metrics
// listener, the garbage collector, the HTTP API) and provides a unified
// interface for lifecycle management.
//
// Lifecycle:
//  1. Creation: component is created with its own configuration
//  2. Registration: Add() hands it to the Depot runner
//  3. Startup: Serve() starts the component and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. Stop() may be called
// concurrently with Serve().
type Component interface {
	// Serve starts the component and blocks until the context is cancelled,
	// Stop is called, or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must initiate graceful shutdown:
	//   - Stop accepting new work
	//   - Wait for in-flight work to complete (with timeout)
	//   - Clean up resources
	//   - Return context.Canceled or nil
	//
	// If Serve returns before context cancellation, Depot treats it as a
	// fatal error and stops all other components.
	//
	// Returns:
	//   - nil on graceful shutdown
	//   - context.Canceled if cancelled via context
	//   - error if startup fails or shutdown is not graceful
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown of the component.
	//
	// This method may be called concurrently with Serve() during Depot
	// shutdown. Implementations must:
	//   - Be safe to call multiple times (idempotent)
	//   - Be safe to call concurrently with Serve()
	//   - Respect the context deadline for shutdown operations
	//   - Unblock a pending Serve() call
	//
	// Returns:
	//   - nil if shutdown completed successfully
	//   - error if shutdown exceeded the deadline or encountered errors
	Stop(ctx context.Context) error

	// Name returns the human-readable component name for logging.
	//
	// The returned value should be constant for the lifetime of the
	// component and unique within a Depot.
	Name() string
}

// componentError pairs a component name with its error for better reporting.
type componentError struct {
	name string
	err  error
}

// defaultStopTimeout bounds shutdown when the caller provides no timeout.
const defaultStopTimeout = 30 * time.Second

// Depot manages the lifecycle of the service's long-running components.
//
// Architecture:
// Depot orchestrates independent subsystems (metrics server, garbage
// collector, HTTP API) that are represented as Component implementations.
// Components are started concurrently in registration order and stopped in
// reverse registration order, so a component may depend on one registered
// before it.
//
// Lifecycle:
//  1. Creation: New() with a shutdown timeout
//  2. Registration: Add() for each component
//  3. Startup: Serve() starts all components concurrently
//  4. Shutdown: context cancellation or a component failure triggers
//     graceful shutdown of all components
//
// Thread safety:
// Depot is safe for concurrent use. Add() may be called concurrently with
// other methods. Serve() must only be called once per instance.
//
// Example usage:
//
//	depot := server.New(cfg.Server.ShutdownTimeout)
//	depot.Add(metricsServer)
//	depot.Add(collector)
//	depot.Add(apiServer)
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := depot.Serve(ctx); err != nil && err != context.Canceled {
//	    log.Fatal(err)
//	}
type Depot struct {
	// components contains all registered components in registration order
	components []Component

	// stopTimeout bounds the reverse-order Stop() pass during shutdown
	stopTimeout time.Duration

	// mu protects the components slice and the served flag
	mu sync.RWMutex

	// serveOnce ensures the serve loop runs at most once
	serveOnce sync.Once

	// served indicates whether Serve() has been called
	served bool
}

// New creates a Depot with the given shutdown timeout.
//
// The timeout bounds how long the depot waits for components to stop during
// shutdown; a non-positive value falls back to 30 seconds.
//
// Returns a configured but not yet started Depot. Call Add() to register
// components, then Serve() to run them.
func New(stopTimeout time.Duration) *Depot {
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}

	return &Depot{
		components:  make([]Component, 0, 4),
		stopTimeout: stopTimeout,
	}
}

// Add registers a component with the depot.
//
// Components are started in registration order and stopped in reverse, so
// register dependencies first (metrics before the API that records into it).
//
// Returns an error if a component with the same name is already registered.
//
// Panics if:
//   - the component is nil (programmer error)
//   - Serve() has already been called (depot is running)
//
// Thread safety:
// Safe to call concurrently from multiple goroutines before Serve().
func (d *Depot) Add(c Component) error {
	if c == nil {
		panic("component cannot be nil")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.served {
		panic("cannot add component after Serve() has been called")
	}

	name := c.Name()
	for _, existing := range d.components {
		if existing.Name() == name {
			return fmt.Errorf("component %q already registered", name)
		}
	}

	d.components = append(d.components, c)

	logger.Debug("Registered component: %s", name)

	return nil
}

// Serve starts all registered components and blocks until the context is
// cancelled or a component fails.
//
// Serve orchestrates the component lifecycle:
//  1. Validates that at least one component is registered
//  2. Starts all components concurrently, in registration order
//  3. Monitors for context cancellation or component failures
//  4. On shutdown: stops all components in reverse registration order
//  5. Waits for every component's Serve() to return
//
// Error handling:
//   - If the context is cancelled: initiates graceful shutdown and returns
//     the context error (normally context.Canceled)
//   - If any component fails: stops all components and returns the failure
//     wrapped with the component name
//
// Panics if Serve() is called more than once on the same Depot instance.
func (d *Depot) Serve(ctx context.Context) error {
	var err error
	called := false

	d.serveOnce.Do(func() {
		d.mu.Lock()
		d.served = true
		d.mu.Unlock()

		called = true
		err = d.serve(ctx)
	})

	if !called {
		panic("Serve() has already been called on this Depot instance")
	}

	return err
}

// serve is the internal implementation of Serve().
// Separated to allow serveOnce protection.
func (d *Depot) serve(ctx context.Context) error {
	d.mu.RLock()
	if len(d.components) == 0 {
		d.mu.RUnlock()
		return fmt.Errorf("no components registered; call Add() before Serve()")
	}
	components := make([]Component, len(d.components))
	copy(components, d.components)
	d.mu.RUnlock()

	logger.Info("Starting depot with %d component(s)", len(components))

	// Buffered so that components failing after shutdown has begun never
	// block on a send nobody reads.
	errChan := make(chan componentError, len(components))

	var wg sync.WaitGroup

	for _, comp := range components {
		wg.Add(1)
		go func(c Component) {
			defer wg.Done()

			name := c.Name()

			logger.Info("Starting component: %s", name)

			if err := c.Serve(ctx); err != nil {
				// context.Canceled is expected during shutdown.
				if err != context.Canceled && ctx.Err() == nil {
					logger.Error("Component %s failed: %v", name, err)
					errChan <- componentError{name: name, err: err}
				} else {
					logger.Debug("Component %s stopped gracefully", name)
				}
			} else {
				logger.Info("Component %s stopped", name)
			}
		}(comp)
	}

	// Wait for either context cancellation or a component failure.
	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		d.stopAll(components)
		shutdownErr = ctx.Err()

	case compErr := <-errChan:
		logger.Error("Component %s failed: %v - stopping all components",
			compErr.name, compErr.err)
		d.stopAll(components)
		shutdownErr = fmt.Errorf("%s component error: %w", compErr.name, compErr.err)
	}

	// Wait for every component's Serve() to return.
	logger.Debug("Waiting for all components to complete shutdown")
	wg.Wait()

	logger.Info("Depot stopped")

	return shutdownErr
}

// stopAll initiates graceful shutdown of all components in reverse
// registration order.
//
// Components are stopped in reverse so that anything registered later (the
// HTTP API) goes down before what it depends on (metrics, the collector).
// Each Stop() call shares a single timeout context so one misbehaving
// component cannot block shutdown indefinitely.
//
// Stop errors are aggregated and logged but do not interrupt the pass; the
// remaining components are always given their Stop() call.
//
// Note: this method only initiates shutdown. The caller waits for component
// goroutines to complete using the WaitGroup.
func (d *Depot) stopAll(components []Component) {
	ctx, cancel := context.WithTimeout(context.Background(), d.stopTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d component(s)", len(components))

	var errs *multierror.Error
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		name := c.Name()

		logger.Debug("Stopping component: %s", name)

		if err := c.Stop(ctx); err != nil && err != context.Canceled {
			errs = multierror.Append(errs, fmt.Errorf("stop %s: %w", name, err))
		}
	}

	if errs != nil {
		logger.Error("Component shutdown errors: %v", errs)
	}
}

// Components returns a snapshot of currently registered components.
//
// The returned slice is a copy and safe to iterate without holding locks.
//
// Thread safety:
// Safe to call concurrently with Add() and Serve().
func (d *Depot) Components() []Component {
	d.mu.RLock()
	defer d.mu.RUnlock()

	components := make([]Component, len(d.components))
	copy(components, d.components)
	return components
}
