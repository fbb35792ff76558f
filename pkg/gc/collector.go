// Package gc provides background garbage collection for the depot.
//
// Two kinds of garbage accumulate during normal operation:
//   - Expired share links. Expiry only hides them from the public
//     endpoints; the rows stay behind until purged.
//   - Orphaned blob objects: bytes with no file record, left behind by
//     crashes between the blob write and the metadata insert, or by
//     best-effort deletes that never reached the object store.
//
// The collector runs both sweeps periodically. A grace period shields
// in-flight uploads: an object is only an orphan once it is older than
// the grace period AND unreferenced.
package gc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"

	"github.com/marmos91/filedepot/internal/logger"
	"github.com/marmos91/filedepot/pkg/blob"
	"github.com/marmos91/filedepot/pkg/store"
)

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether garbage collection is active (default: true)
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// Interval is how often to run garbage collection (default: 1h)
	Interval time.Duration `mapstructure:"interval" json:"interval"`

	// GracePeriod is how old an unreferenced object must be before it
	// counts as an orphan, and how long expired shares are kept around
	// (default: 24h). Must cover the longest plausible upload.
	GracePeriod time.Duration `mapstructure:"grace_period" json:"grace_period"`

	// BatchSize is how many orphaned objects to delete per batch
	// (default: 1000)
	BatchSize int `mapstructure:"batch_size" json:"batch_size"`

	// DryRun mode logs what would be deleted without actually deleting
	// (default: false)
	DryRun bool `mapstructure:"dry_run" json:"dry_run"`
}

func (c Config) withDefaults() Config {
	if c.Interval == 0 {
		c.Interval = time.Hour
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = 24 * time.Hour
	}
	if c.BatchSize == 0 {
		c.BatchSize = 1000
	}
	return c
}

// Collector performs periodic garbage collection on the metadata store
// and the blob store.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	store    store.Store
	blobs    blob.Store
	config   Config
	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

// NewCollector creates a new garbage collector.
//
// The collector is initialized but not started; call Start() to begin
// background collection. The orphan sweep needs a blob store that can
// enumerate its objects (blob.Lister); without one only the expired-share
// purge runs.
func NewCollector(st store.Store, blobs blob.Store, config Config) *Collector {
	return &Collector{
		store:  st,
		blobs:  blobs,
		config: config.withDefaults(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins background garbage collection.
//
// This starts a goroutine that runs collection at the configured interval
// until Stop() is called. When collection is disabled this is a no-op.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Garbage collection disabled")
		return
	}

	logger.Info("Starting garbage collector: interval=%s grace=%s batch_size=%d dry_run=%v",
		c.config.Interval, c.config.GracePeriod, c.config.BatchSize, c.config.DryRun)

	go c.worker()
}

// Name identifies the collector to the lifecycle runner.
func (c *Collector) Name() string {
	return "gc"
}

// Serve starts background collection and blocks until the context is
// cancelled or Stop is called, so the collector can run under a lifecycle
// runner alongside the other components. When collection is disabled it
// blocks without doing any work.
func (c *Collector) Serve(ctx context.Context) error {
	c.Start()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopCh:
		return nil
	}
}

// Stop stops the garbage collector and waits for it to finish any
// in-progress run, or for ctx to expire. Safe to call multiple times.
func (c *Collector) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if !c.config.Enabled {
		return nil
	}

	logger.Info("Stopping garbage collector...")

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunOnce triggers an immediate collection run and blocks until it
// completes or ctx is cancelled. Used by tests and manual triggers; it
// works whether or not the background worker is running.
func (c *Collector) RunOnce(ctx context.Context) (*Stats, error) {
	return c.collect(ctx)
}

// worker is the background goroutine that runs periodic collection.
func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect performs a single garbage collection run: first the
// expired-share purge, then the orphan sweep.
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	cutoff := stats.StartTime.Add(-c.config.GracePeriod)

	if err := c.purgeShares(ctx, cutoff, stats); err != nil {
		stats.EndTime = time.Now()
		return stats, err
	}

	if err := c.sweepOrphans(ctx, cutoff, stats); err != nil {
		stats.EndTime = time.Now()
		return stats, err
	}

	stats.EndTime = time.Now()
	return stats, nil
}

// purgeShares deletes share rows that expired before the cutoff. The
// grace period keeps recently expired shares visible for operators
// diagnosing "my link stopped working" reports.
func (c *Collector) purgeShares(ctx context.Context, cutoff time.Time, stats *Stats) error {
	if c.config.DryRun {
		logger.Info("GC: DRY RUN - skipping expired-share purge")
		return nil
	}

	purged, err := c.store.PurgeExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge expired shares: %w", err)
	}
	stats.PurgedShares = uint64(purged)

	if purged > 0 {
		logger.Info("GC: Purged %d expired shares", purged)
	}
	return nil
}

// sweepOrphans deletes blob objects that no file record references and
// that are older than the cutoff.
//
// The algorithm:
//  1. Collect every object key referenced by a file record.
//  2. List the blob store; anything unreferenced and older than the
//     cutoff is an orphan.
//  3. Delete orphans in batches, collecting per-object failures.
func (c *Collector) sweepOrphans(ctx context.Context, cutoff time.Time, stats *Stats) error {
	lister, ok := c.blobs.(blob.Lister)
	if !ok {
		logger.Info("GC: Blob store does not support listing, skipping orphan sweep")
		return nil
	}

	referenced := make(map[string]struct{})
	err := c.store.ForEachObjectKey(ctx, func(key string) error {
		referenced[key] = struct{}{}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to collect referenced object keys: %w", err)
	}
	stats.ReferencedObjects = uint64(len(referenced))

	var orphans []blob.ObjectInfo
	err = lister.List(ctx, "", func(info blob.ObjectInfo) error {
		stats.ScannedObjects++
		if _, ok := referenced[info.Key]; ok {
			return nil
		}
		if info.ModTime.After(cutoff) {
			// Too young to judge: the metadata insert may still be
			// in flight.
			return nil
		}
		orphans = append(orphans, info)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list blob objects: %w", err)
	}
	stats.OrphanedObjects = uint64(len(orphans))

	if len(orphans) == 0 {
		return nil
	}

	logger.Info("GC: Found %d orphaned objects (%d referenced, %d scanned)",
		stats.OrphanedObjects, stats.ReferencedObjects, stats.ScannedObjects)

	if c.config.DryRun {
		logger.Info("GC: DRY RUN - Would delete %d objects:", len(orphans))
		for i, info := range orphans {
			if i >= 10 {
				logger.Info("  ... and %d more", len(orphans)-10)
				break
			}
			logger.Info("  - %s (%s)", info.Key, humanize.Bytes(uint64(info.Size)))
		}
		return nil
	}

	var errs *multierror.Error
	for i := 0; i < len(orphans); i += c.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := i + c.config.BatchSize
		if end > len(orphans) {
			end = len(orphans)
		}

		for _, info := range orphans[i:end] {
			if err := c.blobs.Delete(ctx, info.Key); err != nil {
				stats.FailedObjects++
				errs = multierror.Append(errs, fmt.Errorf("delete %s: %w", info.Key, err))
				continue
			}
			stats.DeletedObjects++
			stats.DeletedBytes += uint64(info.Size)
		}

		logger.Debug("GC: Deleted batch %d-%d", i, end)
	}

	if errs != nil {
		logger.Warn("GC: %d objects failed to delete: %v", stats.FailedObjects, errs)
	}
	return nil
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime         time.Time
	EndTime           time.Time
	PurgedShares      uint64 // expired share rows removed
	ReferencedObjects uint64 // object keys referenced by file records
	ScannedObjects    uint64 // objects seen in the blob store
	OrphanedObjects   uint64 // unreferenced objects past the grace period
	DeletedObjects    uint64 // orphans successfully deleted
	DeletedBytes      uint64 // bytes reclaimed by deletions
	FailedObjects     uint64 // orphans that failed to delete
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("shares_purged=%d referenced=%d scanned=%d orphaned=%d deleted=%d reclaimed=%s failed=%d duration=%s",
		s.PurgedShares, s.ReferencedObjects, s.ScannedObjects, s.OrphanedObjects,
		s.DeletedObjects, humanize.Bytes(s.DeletedBytes), s.FailedObjects, s.Duration())
}
