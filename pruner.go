package semcache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/reviewloop/semcache/internal/metrics"
	"github.com/reviewloop/semcache/internal/observability"
	"github.com/reviewloop/semcache/vector"
)

// PruneState is the pruning job's lifecycle state.
type PruneState int32

const (
	PruneIdle PruneState = iota
	PruneScanning
	PruneDeleting
)

// String returns the state name.
func (s PruneState) String() string {
	switch s {
	case PruneScanning:
		return "scanning"
	case PruneDeleting:
		return "deleting"
	default:
		return "idle"
	}
}

// ErrPruneInProgress is returned when Run is called while a sweep is
// already running.
var ErrPruneInProgress = fmt.Errorf("prune already in progress")

// Pruner removes result-cache entries older than the retention window.
// Query caches are not pruned: natural query diversity keeps them bounded.
//
// A run scans the namespace in cursor pages, collects expired ids, then
// deletes them in batches. Any error aborts the run back to Idle; deletions
// already committed stay deleted, which is safe because deletion only moves
// the namespace toward the state the next run would produce anyway.
type Pruner struct {
	store     vector.Store
	namespace string
	retention time.Duration
	pageSize  int
	limiter   *rate.Limiter
	logger    *observability.Logger
	state     atomic.Int32
}

// PrunerOptions configures a pruning job.
type PrunerOptions struct {
	// Namespace is the result-cache namespace to sweep.
	Namespace string

	// Retention is how long entries are kept.
	Retention time.Duration

	// PageSize bounds how many entries a single scroll call returns.
	// Defaults to 100.
	PageSize int

	// RatePerSecond throttles index calls during a sweep so pruning cannot
	// starve live traffic. Zero means unlimited.
	RatePerSecond float64

	// Logger receives run reports. Defaults to a no-op logger.
	Logger *observability.Logger
}

// NewPruner creates a pruning job over one namespace.
func NewPruner(store vector.Store, opts PrunerOptions) (*Pruner, error) {
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	if opts.Retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %v", opts.Retention)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.Logger == nil {
		opts.Logger = observability.Nop()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}

	return &Pruner{
		store:     store,
		namespace: opts.Namespace,
		retention: opts.Retention,
		pageSize:  opts.PageSize,
		limiter:   limiter,
		logger:    opts.Logger.WithFields("cache", opts.Namespace),
	}, nil
}

// PruneReport summarizes one sweep.
type PruneReport struct {
	RunID   string        `json:"run_id"`
	Cutoff  time.Time     `json:"cutoff"`
	Scanned int           `json:"scanned"`
	Expired int           `json:"expired"`
	Deleted int           `json:"deleted"`
	Elapsed time.Duration `json:"elapsed"`
}

// Run performs one sweep. It is safe to run concurrently with ordinary
// cache traffic; overlapping Run calls are rejected with
// ErrPruneInProgress. On error the partial report is returned alongside it.
func (p *Pruner) Run(ctx context.Context) (PruneReport, error) {
	report := PruneReport{
		RunID:  uuid.NewString(),
		Cutoff: time.Now().Add(-p.retention),
	}

	if !p.state.CompareAndSwap(int32(PruneIdle), int32(PruneScanning)) {
		return report, ErrPruneInProgress
	}
	defer p.state.Store(int32(PruneIdle))

	start := time.Now()
	logger := p.logger.WithFields("run_id", report.RunID)
	logger.Info("prune started", "cutoff", report.Cutoff)

	expired, scanned, err := p.scan(ctx, report.Cutoff)
	report.Scanned = scanned
	report.Expired = len(expired)
	if err != nil {
		report.Elapsed = time.Since(start)
		logger.Error("prune aborted during scan", "error", err, "scanned", scanned)
		return report, err
	}

	p.state.Store(int32(PruneDeleting))
	deleted, err := p.delete(ctx, expired)
	report.Deleted = deleted
	report.Elapsed = time.Since(start)
	metrics.PrunedEntriesTotal.WithLabelValues(p.namespace).Add(float64(deleted))

	if err != nil {
		logger.Error("prune aborted during delete",
			"error", err,
			"deleted", deleted,
			"expired", len(expired),
		)
		return report, err
	}

	logger.Info("prune finished",
		"scanned", report.Scanned,
		"deleted", report.Deleted,
		"elapsed", report.Elapsed,
	)
	return report, nil
}

// scan pages through the namespace and collects ids older than the cutoff.
// It never holds more than the id list in memory.
func (p *Pruner) scan(ctx context.Context, cutoff time.Time) ([]uint64, int, error) {
	var expired []uint64
	scanned := 0
	cursor := ""

	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return expired, scanned, err
		}

		entries, next, err := p.store.Scroll(ctx, p.namespace, cursor, p.pageSize)
		if err != nil {
			return expired, scanned, NewIndexError(p.namespace, "scroll", err)
		}

		scanned += len(entries)
		for _, e := range entries {
			if e.Payload.CreatedAt < cutoff.Unix() {
				expired = append(expired, e.ID)
			}
		}

		if next == "" {
			return expired, scanned, nil
		}
		cursor = next
	}
}

func (p *Pruner) delete(ctx context.Context, ids []uint64) (int, error) {
	deleted := 0

	for len(ids) > 0 {
		batch := ids
		if len(batch) > p.pageSize {
			batch = batch[:p.pageSize]
		}
		ids = ids[len(batch):]

		if err := p.limiter.Wait(ctx); err != nil {
			return deleted, err
		}
		if err := p.store.DeleteByIDs(ctx, p.namespace, batch); err != nil {
			return deleted, NewIndexError(p.namespace, "delete", err)
		}
		deleted += len(batch)
	}

	return deleted, nil
}

// State returns the job's current lifecycle state.
func (p *Pruner) State() PruneState {
	return PruneState(p.state.Load())
}

// Start runs sweeps on a fixed interval until ctx is canceled. A failed
// sweep is logged and retried on the next tick.
func (p *Pruner) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := p.Run(ctx); err != nil && err != ErrPruneInProgress {
					p.logger.Error("scheduled prune failed", "error", err)
				}
			}
		}
	}()
}
