package validate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rmax-ai/netlord/pkg/store"
)

// Election designates the single writer when several daemon instances share
// an archive. Only the leader accepts patch submissions; followers serve
// reads and redirect mutations.
type Election struct {
	store     store.LeaseStore
	holderID  string
	leaseName string
	ttl       time.Duration

	onPromote func()
	onDemote  func()

	isLeader bool
	mu       sync.RWMutex

	ticker *time.Ticker
	stopCh chan struct{}
}

// NewElection creates an Election over a lease store.
func NewElection(ls store.LeaseStore, holderID, leaseName string, ttl time.Duration, onPromote, onDemote func()) *Election {
	return &Election{
		store:     ls,
		holderID:  holderID,
		leaseName: leaseName,
		ttl:       ttl,
		onPromote: onPromote,
		onDemote:  onDemote,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the background election loop.
func (e *Election) Start(ctx context.Context) {
	e.ticker = time.NewTicker(e.ttl / 2)
	go func() {
		defer e.ticker.Stop()
		for {
			select {
			case <-e.ticker.C:
				e.attempt(ctx)
			case <-e.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	slog.Info("election started", "holderID", e.holderID, "leaseName", e.leaseName)
}

// Stop stops the election loop and releases the lease if currently leader.
func (e *Election) Stop(ctx context.Context) {
	close(e.stopCh)
	e.mu.Lock()
	wasLeader := e.isLeader
	e.mu.Unlock()
	if wasLeader {
		if err := e.store.Release(ctx, e.leaseName, e.holderID); err != nil {
			slog.Error("failed to release lease on stop", "error", err, "holderID", e.holderID)
		} else {
			slog.Info("lease released on stop", "holderID", e.holderID)
		}
	}
	slog.Info("election stopped", "holderID", e.holderID)
}

// IsLeader returns true if this instance currently holds the writer lease.
func (e *Election) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

func (e *Election) attempt(ctx context.Context) {
	e.mu.Lock()
	wasLeader := e.isLeader
	e.mu.Unlock()

	var newLeader bool
	var err error

	if wasLeader {
		err = e.store.Renew(ctx, e.leaseName, e.holderID, e.ttl)
		if err != nil {
			slog.Warn("failed to renew lease", "error", err, "holderID", e.holderID)
			newLeader = false
		} else {
			newLeader = true
		}
	} else {
		newLeader, err = e.store.Acquire(ctx, e.leaseName, e.holderID, e.ttl)
		if err != nil {
			slog.Warn("failed to acquire lease", "error", err, "holderID", e.holderID)
			newLeader = false
		} else if newLeader {
			slog.Info("lease acquired", "holderID", e.holderID, "leaseName", e.leaseName)
		}
	}

	e.mu.Lock()
	e.isLeader = newLeader
	e.mu.Unlock()

	if !wasLeader && newLeader {
		if e.onPromote != nil {
			e.onPromote()
		}
		slog.Info("promoted to writer", "holderID", e.holderID)
	} else if wasLeader && !newLeader {
		if e.onDemote != nil {
			e.onDemote()
		}
		slog.Info("demoted from writer", "holderID", e.holderID)
	}
}
