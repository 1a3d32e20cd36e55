package validate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rmax-ai/netlord/pkg/store"
)

// memLeaseStore is an in-memory LeaseStore for election tests.
type memLeaseStore struct {
	mu     sync.Mutex
	leases map[string]*store.Lease
}

func newMemLeaseStore() *memLeaseStore {
	return &memLeaseStore{leases: make(map[string]*store.Lease)}
}

func (m *memLeaseStore) Acquire(ctx context.Context, name, holderID string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.leases[name]
	if ok && cur.HolderID != holderID && time.Now().Before(cur.ExpiresAt) {
		return false, nil
	}
	m.leases[name] = &store.Lease{Name: name, HolderID: holderID, ExpiresAt: time.Now().Add(ttl)}
	return true, nil
}

func (m *memLeaseStore) Renew(ctx context.Context, name, holderID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.leases[name]
	if !ok || cur.HolderID != holderID {
		return errors.New("lease lost")
	}
	cur.ExpiresAt = time.Now().Add(ttl)
	return nil
}

func (m *memLeaseStore) Release(ctx context.Context, name, holderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.leases[name]
	if ok && cur.HolderID == holderID {
		delete(m.leases, name)
	}
	return nil
}

func (m *memLeaseStore) Get(ctx context.Context, name string) (*store.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leases[name], nil
}

// steal hands the lease to another holder, simulating a failover race.
func (m *memLeaseStore) steal(name, holderID string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leases[name] = &store.Lease{Name: name, HolderID: holderID, ExpiresAt: time.Now().Add(ttl)}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestElectionPromotesSingleLeader(t *testing.T) {
	ls := newMemLeaseStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var promoted int
	var mu sync.Mutex
	onPromote := func() {
		mu.Lock()
		promoted++
		mu.Unlock()
	}

	a := NewElection(ls, "node-a", "writer", 40*time.Millisecond, onPromote, nil)
	b := NewElection(ls, "node-b", "writer", 40*time.Millisecond, onPromote, nil)
	a.Start(ctx)
	b.Start(ctx)
	defer a.Stop(ctx)
	defer b.Stop(ctx)

	waitFor(t, time.Second, func() bool { return a.IsLeader() || b.IsLeader() })
	if a.IsLeader() && b.IsLeader() {
		t.Fatal("two leaders at once")
	}

	mu.Lock()
	defer mu.Unlock()
	if promoted < 1 {
		t.Fatal("no promote callback fired")
	}
}

func TestElectionDemotesWhenLeaseStolen(t *testing.T) {
	ls := newMemLeaseStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	demoted := make(chan struct{}, 1)
	e := NewElection(ls, "node-a", "writer", 40*time.Millisecond, nil, func() {
		select {
		case demoted <- struct{}{}:
		default:
		}
	})
	e.Start(ctx)
	defer e.Stop(ctx)

	waitFor(t, time.Second, e.IsLeader)

	ls.steal("writer", "node-b", time.Minute)

	select {
	case <-demoted:
	case <-time.After(time.Second):
		t.Fatal("never demoted after losing the lease")
	}
	if e.IsLeader() {
		t.Fatal("still claims leadership after demotion")
	}
}

func TestElectionReleasesOnStop(t *testing.T) {
	ls := newMemLeaseStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := NewElection(ls, "node-a", "writer", 40*time.Millisecond, nil, nil)
	e.Start(ctx)
	waitFor(t, time.Second, e.IsLeader)

	e.Stop(ctx)

	lease, err := ls.Get(ctx, "writer")
	if err != nil {
		t.Fatal(err)
	}
	if lease != nil {
		t.Fatalf("lease still held after stop: %+v", lease)
	}
}
