package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestVersionRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.GetLatestVersion(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty archive: %v, want ErrNotFound", err)
	}

	payload := json.RawMessage(`{"version":1,"nodes":[{"id":"net:GND","kind":"net"}],"edges":[]}`)
	rec := &VersionRecord{
		Version:     1,
		TsCommitted: time.Now().UTC().Truncate(time.Second),
		Namespace:   "CIG",
		NodeCount:   1,
		EdgeCount:   0,
		Payload:     payload,
	}
	if err := s.SaveVersion(ctx, rec); err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}

	got, err := s.GetVersion(ctx, 1)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if got.Version != 1 || got.Namespace != "CIG" || got.NodeCount != 1 {
		t.Fatalf("record = %+v", got)
	}
	if string(got.Payload) != string(payload) {
		t.Fatalf("payload = %s", got.Payload)
	}

	if _, err := s.GetVersion(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing version: %v", err)
	}

	// Re-archiving the same version replaces, not duplicates.
	rec.NodeCount = 2
	if err := s.SaveVersion(ctx, rec); err != nil {
		t.Fatalf("SaveVersion again: %v", err)
	}
	got, _ = s.GetVersion(ctx, 1)
	if got.NodeCount != 2 {
		t.Fatalf("replace lost: %+v", got)
	}
}

func TestLatestAndListVersions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for n := int64(1); n <= 5; n++ {
		if err := s.SaveVersion(ctx, &VersionRecord{
			Version:     n,
			TsCommitted: time.Now().UTC(),
			NodeCount:   int(n),
			Payload:     json.RawMessage(`{}`),
		}); err != nil {
			t.Fatalf("SaveVersion %d: %v", n, err)
		}
	}

	latest, err := s.GetLatestVersion(ctx)
	if err != nil || latest.Version != 5 {
		t.Fatalf("latest = %+v, %v", latest, err)
	}

	list, err := s.ListVersions(ctx, 3)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(list) != 3 || list[0].Version != 5 || list[2].Version != 3 {
		t.Fatalf("list = %+v", list)
	}
	// Listings carry metadata only.
	if list[0].Payload != nil {
		t.Fatal("listing should omit payload")
	}
}

func TestPruneVersions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for n := int64(1); n <= 6; n++ {
		if err := s.SaveVersion(ctx, &VersionRecord{Version: n, TsCommitted: time.Now().UTC(), Payload: json.RawMessage(`{}`)}); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := s.PruneVersions(ctx, 2)
	if err != nil {
		t.Fatalf("PruneVersions: %v", err)
	}
	if removed != 4 {
		t.Fatalf("removed = %d, want 4", removed)
	}
	if _, err := s.GetVersion(ctx, 4); !errors.Is(err, ErrNotFound) {
		t.Fatalf("version 4 should be pruned: %v", err)
	}
	if _, err := s.GetVersion(ctx, 5); err != nil {
		t.Fatalf("version 5 should survive: %v", err)
	}
}

func TestReportArchive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.GetLatestReport(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty reports: %v", err)
	}

	for i, rs := range []string{"ERC-default", "all", "ERC-default"} {
		rec := &ReportRecord{
			Version: int64(i + 1),
			RuleSet: rs,
			TsRun:   time.Now().UTC(),
			Valid:   i%2 == 0,
			Payload: json.RawMessage(`{"violations":[]}`),
		}
		if err := s.SaveReport(ctx, rec); err != nil {
			t.Fatalf("SaveReport: %v", err)
		}
		if rec.ID == 0 {
			t.Fatal("SaveReport did not backfill the row id")
		}
	}

	latest, err := s.GetLatestReport(ctx, "")
	if err != nil || latest.Version != 3 {
		t.Fatalf("latest = %+v, %v", latest, err)
	}

	filtered, err := s.GetLatestReport(ctx, "all")
	if err != nil || filtered.Version != 2 {
		t.Fatalf("filtered = %+v, %v", filtered, err)
	}
}

func TestListReportsAfterPaging(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for n := int64(1); n <= 5; n++ {
		if err := s.SaveReport(ctx, &ReportRecord{
			Version: n, RuleSet: "all", TsRun: time.Now().UTC(), Valid: true,
			Payload: json.RawMessage(`{}`),
		}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.ListReportsAfter(ctx, 0, 2)
	if err != nil {
		t.Fatalf("ListReportsAfter: %v", err)
	}
	if len(page) != 2 || page[0].ID >= page[1].ID {
		t.Fatalf("page = %+v, want oldest first", page)
	}

	rest, err := s.ListReportsAfter(ctx, page[1].ID, 50)
	if err != nil {
		t.Fatalf("ListReportsAfter: %v", err)
	}
	if len(rest) != 3 {
		t.Fatalf("rest = %d rows", len(rest))
	}

	empty, err := s.ListReportsAfter(ctx, rest[2].ID, 50)
	if err != nil || len(empty) != 0 {
		t.Fatalf("past the end: %v, %v", empty, err)
	}
}

func TestWebhookCRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	cfg := &WebhookConfig{
		WebhookID: "wh_1",
		URL:       "https://example.com/hook",
		Secret:    "s3cret",
		CreatedAt: time.Now().UTC(),
		Active:    true,
	}
	if err := s.RegisterWebhook(ctx, cfg); err != nil {
		t.Fatalf("RegisterWebhook: %v", err)
	}
	// Duplicate ids are rejected by the primary key.
	if err := s.RegisterWebhook(ctx, cfg); err == nil {
		t.Fatal("expected duplicate webhook_id error")
	}

	hooks, err := s.ListWebhooks(ctx)
	if err != nil || len(hooks) != 1 {
		t.Fatalf("hooks = %+v, %v", hooks, err)
	}
	if hooks[0].Secret != "s3cret" || !hooks[0].Active {
		t.Fatalf("hook = %+v", hooks[0])
	}

	if err := s.DeleteWebhook(ctx, "wh_1"); err != nil {
		t.Fatalf("DeleteWebhook: %v", err)
	}
	hooks, _ = s.ListWebhooks(ctx)
	if len(hooks) != 0 {
		t.Fatalf("hooks after delete = %+v", hooks)
	}
}

func TestSystemState(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.GetSystemState(ctx, "cursor"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing key: %v", err)
	}

	if err := s.SetSystemState(ctx, "cursor", "41"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSystemState(ctx, "cursor", "42"); err != nil {
		t.Fatal(err)
	}
	v, err := s.GetSystemState(ctx, "cursor")
	if err != nil || v != "42" {
		t.Fatalf("value = %q, %v", v, err)
	}
}

func TestLeaseLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	ok, err := s.Acquire(ctx, "writer", "node-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}

	// A second holder cannot take an unexpired lease.
	ok, err = s.Acquire(ctx, "writer", "node-b", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if ok {
		t.Fatal("node-b stole an unexpired lease")
	}

	// The holder can re-acquire (renew through Acquire).
	ok, err = s.Acquire(ctx, "writer", "node-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("re-acquire = %v, %v", ok, err)
	}

	if err := s.Renew(ctx, "writer", "node-a", time.Minute); err != nil {
		t.Fatalf("Renew: %v", err)
	}
	// Renewing a lease you do not hold fails.
	if err := s.Renew(ctx, "writer", "node-b", time.Minute); err == nil {
		t.Fatal("node-b renewed a lease it does not hold")
	}

	lease, err := s.Get(ctx, "writer")
	if err != nil || lease == nil {
		t.Fatalf("Get = %+v, %v", lease, err)
	}
	if lease.HolderID != "node-a" || lease.Version < 2 {
		t.Fatalf("lease = %+v", lease)
	}

	if err := s.Release(ctx, "writer", "node-a"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	lease, err = s.Get(ctx, "writer")
	if err != nil || lease != nil {
		t.Fatalf("lease after release = %+v, %v", lease, err)
	}
}

func TestLeaseTakeoverAfterExpiry(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	ok, err := s.Acquire(ctx, "writer", "node-a", 10*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("acquire = %v, %v", ok, err)
	}
	time.Sleep(20 * time.Millisecond)

	ok, err = s.Acquire(ctx, "writer", "node-b", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !ok {
		t.Fatal("expired lease not taken over")
	}

	lease, _ := s.Get(ctx, "writer")
	if lease.HolderID != "node-b" {
		t.Fatalf("lease = %+v", lease)
	}
}
