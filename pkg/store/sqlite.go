package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store manages the SQLite connection and schema.
type Store struct {
	db *sql.DB
}

// NewStore initializes the SQLite database connection.
// It enables WAL mode for concurrency and durability.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	// Versions and reports store the canonical JSON payload as a blob with
	// the fields needed for listing denormalized into columns.
	query := `
	CREATE TABLE IF NOT EXISTS versions (
		version INTEGER PRIMARY KEY,
		ts_committed DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		namespace TEXT,
		node_count INTEGER NOT NULL,
		edge_count INTEGER NOT NULL,
		payload JSON NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL,
		rule_set TEXT NOT NULL,
		ts_run DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		valid INTEGER NOT NULL,
		payload JSON NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_version ON reports(version);

	CREATE TABLE IF NOT EXISTS webhooks (
		webhook_id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		secret TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS system_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leases (
		name TEXT PRIMARY KEY,
		holder_id TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		version INTEGER NOT NULL
	);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// SaveVersion archives a committed graph version. Idempotent per version
// number: re-archiving the same version replaces the row.
func (s *Store) SaveVersion(ctx context.Context, rec *VersionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO versions (version, ts_committed, namespace, node_count, edge_count, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Version, rec.TsCommitted.UTC(), rec.Namespace, rec.NodeCount, rec.EdgeCount, []byte(rec.Payload))
	if err != nil {
		return fmt.Errorf("failed to save version %d: %w", rec.Version, err)
	}
	return nil
}

// GetVersion loads an archived version by number.
func (s *Store) GetVersion(ctx context.Context, version int64) (*VersionRecord, error) {
	rec := &VersionRecord{}
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT version, ts_committed, namespace, node_count, edge_count, payload
		FROM versions WHERE version = ?
	`, version).Scan(&rec.Version, &rec.TsCommitted, &rec.Namespace, &rec.NodeCount, &rec.EdgeCount, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get version %d: %w", version, err)
	}
	rec.Payload = json.RawMessage(payload)
	return rec, nil
}

// GetLatestVersion loads the newest archived version, or ErrNotFound when the
// archive is empty.
func (s *Store) GetLatestVersion(ctx context.Context) (*VersionRecord, error) {
	rec := &VersionRecord{}
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT version, ts_committed, namespace, node_count, edge_count, payload
		FROM versions ORDER BY version DESC LIMIT 1
	`).Scan(&rec.Version, &rec.TsCommitted, &rec.Namespace, &rec.NodeCount, &rec.EdgeCount, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	rec.Payload = json.RawMessage(payload)
	return rec, nil
}

// ListVersions returns version metadata (payload omitted), newest first.
func (s *Store) ListVersions(ctx context.Context, limit int) ([]*VersionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, ts_committed, namespace, node_count, edge_count
		FROM versions ORDER BY version DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var out []*VersionRecord
	for rows.Next() {
		rec := &VersionRecord{}
		if err := rows.Scan(&rec.Version, &rec.TsCommitted, &rec.Namespace, &rec.NodeCount, &rec.EdgeCount); err != nil {
			return nil, fmt.Errorf("failed to scan version row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneVersions deletes all but the newest keep versions. Returns the number
// of rows removed. The retention policy is a resource limit, not a
// correctness requirement.
func (s *Store) PruneVersions(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM versions WHERE version < (
			SELECT COALESCE(MAX(version), 0) - ? + 1 FROM versions
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune versions: %w", err)
	}
	return res.RowsAffected()
}

// SaveReport archives a violation report.
func (s *Store) SaveReport(ctx context.Context, rec *ReportRecord) error {
	valid := 0
	if rec.Valid {
		valid = 1
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (version, rule_set, ts_run, valid, payload)
		VALUES (?, ?, ?, ?, ?)
	`, rec.Version, rec.RuleSet, rec.TsRun.UTC(), valid, []byte(rec.Payload))
	if err != nil {
		return fmt.Errorf("failed to save report for version %d: %w", rec.Version, err)
	}
	rec.ID, err = res.LastInsertId()
	return err
}

// GetLatestReport loads the newest report, optionally filtered by rule set.
func (s *Store) GetLatestReport(ctx context.Context, ruleSet string) (*ReportRecord, error) {
	query := `
		SELECT id, version, rule_set, ts_run, valid, payload
		FROM reports
	`
	args := []any{}
	if ruleSet != "" {
		query += ` WHERE rule_set = ?`
		args = append(args, ruleSet)
	}
	query += ` ORDER BY id DESC LIMIT 1`

	rec := &ReportRecord{}
	var payload []byte
	var valid int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&rec.ID, &rec.Version, &rec.RuleSet, &rec.TsRun, &valid, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}
	rec.Valid = valid == 1
	rec.Payload = json.RawMessage(payload)
	return rec, nil
}

// ListReportsAfter returns reports with id greater than afterID, oldest
// first. The dispatcher uses this to page through undelivered reports.
func (s *Store) ListReportsAfter(ctx context.Context, afterID int64, limit int) ([]*ReportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version, rule_set, ts_run, valid, payload
		FROM reports WHERE id > ? ORDER BY id ASC LIMIT ?
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var out []*ReportRecord
	for rows.Next() {
		rec := &ReportRecord{}
		var payload []byte
		var valid int
		if err := rows.Scan(&rec.ID, &rec.Version, &rec.RuleSet, &rec.TsRun, &valid, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		rec.Valid = valid == 1
		rec.Payload = json.RawMessage(payload)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RegisterWebhook stores a webhook endpoint.
func (s *Store) RegisterWebhook(ctx context.Context, cfg *WebhookConfig) error {
	active := 0
	if cfg.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhooks (webhook_id, url, secret, created_at, active)
		VALUES (?, ?, ?, ?, ?)
	`, cfg.WebhookID, cfg.URL, cfg.Secret, cfg.CreatedAt.UTC(), active)
	if err != nil {
		return fmt.Errorf("failed to register webhook: %w", err)
	}
	return nil
}

// ListWebhooks returns all registered webhooks.
func (s *Store) ListWebhooks(ctx context.Context) ([]*WebhookConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT webhook_id, url, secret, created_at, active FROM webhooks
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	var out []*WebhookConfig
	for rows.Next() {
		cfg := &WebhookConfig{}
		var active int
		if err := rows.Scan(&cfg.WebhookID, &cfg.URL, &cfg.Secret, &cfg.CreatedAt, &active); err != nil {
			return nil, fmt.Errorf("failed to scan webhook row: %w", err)
		}
		cfg.Active = active == 1
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// DeleteWebhook removes a webhook by id.
func (s *Store) DeleteWebhook(ctx context.Context, webhookID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM webhooks WHERE webhook_id = ?`, webhookID)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

// GetSystemState reads a system state value by key.
func (s *Store) GetSystemState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM system_state WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get system state %q: %w", key, err)
	}
	return value, nil
}

// SetSystemState writes a system state value.
func (s *Store) SetSystemState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO system_state (key, value) VALUES (?, ?)
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set system state %q: %w", key, err)
	}
	return nil
}
