// Package store persists canonical alerts and deduplication rules in a
// local SQLite database.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/alertbridge/graylog2alert-agent/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the SQLite connection.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at path, enables WAL mode, and
// applies any pending migrations.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting migration dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// StoredAlert is a persisted canonical alert row with dedup bookkeeping.
type StoredAlert struct {
	Fingerprint       string    `db:"fingerprint" json:"fingerprint"`
	AlertID           string    `db:"alert_id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Severity          string    `db:"severity" json:"severity"`
	Status            string    `db:"status" json:"status"`
	Description       string    `db:"description" json:"description,omitempty"`
	EventDefinitionID string    `db:"event_definition_id" json:"event_definition_id"`
	OriginContext     string    `db:"origin_context" json:"origin_context,omitempty"`
	Message           string    `db:"message" json:"message,omitempty"`
	LastReceived      string    `db:"last_received" json:"lastReceived"`
	FirstSeenAt       time.Time `db:"first_seen_at" json:"first_seen_at"`
	LastSeenAt        time.Time `db:"last_seen_at" json:"last_seen_at"`
	TimesSeen         int       `db:"times_seen" json:"times_seen"`
}

// UpsertAlert stores an alert keyed by fingerprint. A repeated
// fingerprint refreshes last_received and the seen counters instead of
// inserting a duplicate. Returns true when the alert was new.
func (s *Store) UpsertAlert(ctx context.Context, alert models.CanonicalAlert) (bool, error) {
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (
			fingerprint, alert_id, name, severity, status, description,
			event_definition_id, origin_context, message, last_received,
			first_seen_at, last_seen_at, times_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(fingerprint) DO UPDATE SET
			last_received = excluded.last_received,
			last_seen_at  = excluded.last_seen_at,
			times_seen    = alerts.times_seen + 1`,
		alert.Fingerprint, alert.ID, alert.Name, string(alert.Severity),
		string(alert.Status), alert.Description, alert.EventDefinitionID,
		alert.OriginContext, alert.Message, alert.LastReceived, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("upserting alert %s: %w", alert.Fingerprint, err)
	}

	// The upsert affects one row either way, so read back the counter to
	// tell insert from dedup update.
	var timesSeen int
	err = s.db.GetContext(ctx, &timesSeen,
		"SELECT times_seen FROM alerts WHERE fingerprint = ?", alert.Fingerprint)
	if err != nil {
		return false, fmt.Errorf("reading back alert %s: %w", alert.Fingerprint, err)
	}

	return timesSeen == 1, nil
}

// GetAlert returns the stored alert for a fingerprint, or nil.
func (s *Store) GetAlert(ctx context.Context, fingerprint string) (*StoredAlert, error) {
	var alert StoredAlert
	err := s.db.GetContext(ctx, &alert,
		"SELECT * FROM alerts WHERE fingerprint = ?", fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching alert %s: %w", fingerprint, err)
	}
	return &alert, nil
}

// ListAlerts returns the most recently seen alerts, newest first.
func (s *Store) ListAlerts(ctx context.Context, limit int) ([]StoredAlert, error) {
	alerts := []StoredAlert{}
	err := s.db.SelectContext(ctx, &alerts,
		"SELECT * FROM alerts ORDER BY last_seen_at DESC, fingerprint LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	return alerts, nil
}

// DedupRule records the fingerprint field set for a provider instance
// and whether its webhook has been provisioned.
type DedupRule struct {
	ID                string    `db:"id"`
	ProviderID        string    `db:"provider_id"`
	FingerprintFields string    `db:"fingerprint_fields"`
	IsProvisioned     bool      `db:"is_provisioned"`
	CreatedAt         time.Time `db:"created_at"`
}

// EnsureDedupRule creates the dedup rule for a provider if it does not
// exist yet. Existing rules are left untouched.
func (s *Store) EnsureDedupRule(ctx context.Context, providerID string, fields []string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dedup_rules (id, provider_id, fingerprint_fields, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(provider_id) DO NOTHING`,
		uuid.NewString(), providerID, strings.Join(fields, ","), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("ensuring dedup rule for %s: %w", providerID, err)
	}
	return nil
}

// MarkProvisioned flags the provider's dedup rule as provisioned.
func (s *Store) MarkProvisioned(ctx context.Context, providerID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE dedup_rules SET is_provisioned = 1 WHERE provider_id = ?", providerID)
	if err != nil {
		return fmt.Errorf("marking %s provisioned: %w", providerID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("no dedup rule for provider %s", providerID)
	}
	return nil
}

// GetDedupRule returns the dedup rule for a provider, or nil.
func (s *Store) GetDedupRule(ctx context.Context, providerID string) (*DedupRule, error) {
	var rule DedupRule
	err := s.db.GetContext(ctx, &rule,
		"SELECT * FROM dedup_rules WHERE provider_id = ?", providerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching dedup rule for %s: %w", providerID, err)
	}
	return &rule, nil
}
