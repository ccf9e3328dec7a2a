// Package store implements the Reference Store: a durable record of
// which (integration, kind, name, revision) tuples have already been
// scanned and uploaded, plus the last observed toggle state used to
// detect an import_branches/import_tags flip.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/fossas/broker/domain"
	"github.com/fossas/broker/internal/brokererr"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the Reference Store contract.
type Store interface {
	HasScanned(ctx context.Context, integrationID string, kind domain.RefKind, name, revision string) (bool, error)
	RecordScanned(ctx context.Context, rec domain.ScanRecord) error
	ForgetKind(ctx context.Context, integrationID string, kind domain.RefKind) error
	PreviousToggles(ctx context.Context, integrationID string) (state domain.IntegrationToggleState, known bool, err error)
	SaveToggles(ctx context.Context, state domain.IntegrationToggleState) error
	Close() error
}

// SQLite implements Store over an embedded SQLite database. All access
// goes through one connection (SetMaxOpenConns(1)), so writes are
// serialized at the driver level; reads are serialized on that same
// connection too and do not run concurrently.
type SQLite struct {
	db *sql.DB
}

// Open creates (if absent) and opens the database at path, applying
// all pending migrations before returning.
func Open(ctx context.Context, path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, brokererr.New(brokererr.KindMigration, "store.open", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, brokererr.New(brokererr.KindMigration, "store.migrate", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		filename   TEXT NOT NULL UNIQUE,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var count int
		row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE filename = ?`, name)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("checking migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}
		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO schema_migrations (filename, applied_at) VALUES (?, ?)`,
			name, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		slog.Info("applied migration", "file", name)
	}
	return nil
}

func (s *SQLite) HasScanned(ctx context.Context, integrationID string, kind domain.RefKind, name, revision string) (bool, error) {
	var count int
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scan_records WHERE integration_id = ? AND kind = ? AND name = ? AND revision = ?`,
		integrationID, string(kind), name, revision)
	if err := row.Scan(&count); err != nil {
		return false, brokererr.New(brokererr.KindStorage, "store.has_scanned", err)
	}
	return count > 0, nil
}

// RecordScanned is durable before returning, in a single transaction
// per upload acknowledgement.
func (s *SQLite) RecordScanned(ctx context.Context, rec domain.ScanRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return brokererr.New(brokererr.KindStorage, "store.record_scanned.begin", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO scan_records (integration_id, kind, name, revision, uploaded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.IntegrationID, string(rec.Kind), rec.Name, rec.Revision, rec.UploadedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return brokererr.New(brokererr.KindStorage, "store.record_scanned.insert", err)
	}
	if err := tx.Commit(); err != nil {
		return brokererr.New(brokererr.KindStorage, "store.record_scanned.commit", err)
	}
	return nil
}

// ForgetKind removes all ScanRecords for one integration/kind, used on
// a true→false toggle flip.
func (s *SQLite) ForgetKind(ctx context.Context, integrationID string, kind domain.RefKind) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM scan_records WHERE integration_id = ? AND kind = ?`,
		integrationID, string(kind))
	if err != nil {
		return brokererr.New(brokererr.KindStorage, "store.forget_kind", err)
	}
	return nil
}

func (s *SQLite) PreviousToggles(ctx context.Context, integrationID string) (domain.IntegrationToggleState, bool, error) {
	var branches, tags int
	row := s.db.QueryRowContext(ctx,
		`SELECT import_branches, import_tags FROM integration_toggles WHERE integration_id = ?`,
		integrationID)
	err := row.Scan(&branches, &tags)
	if err == sql.ErrNoRows {
		return domain.IntegrationToggleState{}, false, nil
	}
	if err != nil {
		return domain.IntegrationToggleState{}, false, brokererr.New(brokererr.KindStorage, "store.previous_toggles", err)
	}
	return domain.IntegrationToggleState{
		IntegrationID:  integrationID,
		ImportBranches: branches != 0,
		ImportTags:     tags != 0,
	}, true, nil
}

func (s *SQLite) SaveToggles(ctx context.Context, state domain.IntegrationToggleState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO integration_toggles (integration_id, import_branches, import_tags)
		 VALUES (?, ?, ?)
		 ON CONFLICT(integration_id) DO UPDATE SET import_branches = excluded.import_branches, import_tags = excluded.import_tags`,
		state.IntegrationID, boolToInt(state.ImportBranches), boolToInt(state.ImportTags))
	if err != nil {
		return brokererr.New(brokererr.KindStorage, "store.save_toggles", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
