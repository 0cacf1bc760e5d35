package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is the default Store backed by a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the history database at path and
// applies pending schema migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// modernc sqlite is single-writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	drv, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// RecordAdmitted implements Store.
func (s *SQLiteStore) RecordAdmitted(ctx context.Context, rec AdmittedRecord) error {
	at := rec.AdmittedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admitted_messages (conversation, sender, fingerprint, text, admitted_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Conversation, rec.Sender, rec.Fingerprint, rec.Text, at.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record admitted message: %w", err)
	}
	return nil
}

// RecordOutcome implements Store.
func (s *SQLiteStore) RecordOutcome(ctx context.Context, rec OutcomeRecord) error {
	at := rec.CompletedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delivery_outcomes (conversation, fingerprint, success, attempts, result_text, failure_kind, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Conversation, rec.Fingerprint, rec.Success, rec.Attempts, rec.ResultText, rec.FailureKind, at.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record delivery outcome: %w", err)
	}
	return nil
}

// Stats implements Store.
func (s *SQLiteStore) Stats(ctx context.Context) ([]ConversationStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.conversation,
		        COUNT(DISTINCT m.id),
		        COUNT(DISTINCT CASE WHEN o.success = 1 THEN o.id END),
		        COUNT(DISTINCT CASE WHEN o.success = 0 THEN o.id END)
		 FROM admitted_messages m
		 LEFT JOIN delivery_outcomes o ON o.fingerprint = m.fingerprint AND o.conversation = m.conversation
		 GROUP BY m.conversation
		 ORDER BY m.conversation`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var out []ConversationStats
	for rows.Next() {
		var st ConversationStats
		if err := rows.Scan(&st.Conversation, &st.Admitted, &st.Delivered, &st.Failed); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
