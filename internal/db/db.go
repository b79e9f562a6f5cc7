package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"chat-sync/internal/logger"
)

// Connect opens the database and applies migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
            path TEXT PRIMARY KEY,
            collection TEXT NOT NULL,
            doc_id TEXT NOT NULL,
            data JSONB NOT NULL DEFAULT '{}'::jsonb,
            seq BIGSERIAL,
            create_time TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
            update_time TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
        );`,
		`CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection, create_time, seq);`,
		`CREATE OR REPLACE FUNCTION documents_notify() RETURNS trigger AS $$
        BEGIN
            IF TG_OP = 'DELETE' THEN
                PERFORM pg_notify('docstore_changes', OLD.path);
                RETURN OLD;
            END IF;
            PERFORM pg_notify('docstore_changes', NEW.path);
            RETURN NEW;
        END;
        $$ LANGUAGE plpgsql;`,
		`DROP TRIGGER IF EXISTS documents_notify_trigger ON documents;`,
		`CREATE TRIGGER documents_notify_trigger
            AFTER INSERT OR UPDATE OR DELETE ON documents
            FOR EACH ROW EXECUTE FUNCTION documents_notify();`,
		`CREATE TABLE IF NOT EXISTS blobs (
            path TEXT PRIMARY KEY,
            content_type TEXT NOT NULL,
            data BYTEA NOT NULL,
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	logger.Log.Info("database migrations applied")
	return nil
}
