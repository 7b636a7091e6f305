package repository

import (
	"context"
	"errors"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS federation_events (
		id BIGSERIAL PRIMARY KEY,
		kind VARCHAR(32) NOT NULL,
		tx_id BYTEA,
		caller VARCHAR(128) NOT NULL,
		created_at BIGINT NOT NULL,
		data BYTEA NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS federation_events_tx_id_idx ON federation_events (tx_id)`,
	`CREATE TABLE IF NOT EXISTS logs (
		id BIGSERIAL PRIMARY KEY,
		level VARCHAR(10) NOT NULL,
		msg TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE OR REPLACE FUNCTION notify_federation_event() RETURNS TRIGGER AS $$
	BEGIN
		PERFORM pg_notify('federation_events', NEW.id::TEXT);
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS federation_events_notify ON federation_events`,
	`CREATE TRIGGER federation_events_notify AFTER INSERT ON federation_events
		FOR EACH ROW EXECUTE PROCEDURE notify_federation_event()`,
}

// RunMigration creates the journal and logs tables if they do not exist.
func (db DataBase) RunMigration(ctx context.Context) error {
	tx, err := db.inner.BeginTx(ctx, nil)
	if err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	for _, m := range migrations {
		if _, err := tx.ExecContext(ctx, m); err != nil {
			tx.Rollback()
			return errors.Join(ErrMigrationFailed, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}
