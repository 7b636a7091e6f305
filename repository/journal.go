package repository

import (
	"context"
	"errors"

	"github.com/bartossh/Federation/federation"
)

// Append writes the encoded event to the journal.
func (db DataBase) Append(ctx context.Context, ev *federation.Event) error {
	raw, err := ev.Encode()
	if err != nil {
		return err
	}
	var txID []byte
	if ev.Kind.IsProposal() {
		txID = ev.TxID[:]
	}
	_, err = db.inner.ExecContext(ctx,
		`INSERT INTO federation_events (kind, tx_id, caller, created_at, data) VALUES ($1, $2, $3, $4, $5)`,
		ev.Kind.String(), txID, string(ev.Caller), ev.CreatedAt.UnixMicro(), raw)
	if err != nil {
		return errors.Join(ErrInsertFailed, err)
	}
	return nil
}

// ReadAll reads all journal events in the order they were appended.
func (db DataBase) ReadAll(ctx context.Context) ([]federation.Event, error) {
	return db.readEvents(ctx, `SELECT data FROM federation_events ORDER BY id ASC`)
}

// ReadTransactionHistory reads all events of the proposal in the order they were appended.
// History survives failing the proposal so it can be used for audit.
func (db DataBase) ReadTransactionHistory(ctx context.Context, id federation.TxID) ([]federation.Event, error) {
	return db.readEvents(ctx, `SELECT data FROM federation_events WHERE tx_id = $1 ORDER BY id ASC`, id[:])
}

func (db DataBase) readEvents(ctx context.Context, query string, args ...any) ([]federation.Event, error) {
	rows, err := db.inner.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Join(ErrSelectFailed, err)
	}
	defer rows.Close()

	var events []federation.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Join(ErrScanFailed, err)
		}
		ev, err := federation.DecodeEvent(raw)
		if err != nil {
			return nil, errors.Join(ErrUnmarshalFailed, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrSelectFailed, err)
	}
	return events, nil
}
