package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// keepDevSnapshots bounds the dev_snapshots table; older rows are pruned on save.
const keepDevSnapshots = 20

type DevSnapshotRecord struct {
	ID        int64
	Reason    string
	Payload   []byte
	CreatedAt time.Time
}

// SaveDevSnapshot stores an opaque snapshot payload and prunes old rows.
func (s Store) SaveDevSnapshot(ctx context.Context, reason string, payload []byte, now time.Time) (int64, error) {
	if len(payload) == 0 {
		return 0, errors.New("save dev snapshot: empty payload")
	}
	db, err := s.openSQLite(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO dev_snapshots(reason, payload, created_at_unixms) VALUES(?, ?, ?)`,
		strings.TrimSpace(reason), string(payload), now.UTC().UnixMilli())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM dev_snapshots WHERE id NOT IN (SELECT id FROM dev_snapshots ORDER BY id DESC LIMIT ?)`,
		keepDevSnapshots); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// LatestDevSnapshot returns the newest snapshot, ok=false when none exist.
func (s Store) LatestDevSnapshot(ctx context.Context) (DevSnapshotRecord, bool, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return DevSnapshotRecord{}, false, err
	}
	defer db.Close()

	var (
		rec     DevSnapshotRecord
		payload string
		ms      int64
	)
	err = db.QueryRowContext(ctx,
		`SELECT id, reason, payload, created_at_unixms FROM dev_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&rec.ID, &rec.Reason, &payload, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return DevSnapshotRecord{}, false, nil
	}
	if err != nil {
		return DevSnapshotRecord{}, false, err
	}
	rec.Payload = []byte(payload)
	rec.CreatedAt = time.UnixMilli(ms).UTC()
	return rec, true, nil
}

func (s Store) CountDevSnapshots(ctx context.Context) (int, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dev_snapshots`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
