package devsession

import (
	"context"
	"time"

	"projects-factory/internal/store"
)

// Save writes s to the state store's dev snapshot table.
func Save(ctx context.Context, st store.Store, reason string, s Session, now time.Time) error {
	b, err := Encode(s)
	if err != nil {
		return err
	}
	_, err = st.SaveDevSnapshot(ctx, reason, b, now)
	return err
}

// LoadRecent returns the newest persisted session when it is younger than
// maxAge. A zero maxAge disables resuming. Undecodable rows count as missing.
func LoadRecent(ctx context.Context, st store.Store, maxAge time.Duration, now time.Time) (Session, bool, error) {
	if maxAge <= 0 {
		return Session{}, false, nil
	}
	rec, ok, err := st.LatestDevSnapshot(ctx)
	if err != nil || !ok {
		return Session{}, false, err
	}
	if now.Sub(rec.CreatedAt) > maxAge {
		return Session{}, false, nil
	}
	s, err := Decode(rec.Payload)
	if err != nil {
		return Session{}, false, nil
	}
	return s, true, nil
}
