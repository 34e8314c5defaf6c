// Package stats persists filter events for later inspection.
package stats

import (
	"context"
	"database/sql"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/jingkaihe/pkgveil/internal/errx"
	"github.com/jingkaihe/pkgveil/pkg/api"
	"github.com/jingkaihe/pkgveil/pkg/decision"
	"github.com/jingkaihe/pkgveil/pkg/storedb"
)

const statsModule = "stats"

// timeLayout is fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func migrations() []storedb.Migration {
	return []storedb.Migration{
		{
			Version: 1,
			Name:    "create_filter_events",
			SQL: `
CREATE TABLE IF NOT EXISTS filter_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session TEXT NOT NULL DEFAULT '',
  caller TEXT NOT NULL,
  target TEXT NOT NULL,
  at TEXT NOT NULL,
  detail BLOB
);
CREATE INDEX IF NOT EXISTS idx_filter_events_caller ON filter_events(caller);
CREATE INDEX IF NOT EXISTS idx_filter_events_at ON filter_events(at);
`,
		},
	}
}

// eventDetail holds the event fields that are never queried on.
type eventDetail struct {
	UID      int    `cbor:"uid"`
	UserID   int    `cbor:"user"`
	Strategy string `cbor:"strategy,omitempty"`
}

// CallerTotal is the number of filtered queries attributed to a caller.
type CallerTotal struct {
	Caller string
	Count  int64
	Last   time.Time
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := storedb.Open(storedb.OpenOptions{
		Path:       path,
		Module:     statsModule,
		Migrations: migrations(),
	})
	if err != nil {
		return nil, errx.Wrap(ErrOpenStore, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(ctx context.Context, ev decision.FilterEvent) error {
	detail, err := cbor.Marshal(eventDetail{
		UID:      int(ev.UID),
		UserID:   ev.UserID,
		Strategy: ev.Strategy,
	})
	if err != nil {
		return errx.Wrap(ErrEncodeDetail, err)
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO filter_events(session, caller, target, at, detail) VALUES (?, ?, ?, ?, ?)`,
		ev.Session,
		ev.Caller,
		ev.Target,
		at.UTC().Format(timeLayout),
		detail,
	)
	if err != nil {
		return errx.With(ErrInsertEvent, " caller=%s target=%s: %w", ev.Caller, ev.Target, err)
	}
	return nil
}

// Count returns the total number of recorded events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM filter_events`).Scan(&n); err != nil {
		return 0, errx.Wrap(ErrQueryEvents, err)
	}
	return n, nil
}

// Totals returns per-caller counts, most filtered first.
func (s *Store) Totals(ctx context.Context) ([]CallerTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT caller, COUNT(*), MAX(at)
FROM filter_events
GROUP BY caller
ORDER BY COUNT(*) DESC, caller ASC`)
	if err != nil {
		return nil, errx.Wrap(ErrQueryEvents, err)
	}
	defer rows.Close()

	var totals []CallerTotal
	for rows.Next() {
		var (
			total CallerTotal
			last  string
		)
		if err := rows.Scan(&total.Caller, &total.Count, &last); err != nil {
			return nil, errx.Wrap(ErrQueryEvents, err)
		}
		total.Last, _ = time.Parse(timeLayout, last)
		totals = append(totals, total)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.Wrap(ErrQueryEvents, err)
	}
	return totals, nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]decision.FilterEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT session, caller, target, at, detail
FROM filter_events
ORDER BY id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, errx.Wrap(ErrQueryEvents, err)
	}
	defer rows.Close()

	var events []decision.FilterEvent
	for rows.Next() {
		var (
			ev     decision.FilterEvent
			at     string
			raw    []byte
			detail eventDetail
		)
		if err := rows.Scan(&ev.Session, &ev.Caller, &ev.Target, &at, &raw); err != nil {
			return nil, errx.Wrap(ErrQueryEvents, err)
		}
		if len(raw) > 0 {
			if err := cbor.Unmarshal(raw, &detail); err != nil {
				return nil, errx.Wrap(ErrDecodeDetail, err)
			}
		}
		ev.At, _ = time.Parse(timeLayout, at)
		ev.UID = api.UID(detail.UID)
		ev.UserID = detail.UserID
		ev.Strategy = detail.Strategy
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.Wrap(ErrQueryEvents, err)
	}
	return events, nil
}
