package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cosmic/internal/models"
	"github.com/desertthunder/cosmic/internal/rooms"
)

// RoomRepository implements [rooms.Store] on the rooms table.
//
// Expiry is an absolute unix millisecond timestamp refreshed on every write (and on touching
// reads); a row whose expires_at has passed behaves as missing.
type RoomRepository struct {
	db  *sql.DB
	ttl time.Duration
	now rooms.Clock
}

var _ rooms.Store = (*RoomRepository)(nil)

// NewRoomRepository creates a new [RoomRepository]. A nil clock uses [time.Now].
func NewRoomRepository(db *sql.DB, ttl time.Duration, now rooms.Clock) *RoomRepository {
	if ttl <= 0 {
		ttl = rooms.DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &RoomRepository{db: db, ttl: ttl, now: now}
}

func (r *RoomRepository) stamps() (now, expires int64) {
	t := r.now()
	return t.UnixMilli(), t.Add(r.ttl).UnixMilli()
}

// CreateIfAbsent inserts an empty room, or resets an expired one, in one statement.
func (r *RoomRepository) CreateIfAbsent(ctx context.Context, code string) (bool, error) {
	now, expires := r.stamps()
	query := `
		INSERT INTO rooms (code, members, created_at, expires_at) VALUES (?, '[]', ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			members = '[]',
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
		WHERE rooms.expires_at <= ?
	`

	res, err := r.db.ExecContext(ctx, query, code, now, expires, now)
	if err != nil {
		return false, fmt.Errorf("failed to create room: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to create room: %w", err)
	}
	return n == 1, nil
}

// UpsertMember reads, merges and writes the member list in one transaction.
func (r *RoomRepository) UpsertMember(ctx context.Context, code string, member models.Member) ([]models.Member, error) {
	var members []models.Member

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		now, expires := r.stamps()

		var raw string
		err := tx.QueryRowContext(ctx, `SELECT members FROM rooms WHERE code = ? AND expires_at > ?`, code, now).Scan(&raw)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to query room: %w", err)
		}

		members = rooms.ReplaceMember(rooms.DecodeMembers([]byte(raw)), member)
		body, err := rooms.EncodeMembers(members)
		if err != nil {
			return fmt.Errorf("failed to encode members: %w", err)
		}

		query := `
			INSERT INTO rooms (code, members, created_at, expires_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(code) DO UPDATE SET
				members = excluded.members,
				expires_at = excluded.expires_at
		`
		if _, err := tx.ExecContext(ctx, query, code, string(body), now, expires); err != nil {
			return fmt.Errorf("failed to write room: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// ReadMembers returns the live members of code, extending the expiry when touch is set and the
// room is not empty.
func (r *RoomRepository) ReadMembers(ctx context.Context, code string, touch bool) ([]models.Member, error) {
	now, expires := r.stamps()

	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT members FROM rooms WHERE code = ? AND expires_at > ?`, code, now).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []models.Member{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query room: %w", err)
	}

	members := rooms.DecodeMembers([]byte(raw))
	if touch && len(members) > 0 {
		if _, err := r.db.ExecContext(ctx, `UPDATE rooms SET expires_at = ? WHERE code = ?`, expires, code); err != nil {
			return nil, fmt.Errorf("failed to touch room: %w", err)
		}
	}
	return members, nil
}

// Sweep deletes expired rooms and returns how many were removed.
func (r *RoomRepository) Sweep(ctx context.Context) (int64, error) {
	now, _ := r.stamps()
	res, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep rooms: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of live rooms.
func (r *RoomRepository) Count(ctx context.Context) (int, error) {
	now, _ := r.stamps()
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE expires_at > ?`, now).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rooms: %w", err)
	}
	return n, nil
}
