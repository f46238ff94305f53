package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
)

// ReservationRepo provides storage for reservations. Occupancy is
// guarded by the uq_reservations_occupancy key over a generated column
// that only carries the table id while the reservation is pending or
// confirmed, so a duplicate occupying row fails with ErrSlotTaken. All
// timestamp fields are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, user_id, restaurant_id, table_id,
	DATE_FORMAT(reservation_date, '%Y-%m-%d'), TIME_FORMAT(reservation_time, '%H:%i'),
	party_size, special_requests, status, created_at, updated_at`

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var r model.Reservation
	var table sql.NullInt64
	var requests sql.NullString
	var status string
	if err := row.Scan(&r.ID, &r.UserID, &r.RestaurantID, &table, &r.Date, &r.Time,
		&r.PartySize, &requests, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if table.Valid {
		id := uint64(table.Int64)
		r.TableID = &id
	}
	r.SpecialRequests = nullString(requests)
	r.Status = model.Status(status)
	return &r, nil
}

// Create inserts a reservation and populates its generated ID.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (user_id, restaurant_id, table_id, reservation_date, reservation_time,
	           party_size, special_requests, status, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q, res.UserID, res.RestaurantID, res.TableID, res.Date, res.Time,
		res.PartySize, res.SpecialRequests, string(res.Status), res.CreatedAt.UTC(), res.UpdatedAt.UTC())
	if err != nil {
		if isDuplicate(err) {
			return ErrSlotTaken
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// GetByID returns a reservation or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return res, nil
}

// ListByUser lists a user's reservations, latest slot first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64, f model.ReservationFilter) ([]model.Reservation, error) {
	q, args := filterQuery(`user_id = ?`, userID, f)
	q += ` ORDER BY reservation_date DESC, reservation_time DESC, id DESC`
	return r.query(ctx, q, args...)
}

// ListByRestaurant lists a restaurant's reservations, earliest slot first.
func (r *ReservationRepo) ListByRestaurant(ctx context.Context, restaurantID uint64, f model.ReservationFilter) ([]model.Reservation, error) {
	q, args := filterQuery(`restaurant_id = ?`, restaurantID, f)
	q += ` ORDER BY reservation_date, reservation_time, id`
	return r.query(ctx, q, args...)
}

// ListUpcoming lists pending and confirmed reservations dated today or
// later across all restaurants.
func (r *ReservationRepo) ListUpcoming(ctx context.Context, today string, limit int) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
	      WHERE status IN ('pending', 'confirmed') AND reservation_date >= ?
	      ORDER BY reservation_date, reservation_time, id LIMIT ?`
	return r.query(ctx, q, today, limit)
}

// OccupiedTableIDs returns the tables held by occupying reservations at
// the slot, skipping reservation excludeID.
func (r *ReservationRepo) OccupiedTableIDs(ctx context.Context, restaurantID uint64, slot model.Slot, excludeID uint64) (map[uint64]struct{}, error) {
	const q = `SELECT occupying_table_id FROM reservations
	           WHERE restaurant_id = ? AND reservation_date = ? AND reservation_time = ?
	             AND occupying_table_id IS NOT NULL AND id <> ?`
	rows, err := r.db.QueryContext(ctx, q, restaurantID, slot.Date, slot.Time, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]struct{})
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// UpdateFields writes slot, party size, requests and table together. The
// statement only matches an occupying row that still carries upd.Prior.
func (r *ReservationRepo) UpdateFields(ctx context.Context, id uint64, upd model.ReservationUpdate) (*model.Reservation, error) {
	const q = `UPDATE reservations
	           SET reservation_date = ?, reservation_time = ?, party_size = ?, special_requests = ?,
	               table_id = ?, updated_at = ?
	           WHERE id = ? AND status IN ('pending', 'confirmed')
	             AND reservation_date = ? AND reservation_time = ? AND party_size = ?
	             AND table_id <=> ? AND special_requests <=> ?`
	p := upd.Prior
	res, err := r.db.ExecContext(ctx, q, upd.Slot.Date, upd.Slot.Time, upd.PartySize, upd.SpecialRequests,
		upd.TableID, upd.UpdatedAt.UTC(), id,
		p.Slot.Date, p.Slot.Time, p.PartySize, p.TableID, p.SpecialRequests)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	want := model.ReservationState{Slot: upd.Slot, PartySize: upd.PartySize, SpecialRequests: upd.SpecialRequests, TableID: upd.TableID}
	return r.readBack(ctx, id, res, func(row *model.Reservation) bool {
		return row.Status.Occupying() && want.Matches(row)
	})
}

// SetStatus moves a non-terminal reservation to status and stamps
// updated_at.
func (r *ReservationRepo) SetStatus(ctx context.Context, id uint64, status model.Status, at time.Time) (*model.Reservation, error) {
	const q = `UPDATE reservations SET status = ?, updated_at = ?
	           WHERE id = ? AND status IN ('pending', 'confirmed')`
	res, err := r.db.ExecContext(ctx, q, string(status), at.UTC(), id)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return r.readBack(ctx, id, res, func(row *model.Reservation) bool {
		return row.Status == status && !status.Terminal()
	})
}

// readBack returns the row after a conditional update. Without
// clientFoundRows an update that rewrites identical values reports zero
// rows, so a zero count is only stale when the row no longer looks like
// the write landed.
func (r *ReservationRepo) readBack(ctx context.Context, id uint64, res sql.Result, landed func(*model.Reservation) bool) (*model.Reservation, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	row, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 && !landed(row) {
		return nil, ErrStaleState
	}
	return row, nil
}

// Statistics aggregates reservations dated between from and to inclusive.
func (r *ReservationRepo) Statistics(ctx context.Context, restaurantID uint64, from, to string) (*model.ReservationStats, error) {
	const q = `SELECT COUNT(*),
	                  COALESCE(SUM(status = 'confirmed'), 0),
	                  COALESCE(SUM(status = 'cancelled'), 0),
	                  COALESCE(SUM(status = 'completed'), 0),
	                  COALESCE(SUM(status = 'no_show'), 0),
	                  COALESCE(AVG(party_size), 0)
	           FROM reservations
	           WHERE restaurant_id = ? AND reservation_date BETWEEN ? AND ?`
	var st model.ReservationStats
	err := r.db.QueryRowContext(ctx, q, restaurantID, from, to).
		Scan(&st.Total, &st.Confirmed, &st.Cancelled, &st.Completed, &st.NoShow, &st.AvgPartySize)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *ReservationRepo) query(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func filterQuery(owner string, id uint64, f model.ReservationFilter) (string, []any) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE ` + owner
	args := []any{id}
	if f.Status != "" {
		q += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Upcoming {
		q += ` AND reservation_date >= ?`
		args = append(args, f.Today)
	}
	if f.Date != "" {
		q += ` AND reservation_date = ?`
		args = append(args, f.Date)
	}
	return q, args
}
