// Package repository contains data access logic separated from HTTP handlers.
// This file defines repository methods for restaurants, their tables and
// their weekly opening hours. Restaurants are soft-deleted through the
// is_active flag so that past reservations keep a valid reference.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/table-reservation/internal/model"
)

// mysqlDuplicateEntry is the server error number for unique key violations.
const mysqlDuplicateEntry = 1062

// RestaurantRepo encapsulates all database queries related to restaurants.
type RestaurantRepo struct {
	db *sql.DB
}

// NewRestaurantRepo constructs a RestaurantRepo with the provided DB handle.
func NewRestaurantRepo(db *sql.DB) *RestaurantRepo {
	return &RestaurantRepo{db: db}
}

const restaurantColumns = `id, name, description, cuisine, phone, email, street_address, city, state,
	zip_code, country, price_range, rating, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRestaurant(row rowScanner) (*model.Restaurant, error) {
	var r model.Restaurant
	var desc, phone, email sql.NullString
	if err := row.Scan(&r.ID, &r.Name, &desc, &r.Cuisine, &phone, &email, &r.StreetAddress,
		&r.City, &r.State, &r.ZipCode, &r.Country, &r.PriceRange, &r.Rating, &r.IsActive,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Description = nullString(desc)
	r.Phone = nullString(phone)
	r.Email = nullString(email)
	return &r, nil
}

// CreateRestaurant inserts a restaurant and reads back its generated
// fields.
func (r *RestaurantRepo) CreateRestaurant(ctx context.Context, rest *model.Restaurant) error {
	if rest.Country == "" {
		rest.Country = "USA"
	}
	const q = `INSERT INTO restaurants (name, description, cuisine, phone, email, street_address,
	           city, state, zip_code, country, price_range, is_active)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, rest.Name, rest.Description, rest.Cuisine, rest.Phone,
		rest.Email, rest.StreetAddress, rest.City, rest.State, rest.ZipCode, rest.Country,
		rest.PriceRange, rest.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	out, err := r.GetRestaurant(ctx, uint64(id))
	if err != nil {
		return err
	}
	*rest = *out
	return nil
}

// GetRestaurant fetches a restaurant by id whether or not it is active.
// It returns ErrNotFound if no row exists.
func (r *RestaurantRepo) GetRestaurant(ctx context.Context, id uint64) (*model.Restaurant, error) {
	q := `SELECT ` + restaurantColumns + ` FROM restaurants WHERE id = ?`
	rest, err := scanRestaurant(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rest, nil
}

// ListRestaurants returns active restaurants matching the filter, newest
// first. Text filters are case-insensitive substring matches.
func (r *RestaurantRepo) ListRestaurants(ctx context.Context, f model.RestaurantFilter) ([]model.Restaurant, error) {
	q := `SELECT ` + restaurantColumns + ` FROM restaurants WHERE is_active = 1`
	var args []any
	if f.Cuisine != "" {
		q += ` AND cuisine LIKE ?`
		args = append(args, likePattern(f.Cuisine))
	}
	if f.City != "" {
		q += ` AND city LIKE ?`
		args = append(args, likePattern(f.City))
	}
	if f.Search != "" {
		q += ` AND (name LIKE ? OR description LIKE ?)`
		args = append(args, likePattern(f.Search), likePattern(f.Search))
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Restaurant, 0)
	for rows.Next() {
		rest, err := scanRestaurant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rest)
	}
	return out, rows.Err()
}

// UpdateRestaurant applies the non-nil fields of p in a single statement;
// nil fields keep their value through COALESCE.
// It returns ErrNoChange for an empty patch and ErrNotFound when the
// restaurant does not exist.
func (r *RestaurantRepo) UpdateRestaurant(ctx context.Context, id uint64, p model.RestaurantPatch) (*model.Restaurant, error) {
	if p.Empty() {
		return nil, ErrNoChange
	}
	const q = `UPDATE restaurants SET
	             name = COALESCE(?, name), description = COALESCE(?, description),
	             cuisine = COALESCE(?, cuisine), phone = COALESCE(?, phone),
	             email = COALESCE(?, email), street_address = COALESCE(?, street_address),
	             city = COALESCE(?, city), state = COALESCE(?, state),
	             zip_code = COALESCE(?, zip_code), country = COALESCE(?, country),
	             price_range = COALESCE(?, price_range)
	           WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, p.Name, p.Description, p.Cuisine, p.Phone, p.Email,
		p.StreetAddress, p.City, p.State, p.ZipCode, p.Country, p.PriceRange, id)
	if err != nil {
		return nil, err
	}
	return r.GetRestaurant(ctx, id)
}

// DeactivateRestaurant soft-deletes an active restaurant.
func (r *RestaurantRepo) DeactivateRestaurant(ctx context.Context, id uint64) error {
	const q = `UPDATE restaurants SET is_active = 0 WHERE id = ? AND is_active = 1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTables returns every table of a restaurant, including unavailable
// ones, ordered by table number.
func (r *RestaurantRepo) GetTables(ctx context.Context, restaurantID uint64) ([]model.Table, error) {
	if err := r.exists(ctx, restaurantID); err != nil {
		return nil, err
	}
	const q = `SELECT id, restaurant_id, table_number, capacity, is_available, created_at
	           FROM restaurant_tables WHERE restaurant_id = ? ORDER BY table_number`
	rows, err := r.db.QueryContext(ctx, q, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Table, 0)
	for rows.Next() {
		var t model.Table
		if err := rows.Scan(&t.ID, &t.RestaurantID, &t.TableNumber, &t.Capacity, &t.IsAvailable, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AddTable inserts a table. A duplicate table number within the
// restaurant yields ErrConflict.
func (r *RestaurantRepo) AddTable(ctx context.Context, t *model.Table) error {
	if err := r.exists(ctx, t.RestaurantID); err != nil {
		return err
	}
	const q = `INSERT INTO restaurant_tables (restaurant_id, table_number, capacity, is_available) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, t.RestaurantID, t.TableNumber, t.Capacity, t.IsAvailable)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	const sel = `SELECT created_at FROM restaurant_tables WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, t.ID).Scan(&t.CreatedAt)
}

// UpdateTable changes capacity and/or availability of a table that
// belongs to the restaurant.
func (r *RestaurantRepo) UpdateTable(ctx context.Context, restaurantID, tableID uint64, p model.TablePatch) (*model.Table, error) {
	if p.Capacity == nil && p.IsAvailable == nil {
		return nil, ErrNoChange
	}
	const q = `UPDATE restaurant_tables
	           SET capacity = COALESCE(?, capacity), is_available = COALESCE(?, is_available)
	           WHERE id = ? AND restaurant_id = ?`
	if _, err := r.db.ExecContext(ctx, q, p.Capacity, p.IsAvailable, tableID, restaurantID); err != nil {
		return nil, err
	}
	const sel = `SELECT id, restaurant_id, table_number, capacity, is_available, created_at
	             FROM restaurant_tables WHERE id = ? AND restaurant_id = ?`
	var t model.Table
	err := r.db.QueryRowContext(ctx, sel, tableID, restaurantID).
		Scan(&t.ID, &t.RestaurantID, &t.TableNumber, &t.Capacity, &t.IsAvailable, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// GetHours returns a restaurant's weekly schedule ordered by weekday.
func (r *RestaurantRepo) GetHours(ctx context.Context, restaurantID uint64) ([]model.OpeningHours, error) {
	if err := r.exists(ctx, restaurantID); err != nil {
		return nil, err
	}
	const q = `SELECT day_of_week, TIME_FORMAT(open_time, '%H:%i'), TIME_FORMAT(close_time, '%H:%i'), is_closed
	           FROM restaurant_hours WHERE restaurant_id = ? ORDER BY day_of_week`
	rows, err := r.db.QueryContext(ctx, q, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.OpeningHours, 0)
	for rows.Next() {
		var h model.OpeningHours
		var open, close sql.NullString
		if err := rows.Scan(&h.DayOfWeek, &open, &close, &h.IsClosed); err != nil {
			return nil, err
		}
		h.OpenTime, h.CloseTime = open.String, close.String
		out = append(out, h)
	}
	return out, rows.Err()
}

// SetHours replaces the weekly schedule inside one transaction.
func (r *RestaurantRepo) SetHours(ctx context.Context, restaurantID uint64, hours []model.OpeningHours) error {
	if err := r.exists(ctx, restaurantID); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM restaurant_hours WHERE restaurant_id = ?`, restaurantID); err != nil {
		return err
	}
	const ins = `INSERT INTO restaurant_hours (restaurant_id, day_of_week, open_time, close_time, is_closed) VALUES (?, ?, ?, ?, ?)`
	for _, h := range hours {
		if _, err := tx.ExecContext(ctx, ins, restaurantID, h.DayOfWeek, nullIfEmpty(h.OpenTime), nullIfEmpty(h.CloseTime), h.IsClosed); err != nil {
			if isDuplicate(err) {
				return ErrConflict
			}
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *RestaurantRepo) exists(ctx context.Context, id uint64) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM restaurants WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
