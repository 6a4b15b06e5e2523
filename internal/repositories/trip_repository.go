package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fleetops/internal/db"
	"fleetops/internal/domain"
	"fleetops/internal/domain/models"
)

const tripColumns = "id, vehicle_number, start_at, rank_index, route, status, created_at, updated_at"

// TripRepository is the Trip Store over database/sql.
type TripRepository struct {
	DB *sql.DB
}

func (r TripRepository) db() (*sql.DB, error) {
	if r.DB == nil {
		return nil, domain.InternalError{Msg: "database belum terhubung"}
	}
	return r.DB, nil
}

// Insert stores a new trip. CreatedAt/UpdatedAt are set when zero.
func (r TripRepository) Insert(ctx context.Context, t models.Trip) error {
	conn, err := r.db()
	if err != nil {
		return err
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	_, err = conn.ExecContext(ctx,
		`INSERT INTO trips (`+tripColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.VehicleNumber, toMillis(t.StartDate), t.RankIndex, t.Route, t.Status,
		t.CreatedAt.UnixMilli(), t.UpdatedAt.UnixMilli(),
	)
	if db.IsDuplicateKey(err) {
		return domain.ConflictError{Resource: "trip", Msg: "id " + t.ID + " sudah ada", Err: err}
	}
	if err != nil {
		return fmt.Errorf("insert trip %s: %w", t.ID, err)
	}
	return nil
}

// Find returns trips matching f ordered by id. limit <= 0 means no limit.
func (r TripRepository) Find(ctx context.Context, f models.TripFilter, limit int) ([]models.Trip, error) {
	conn, err := r.db()
	if err != nil {
		return nil, err
	}
	where, args := tripWhere(f)
	query := `SELECT ` + tripColumns + ` FROM trips WHERE ` + where + ` ORDER BY id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find trips: %w", err)
	}
	defer rows.Close()

	out := []models.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return out, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FindOne returns the first trip matching f or a NotFoundError.
func (r TripRepository) FindOne(ctx context.Context, f models.TripFilter) (models.Trip, error) {
	list, err := r.Find(ctx, f, 1)
	if err != nil {
		return models.Trip{}, err
	}
	if len(list) == 0 {
		return models.Trip{}, domain.NotFoundError{Resource: "trip", Key: f.ID}
	}
	return list[0], nil
}

// UpdateByIDs applies p to the given trips and returns the affected row count.
func (r TripRepository) UpdateByIDs(ctx context.Context, ids []string, p models.TripPatch) (int64, error) {
	if len(ids) == 0 || p.IsEmpty() {
		return 0, nil
	}
	conn, err := r.db()
	if err != nil {
		return 0, err
	}
	sets, args := tripSets(p)
	args = append(args, db.Args(ids)...)
	res, err := conn.ExecContext(ctx,
		`UPDATE trips SET `+strings.Join(sets, ", ")+` WHERE id IN (`+db.Placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("update trips: %w", err)
	}
	return res.RowsAffected()
}

// Replace overwrites every column of trip id except id and created_at.
func (r TripRepository) Replace(ctx context.Context, id string, t models.Trip) (int64, error) {
	conn, err := r.db()
	if err != nil {
		return 0, err
	}
	res, err := conn.ExecContext(ctx,
		`UPDATE trips SET vehicle_number = ?, start_at = ?, rank_index = ?, route = ?, status = ?, updated_at = ? WHERE id = ?`,
		t.VehicleNumber, toMillis(t.StartDate), t.RankIndex, t.Route, t.Status, nowMillis(), id,
	)
	if err != nil {
		return 0, fmt.Errorf("replace trip %s: %w", id, err)
	}
	return res.RowsAffected()
}

// DeleteByIDs removes the given trips.
func (r TripRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	conn, err := r.db()
	if err != nil {
		return 0, err
	}
	res, err := conn.ExecContext(ctx,
		`DELETE FROM trips WHERE id IN (`+db.Placeholders(len(ids))+`)`, db.Args(ids)...)
	if err != nil {
		return 0, fmt.Errorf("delete trips: %w", err)
	}
	return res.RowsAffected()
}

func (r TripRepository) FindTripSummaries(ctx context.Context, vehicleNumber string) ([]models.TripSummary, error) {
	return r.querySummaries(ctx,
		`SELECT id, start_at, rank_index FROM trips WHERE vehicle_number = ? ORDER BY start_at DESC, rank_index ASC, id DESC`,
		vehicleNumber)
}

func (r TripRepository) FindLatestTripSummary(ctx context.Context, vehicleNumber string) (models.TripSummary, bool, error) {
	list, err := r.querySummaries(ctx,
		`SELECT id, start_at, rank_index FROM trips WHERE vehicle_number = ? AND start_at IS NOT NULL ORDER BY start_at DESC, rank_index ASC, id DESC LIMIT 1`,
		vehicleNumber)
	if err != nil || len(list) == 0 {
		return models.TripSummary{}, false, err
	}
	return list[0], true, nil
}

func (r TripRepository) FindSameDaySiblings(ctx context.Context, vehicleNumber string, from, to time.Time, excludeID string) ([]models.TripSummary, error) {
	return r.querySummaries(ctx,
		`SELECT id, start_at, rank_index FROM trips WHERE vehicle_number = ? AND start_at >= ? AND start_at < ? AND id <> ? ORDER BY rank_index ASC, id ASC`,
		vehicleNumber, from.UnixMilli(), to.UnixMilli(), excludeID)
}

func (r TripRepository) IncrementRanks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	conn, err := r.db()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx,
		`UPDATE trips SET rank_index = rank_index + 1 WHERE id IN (`+db.Placeholders(len(ids))+`)`, db.Args(ids)...)
	if err != nil {
		return fmt.Errorf("increment ranks: %w", err)
	}
	return nil
}

func (r TripRepository) SetRank(ctx context.Context, id string, rank int) error {
	conn, err := r.db()
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, `UPDATE trips SET rank_index = ? WHERE id = ?`, rank, id); err != nil {
		return fmt.Errorf("set rank of %s: %w", id, err)
	}
	return nil
}

func (r TripRepository) querySummaries(ctx context.Context, query string, args ...any) ([]models.TripSummary, error) {
	conn, err := r.db()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trip summaries: %w", err)
	}
	defer rows.Close()

	out := []models.TripSummary{}
	for rows.Next() {
		var (
			s     models.TripSummary
			start sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &start, &s.RankIndex); err != nil {
			return out, err
		}
		s.StartDate = fromMillis(start)
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (models.Trip, error) {
	var (
		t                models.Trip
		start            sql.NullInt64
		created, updated int64
	)
	if err := row.Scan(&t.ID, &t.VehicleNumber, &start, &t.RankIndex, &t.Route, &t.Status, &created, &updated); err != nil {
		return t, err
	}
	t.StartDate = fromMillis(start)
	t.CreatedAt = time.UnixMilli(created).UTC()
	t.UpdatedAt = time.UnixMilli(updated).UTC()
	return t, nil
}

func tripWhere(f models.TripFilter) (string, []any) {
	where := []string{"1=1"}
	args := []any{}
	if v := strings.TrimSpace(f.ID); v != "" {
		where = append(where, "id = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(f.VehicleNumber); v != "" {
		where = append(where, "vehicle_number = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(f.Status); v != "" {
		where = append(where, "status = ?")
		args = append(args, v)
	}
	if f.StartFrom != nil {
		where = append(where, "start_at >= ?")
		args = append(args, f.StartFrom.UnixMilli())
	}
	if f.StartTo != nil {
		where = append(where, "start_at < ?")
		args = append(args, f.StartTo.UnixMilli())
	}
	return strings.Join(where, " AND "), args
}

func tripSets(p models.TripPatch) ([]string, []any) {
	sets := []string{}
	args := []any{}
	if p.VehicleNumber != nil {
		sets = append(sets, "vehicle_number = ?")
		args = append(args, strings.TrimSpace(*p.VehicleNumber))
	}
	switch {
	case p.ClearStartDate:
		sets = append(sets, "start_at = NULL")
	case p.StartDate != nil:
		sets = append(sets, "start_at = ?")
		args = append(args, p.StartDate.UnixMilli())
	}
	if p.RankIndex != nil {
		sets = append(sets, "rank_index = ?")
		args = append(args, *p.RankIndex)
	}
	if p.Route != nil {
		sets = append(sets, "route = ?")
		args = append(args, *p.Route)
	}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *p.Status)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, nowMillis())
	return sets, args
}
