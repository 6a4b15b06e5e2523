package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fleetops/internal/db"
	"fleetops/internal/domain"
	"fleetops/internal/domain/models"
)

// VehicleRepository is the Vehicle Store. latest_trip_id is a weak
// reference: no foreign key, no cascade.
type VehicleRepository struct {
	DB *sql.DB
}

func (r VehicleRepository) db() (*sql.DB, error) {
	if r.DB == nil {
		return nil, domain.InternalError{Msg: "database belum terhubung"}
	}
	return r.DB, nil
}

func (r VehicleRepository) Create(ctx context.Context, v models.Vehicle) error {
	conn, err := r.db()
	if err != nil {
		return err
	}
	now := nowMillis()
	_, err = conn.ExecContext(ctx,
		`INSERT INTO vehicles (vehicle_number, plate_number, latest_trip_id, created_at, updated_at) VALUES (?, ?, NULL, ?, ?)`,
		strings.TrimSpace(v.VehicleNumber), strings.TrimSpace(v.PlateNumber), now, now,
	)
	if db.IsDuplicateKey(err) {
		return domain.ConflictError{Resource: "vehicle", Msg: "nomor kendaraan sudah terdaftar", Err: err}
	}
	if err != nil {
		return fmt.Errorf("insert vehicle: %w", err)
	}
	return nil
}

func (r VehicleRepository) Get(ctx context.Context, vehicleNumber string) (models.Vehicle, error) {
	conn, err := r.db()
	if err != nil {
		return models.Vehicle{}, err
	}
	var (
		v      models.Vehicle
		latest sql.NullString
	)
	err = conn.QueryRowContext(ctx,
		`SELECT vehicle_number, plate_number, latest_trip_id FROM vehicles WHERE vehicle_number = ?`, vehicleNumber,
	).Scan(&v.VehicleNumber, &v.PlateNumber, &latest)
	if errors.Is(err, sql.ErrNoRows) {
		return v, domain.NotFoundError{Resource: "vehicle", Key: vehicleNumber, Err: err}
	}
	if err != nil {
		return v, fmt.Errorf("get vehicle %s: %w", vehicleNumber, err)
	}
	v.LatestTripID = latest.String
	return v, nil
}

func (r VehicleRepository) FindLatestTripPointer(ctx context.Context, vehicleNumber string) (string, error) {
	v, err := r.Get(ctx, vehicleNumber)
	if err != nil {
		return "", err
	}
	return v.LatestTripID, nil
}

func (r VehicleRepository) SetLatestTripPointer(ctx context.Context, vehicleNumber, tripID string) error {
	conn, err := r.db()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx,
		`UPDATE vehicles SET latest_trip_id = ?, updated_at = ? WHERE vehicle_number = ?`,
		db.NullIfEmpty(tripID), nowMillis(), vehicleNumber,
	)
	if err != nil {
		return fmt.Errorf("set latest trip of %s: %w", vehicleNumber, err)
	}
	return nil
}

// BulkSetLatestTripPointers writes every pointer in one CASE update.
func (r VehicleRepository) BulkSetLatestTripPointers(ctx context.Context, updates []models.PointerUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	conn, err := r.db()
	if err != nil {
		return err
	}

	var b strings.Builder
	args := make([]any, 0, len(updates)*3+1)
	b.WriteString(`UPDATE vehicles SET latest_trip_id = CASE vehicle_number`)
	for _, u := range updates {
		b.WriteString(` WHEN ? THEN ?`)
		args = append(args, u.VehicleNumber, db.NullIfEmpty(u.TripID))
	}
	b.WriteString(` ELSE latest_trip_id END, updated_at = ? WHERE vehicle_number IN (`)
	b.WriteString(db.Placeholders(len(updates)))
	b.WriteString(`)`)
	args = append(args, nowMillis())
	for _, u := range updates {
		args = append(args, u.VehicleNumber)
	}

	if _, err := conn.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("bulk set latest trips (%d vehicles): %w", len(updates), err)
	}
	return nil
}

func (r VehicleRepository) ListVehicleNumbers(ctx context.Context) ([]string, error) {
	conn, err := r.db()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, `SELECT vehicle_number FROM vehicles ORDER BY vehicle_number ASC`)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return out, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
