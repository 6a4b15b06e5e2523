package repositories

import (
	"context"
	"regexp"
	"testing"

	"fleetops/internal/domain"
	"fleetops/internal/domain/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSetLatestTripPointerClearsWithNull(t *testing.T) {
	_, vehicles, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE vehicles SET latest_trip_id = ?, updated_at = ? WHERE vehicle_number = ?")).
		WithArgs(nil, sqlmock.AnyArg(), "B1234").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE vehicles SET latest_trip_id = ?")).
		WithArgs("T2", sqlmock.AnyArg(), "B1234").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := vehicles.SetLatestTripPointer(context.Background(), "B1234", ""); err != nil {
		t.Fatalf("clear error: %v", err)
	}
	if err := vehicles.SetLatestTripPointer(context.Background(), "B1234", "T2"); err != nil {
		t.Fatalf("set error: %v", err)
	}
}

func TestBulkSetLatestTripPointersSingleStatement(t *testing.T) {
	_, vehicles, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE vehicles SET latest_trip_id = CASE vehicle_number WHEN ? THEN ? WHEN ? THEN ? ELSE latest_trip_id END, updated_at = ? WHERE vehicle_number IN (?,?)")).
		WithArgs("V1", "T1", "V2", nil, sqlmock.AnyArg(), "V1", "V2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := vehicles.BulkSetLatestTripPointers(context.Background(), []models.PointerUpdate{
		{VehicleNumber: "V1", TripID: "T1"},
		{VehicleNumber: "V2", TripID: ""},
	})
	if err != nil {
		t.Fatalf("bulk error: %v", err)
	}
}

func TestFindLatestTripPointerUnknownVehicle(t *testing.T) {
	_, vehicles, mock := newMock(t)

	mock.ExpectQuery("SELECT vehicle_number, plate_number, latest_trip_id FROM vehicles").
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"vehicle_number", "plate_number", "latest_trip_id"}))

	_, err := vehicles.FindLatestTripPointer(context.Background(), "NOPE")
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFindLatestTripPointerNullIsEmpty(t *testing.T) {
	_, vehicles, mock := newMock(t)

	mock.ExpectQuery("SELECT vehicle_number, plate_number, latest_trip_id FROM vehicles").
		WithArgs("B1234").
		WillReturnRows(sqlmock.NewRows([]string{"vehicle_number", "plate_number", "latest_trip_id"}).
			AddRow("B1234", "BK 1234 AA", nil))

	id, err := vehicles.FindLatestTripPointer(context.Background(), "B1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "" {
		t.Fatalf("expected empty pointer, got %q", id)
	}
}

func TestListVehicleNumbers(t *testing.T) {
	_, vehicles, mock := newMock(t)

	mock.ExpectQuery("SELECT vehicle_number FROM vehicles").
		WillReturnRows(sqlmock.NewRows([]string{"vehicle_number"}).AddRow("A1").AddRow("B2"))

	list, err := vehicles.ListVehicleNumbers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 || list[0] != "A1" {
		t.Fatalf("unexpected list %v", list)
	}
}

func vehicleFixture(number string) models.Vehicle {
	return models.Vehicle{VehicleNumber: number, PlateNumber: "BK " + number}
}

func pointerFixture(vehicle, trip string) []models.PointerUpdate {
	return []models.PointerUpdate{{VehicleNumber: vehicle, TripID: trip}}
}
