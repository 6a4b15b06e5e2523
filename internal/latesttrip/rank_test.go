package latesttrip

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"fleetops/internal/domain/models"
)

func TestAssignRankPushesSameDayTripsDown(t *testing.T) {
	trips := newMemTrips(
		models.Trip{ID: "X", VehicleNumber: "V", StartDate: at(7, 6), RankIndex: 0},
		models.Trip{ID: "Y", VehicleNumber: "V", StartDate: at(7, 9), RankIndex: 1},
		models.Trip{ID: "W", VehicleNumber: "V", StartDate: at(6, 9), RankIndex: 0},
		models.Trip{ID: "Z", VehicleNumber: "OTHER", StartDate: at(7, 9), RankIndex: 0},
	)
	e := New(trips, newMemVehicles("V"), testConfig(), nil, WithEnqueuer(&recordingQueue{}))

	d := models.Trip{ID: "D", VehicleNumber: "V", StartDate: at(7, 12)}
	trips.put(d)
	summary := e.AssignRank(context.Background(), d)

	assert.Equal(t, 0, summary.RankIndex)
	assert.Equal(t, 0, trips.rank("D"))
	assert.Equal(t, 1, trips.rank("X"))
	assert.Equal(t, 2, trips.rank("Y"))
	assert.Equal(t, 0, trips.rank("W"), "other days untouched")
	assert.Equal(t, 0, trips.rank("Z"), "other vehicles untouched")
}

func TestAssignRankResetsNonZeroRank(t *testing.T) {
	trips := newMemTrips()
	e := New(trips, newMemVehicles("V"), testConfig(), nil, WithEnqueuer(&recordingQueue{}))

	d := models.Trip{ID: "D", VehicleNumber: "V", StartDate: day(7), RankIndex: 4}
	trips.put(d)
	summary := e.AssignRank(context.Background(), d)

	assert.Equal(t, 0, summary.RankIndex)
	assert.Equal(t, 0, trips.rank("D"))
}

func TestAssignRankSkipsPlaceholderTrips(t *testing.T) {
	trips := newMemTrips(models.Trip{ID: "X", VehicleNumber: "V", StartDate: day(7)})
	e := New(trips, newMemVehicles("V"), testConfig(), nil, WithEnqueuer(&recordingQueue{}))

	summary := e.AssignRank(context.Background(), models.Trip{ID: "P", VehicleNumber: "V", RankIndex: 2})
	assert.Equal(t, 2, summary.RankIndex)
	assert.Equal(t, 0, trips.rank("X"))
}

func TestAssignRankFailureIsNotFatal(t *testing.T) {
	trips := newMemTrips(models.Trip{ID: "X", VehicleNumber: "V", StartDate: day(7)})
	trips.failSiblings = errStoreDown
	e := New(trips, newMemVehicles("V"), testConfig(), nil, WithEnqueuer(&recordingQueue{}))

	d := models.Trip{ID: "D", VehicleNumber: "V", StartDate: day(7)}
	trips.put(d)

	assert.NotPanics(t, func() {
		summary := e.AssignRank(context.Background(), d)
		assert.Equal(t, "D", summary.ID)
	})
	assert.Equal(t, 0, trips.rank("X"))
}
