package latesttrip

import (
	"context"

	"fleetops/internal/domain/models"
	"fleetops/internal/utils"
)

// AssignRank makes a newly created trip the top priority among the
// vehicle's trips on the same calendar day: existing same-day trips move
// down one rank and the new trip takes rank 0.
//
// It is best-effort. Failures are logged and the returned summary reflects
// whatever rank the new trip ended up with.
func (e *Engine) AssignRank(ctx context.Context, trip models.Trip) models.TripSummary {
	summary := trip.Summary()
	if trip.StartDate == nil || trip.VehicleNumber == "" {
		return summary
	}
	ctx = context.WithoutCancel(ctx)

	from, to := utils.DayWindow(*trip.StartDate, e.cfg.Location)
	var siblings []models.TripSummary
	err := e.withOpTimeout(ctx, func(ctx context.Context) error {
		var err error
		siblings, err = e.trips.FindSameDaySiblings(ctx, trip.VehicleNumber, from, to, trip.ID)
		return err
	})
	if err != nil {
		e.logger.Warn("rank assignment: sibling lookup failed",
			"vehicle", trip.VehicleNumber, "trip", trip.ID, "error", err)
		return summary
	}

	if len(siblings) > 0 {
		ids := make([]string, 0, len(siblings))
		for _, s := range siblings {
			ids = append(ids, s.ID)
		}
		err := e.retryWrite(ctx, func(ctx context.Context) error {
			return e.trips.IncrementRanks(ctx, ids)
		})
		if err != nil {
			e.logger.Warn("rank assignment: shifting same-day trips failed",
				"vehicle", trip.VehicleNumber, "trip", trip.ID, "siblings", len(ids), "error", err)
			return summary
		}
	}

	if trip.RankIndex != 0 {
		err := e.retryWrite(ctx, func(ctx context.Context) error {
			return e.trips.SetRank(ctx, trip.ID, 0)
		})
		if err != nil {
			e.logger.Warn("rank assignment: setting top rank failed",
				"vehicle", trip.VehicleNumber, "trip", trip.ID, "error", err)
			return summary
		}
	}

	summary.RankIndex = 0
	e.logger.Debug("rank assigned", "vehicle", trip.VehicleNumber, "trip", trip.ID,
		"day", utils.FormatDate(from, e.cfg.Location), "shifted", len(siblings))
	return summary
}
