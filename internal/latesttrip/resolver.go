package latesttrip

import (
	"slices"
	"strings"

	"fleetops/internal/domain/models"
)

// Resolve picks the current trip among summaries: latest start date first,
// then lowest rank index, then greatest id. Trips without a start date are
// never candidates. ok is false when nothing qualifies.
func Resolve(summaries []models.TripSummary) (id string, ok bool) {
	ranked := Rank(summaries)
	if len(ranked) == 0 {
		return "", false
	}
	return ranked[0].ID, true
}

// Rank returns the candidates of summaries in resolution order, most
// current first. The input slice is not modified.
func Rank(summaries []models.TripSummary) []models.TripSummary {
	out := make([]models.TripSummary, 0, len(summaries))
	for _, s := range summaries {
		if s.StartDate != nil {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, compareCurrent)
	return out
}

// Merge overlays written onto summaries, replacing the entry with the same
// id or appending it, so resolution sees the post-write state.
func Merge(summaries []models.TripSummary, written models.TripSummary) []models.TripSummary {
	out := make([]models.TripSummary, 0, len(summaries)+1)
	replaced := false
	for _, s := range summaries {
		if s.ID == written.ID {
			out = append(out, written)
			replaced = true
			continue
		}
		out = append(out, s)
	}
	if !replaced {
		out = append(out, written)
	}
	return out
}

// compareCurrent orders a before b when a is more current. Both start dates are non-nil.
func compareCurrent(a, b models.TripSummary) int {
	if c := b.StartDate.Compare(*a.StartDate); c != 0 {
		return c
	}
	if a.RankIndex != b.RankIndex {
		if a.RankIndex < b.RankIndex {
			return -1
		}
		return 1
	}
	return strings.Compare(b.ID, a.ID)
}
