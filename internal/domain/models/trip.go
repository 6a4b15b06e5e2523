package models

import (
	"strings"
	"time"
)

// Trip is a vehicle journey record. Only the fields used for latest-trip
// resolution plus a few business columns are modelled here.
type Trip struct {
	ID            string     `json:"id"`
	VehicleNumber string     `json:"vehicleNumber"`
	StartDate     *time.Time `json:"startDate,omitempty"` // nil = placeholder, not begun
	RankIndex     int        `json:"rankIndex"`
	Route         string     `json:"route,omitempty"`
	Status        string     `json:"status,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Summary projects the trip to the fields the resolver needs.
func (t Trip) Summary() TripSummary {
	return TripSummary{ID: t.ID, StartDate: t.StartDate, RankIndex: t.RankIndex}
}

// TripSummary is the projected view {id, startDate, rankIndex}.
type TripSummary struct {
	ID        string     `json:"id"`
	StartDate *time.Time `json:"startDate,omitempty"`
	RankIndex int        `json:"rankIndex"`
}

// TripFilter selects trips. Zero-valued fields do not constrain.
type TripFilter struct {
	ID            string     `json:"id,omitempty"`
	VehicleNumber string     `json:"vehicleNumber,omitempty"`
	Status        string     `json:"status,omitempty"`
	StartFrom     *time.Time `json:"startFrom,omitempty"` // inclusive
	StartTo       *time.Time `json:"startTo,omitempty"`   // exclusive
}

// IsEmpty reports whether the filter would match every trip.
func (f TripFilter) IsEmpty() bool {
	return strings.TrimSpace(f.ID) == "" &&
		strings.TrimSpace(f.VehicleNumber) == "" &&
		strings.TrimSpace(f.Status) == "" &&
		f.StartFrom == nil && f.StartTo == nil
}

// TripPatch carries key-presence update semantics: nil fields are left untouched.
// ClearStartDate sets start_date back to NULL and wins over StartDate.
type TripPatch struct {
	VehicleNumber  *string
	StartDate      *time.Time
	ClearStartDate bool
	RankIndex      *int
	Route          *string
	Status         *string
}

// IsEmpty reports whether the patch changes nothing.
func (p TripPatch) IsEmpty() bool {
	return p.VehicleNumber == nil && p.StartDate == nil && !p.ClearStartDate &&
		p.RankIndex == nil && p.Route == nil && p.Status == nil
}

// TouchesResolution reports whether the patch may change which trip is latest.
func (p TripPatch) TouchesResolution() bool {
	return p.VehicleNumber != nil || p.StartDate != nil || p.ClearStartDate || p.RankIndex != nil
}

type BulkOpKind string

const (
	BulkInsert  BulkOpKind = "insert"
	BulkUpdate  BulkOpKind = "update"
	BulkDelete  BulkOpKind = "delete"
	BulkReplace BulkOpKind = "replace"
)

// BulkOp is one sub-operation of a bulk write.
//   - insert:  Trip
//   - update:  Filter + Patch (Many selects update-many)
//   - delete:  Filter (Many selects delete-many)
//   - replace: Filter + Trip (the id of the matched trip is kept)
type BulkOp struct {
	Kind   BulkOpKind
	Trip   *Trip
	Filter TripFilter
	Patch  TripPatch
	Many   bool
}

// BulkResult counts what a bulk write did.
type BulkResult struct {
	Inserted int64 `json:"inserted"`
	Modified int64 `json:"modified"`
	Deleted  int64 `json:"deleted"`
}
