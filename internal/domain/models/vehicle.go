package models

type Vehicle struct {
	VehicleNumber string `json:"vehicleNumber"`
	PlateNumber   string `json:"plateNumber,omitempty"`
	LatestTripID  string `json:"latestTripId,omitempty"` // weak reference, "" = none
}

type VehiclePayload struct {
	VehicleNumber string `json:"vehicleNumber" binding:"required"`
	PlateNumber   string `json:"plateNumber"`
}

// PointerUpdate is one entry of a batched latest-trip pointer write.
// TripID "" clears the pointer.
type PointerUpdate struct {
	VehicleNumber string
	TripID        string
}
