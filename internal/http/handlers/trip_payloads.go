package handlers

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"fleetops/internal/domain"
	"fleetops/internal/domain/models"
	"fleetops/internal/utils"
)

type tripPayload struct {
	ID            string `json:"id"`
	VehicleNumber string `json:"vehicleNumber"`
	StartDate     string `json:"startDate"` // RFC3339, "2006-01-02 15:04:05" or "2006-01-02"
	RankIndex     int    `json:"rankIndex"`
	Route         string `json:"route"`
	Status        string `json:"status"`
}

func (p tripPayload) toTrip(loc *time.Location) (models.Trip, error) {
	t := models.Trip{
		ID:            strings.TrimSpace(p.ID),
		VehicleNumber: strings.TrimSpace(p.VehicleNumber),
		RankIndex:     p.RankIndex,
		Route:         strings.TrimSpace(p.Route),
		Status:        strings.TrimSpace(p.Status),
	}
	start, err := parseOptionalTime("startDate", p.StartDate, loc)
	if err != nil {
		return t, err
	}
	t.StartDate = start
	return t, nil
}

// filterPayload binds from JSON bodies and query strings alike.
type filterPayload struct {
	ID            string `json:"id" form:"id"`
	VehicleNumber string `json:"vehicleNumber" form:"vehicleNumber"`
	Status        string `json:"status" form:"status"`
	StartFrom     string `json:"startFrom" form:"startFrom"`
	StartTo       string `json:"startTo" form:"startTo"`
}

func (p filterPayload) toFilter(loc *time.Location) (models.TripFilter, error) {
	f := models.TripFilter{
		ID:            strings.TrimSpace(p.ID),
		VehicleNumber: strings.TrimSpace(p.VehicleNumber),
		Status:        strings.TrimSpace(p.Status),
	}
	var err error
	if f.StartFrom, err = parseOptionalTime("startFrom", p.StartFrom, loc); err != nil {
		return f, err
	}
	if f.StartTo, err = parseOptionalTime("startTo", p.StartTo, loc); err != nil {
		return f, err
	}
	return f, nil
}

// parsePatch keeps key presence: a missing key is left untouched and
// "startDate": null clears the start date.
func parsePatch(raw map[string]json.RawMessage, loc *time.Location) (models.TripPatch, error) {
	var p models.TripPatch
	for key, val := range raw {
		isNull := bytes.Equal(bytes.TrimSpace(val), []byte("null"))
		switch key {
		case "vehicleNumber":
			s, err := decodeString(key, val)
			if err != nil {
				return p, err
			}
			p.VehicleNumber = &s
		case "startDate":
			if isNull {
				p.ClearStartDate = true
				continue
			}
			s, err := decodeString(key, val)
			if err != nil {
				return p, err
			}
			t, err := parseOptionalTime(key, s, loc)
			if err != nil {
				return p, err
			}
			if t == nil {
				p.ClearStartDate = true
				continue
			}
			p.StartDate = t
		case "rankIndex":
			var n int
			if err := json.Unmarshal(val, &n); err != nil || isNull {
				return p, domain.ValidationError{Field: key, Msg: "harus berupa angka", Err: err}
			}
			p.RankIndex = &n
		case "route":
			s, err := decodeString(key, val)
			if err != nil {
				return p, err
			}
			p.Route = &s
		case "status":
			s, err := decodeString(key, val)
			if err != nil {
				return p, err
			}
			p.Status = &s
		case "id":
			return p, domain.ValidationError{Field: key, Msg: "id tidak dapat diubah"}
		default:
			return p, domain.ValidationError{Field: key, Msg: "field tidak dikenali"}
		}
	}
	return p, nil
}

func decodeString(field string, val json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(val, &s); err != nil {
		return "", domain.ValidationError{Field: field, Msg: "harus berupa teks", Err: err}
	}
	return strings.TrimSpace(s), nil
}

func parseOptionalTime(field, s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := utils.ParseTimestamp(s, loc)
	if err != nil {
		return nil, domain.ValidationError{Field: field, Msg: err.Error(), Err: err}
	}
	return &t, nil
}

type bulkOpPayload struct {
	Kind   string                     `json:"kind" binding:"required"`
	Trip   *tripPayload               `json:"trip"`
	Filter filterPayload              `json:"filter"`
	Update map[string]json.RawMessage `json:"update"`
	Many   bool                       `json:"many"`
}

type bulkPayload struct {
	Ops []bulkOpPayload `json:"ops" binding:"required"`
}

func (p bulkPayload) toOps(loc *time.Location) ([]models.BulkOp, error) {
	ops := make([]models.BulkOp, 0, len(p.Ops))
	for _, raw := range p.Ops {
		op := models.BulkOp{
			Kind: models.BulkOpKind(strings.ToLower(strings.TrimSpace(raw.Kind))),
			Many: raw.Many,
		}
		if raw.Trip != nil {
			t, err := raw.Trip.toTrip(loc)
			if err != nil {
				return nil, err
			}
			op.Trip = &t
		}
		f, err := raw.Filter.toFilter(loc)
		if err != nil {
			return nil, err
		}
		op.Filter = f
		if op.Patch, err = parsePatch(raw.Update, loc); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}
