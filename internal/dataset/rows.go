package dataset

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/karthik-kata/StingerOps/internal/opt"
)

// BuildingRow is one building with its demand.
type BuildingRow struct {
	BuildingName string   `json:"building_name" validate:"required"`
	Demand       *float64 `json:"demand" validate:"required,gte=0"`
	Latitude     *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude    *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

// SourceRow is an origin of riders such as a dorm or a station.
type SourceRow struct {
	SourceName string   `json:"source_name" validate:"required"`
	Latitude   *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude  *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Demand     *float64 `json:"demand" validate:"required,gte=0"`
}

// StopRow is a candidate bus stop.
type StopRow struct {
	StopName      string   `json:"stop_name" validate:"required"`
	StopLat       *float64 `json:"stop_lat" validate:"required,gte=-90,lte=90"`
	StopLon       *float64 `json:"stop_lon" validate:"required,gte=-180,lte=180"`
	RoutesServing string   `json:"routes_serving,omitempty"`
	Capacity      *int     `json:"capacity,omitempty" validate:"omitempty,gte=0"`
	HasShelter    *bool    `json:"has_shelter,omitempty"`
}

// Dataset groups the three inputs of one optimization.
type Dataset struct {
	Buildings []BuildingRow `json:"buildings"`
	Sources   []SourceRow   `json:"sources"`
	Stops     []StopRow     `json:"stops"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateRow checks one row against its struct tags. row is 1-based for messages.
func ValidateRow(kind Kind, row int, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return opt.Errorf(opt.KindInputValidation, "validate "+string(kind), "row %d: %s", row, describe(fe))
	}
	return &opt.Error{Kind: opt.KindInputValidation, Op: "validate " + string(kind), Msg: fmt.Sprintf("row %d", row), Err: err}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gte":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

// Validate checks every row and rejects duplicate stop names. It does not
// require any kind to be present; uploads carry one kind at a time and
// missing demand or stops surface as DataAvailabilityError from opt.
func (d Dataset) Validate() error {
	for i := range d.Buildings {
		if err := ValidateRow(Buildings, i+1, &d.Buildings[i]); err != nil {
			return err
		}
	}
	for i := range d.Sources {
		if err := ValidateRow(Sources, i+1, &d.Sources[i]); err != nil {
			return err
		}
	}
	seen := map[string]int{}
	for i := range d.Stops {
		if err := ValidateRow(Stops, i+1, &d.Stops[i]); err != nil {
			return err
		}
		name := strings.TrimSpace(d.Stops[i].StopName)
		if first, dup := seen[name]; dup {
			return opt.Errorf(opt.KindInputValidation, "validate stops", "row %d: stop_name %q duplicates row %d", i+1, name, first)
		}
		seen[name] = i + 1
	}
	return nil
}

// Empty reports whether the dataset carries no rows at all.
func (d Dataset) Empty() bool {
	return len(d.Buildings) == 0 && len(d.Sources) == 0 && len(d.Stops) == 0
}

// DemandPoints converts buildings and sources. Call Validate first.
func (d Dataset) DemandPoints() []opt.DemandPoint {
	out := make([]opt.DemandPoint, 0, len(d.Buildings)+len(d.Sources))
	for i, b := range d.Buildings {
		out = append(out, opt.DemandPoint{
			ID:     fmt.Sprintf("b%04d:%s", i, b.BuildingName),
			Name:   b.BuildingName,
			Lat:    deref(b.Latitude),
			Lng:    deref(b.Longitude),
			Weight: deref(b.Demand),
		})
	}
	for i, s := range d.Sources {
		out = append(out, opt.DemandPoint{
			ID:     fmt.Sprintf("s%04d:%s", i, s.SourceName),
			Name:   s.SourceName,
			Lat:    deref(s.Latitude),
			Lng:    deref(s.Longitude),
			Weight: deref(s.Demand),
		})
	}
	return out
}

// StopCandidates converts stops; the stop name is the identifier.
func (d Dataset) StopCandidates() []opt.StopCandidate {
	out := make([]opt.StopCandidate, 0, len(d.Stops))
	for _, s := range d.Stops {
		name := strings.TrimSpace(s.StopName)
		out = append(out, opt.StopCandidate{
			ID:       name,
			Name:     name,
			Lat:      deref(s.StopLat),
			Lng:      deref(s.StopLon),
			Capacity: s.Capacity,
		})
	}
	return out
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
