// Package dataset defines the tabular inputs of the planner (buildings,
// sources, stops), reads them from CSV or JSON, and validates every row
// against an explicit schema before it reaches the optimizer.
package dataset

import (
	"fmt"
	"strings"

	"github.com/karthik-kata/StingerOps/internal/opt"
)

type Kind string

const (
	Buildings Kind = "buildings"
	Sources   Kind = "sources"
	Stops     Kind = "stops"
)

// Kinds lists every dataset kind in load order.
var Kinds = []Kind{Buildings, Sources, Stops}

// Field is one column of a schema.
type Field struct {
	Name     string
	Required bool
}

// Schema names the columns of a dataset kind.
type Schema struct {
	Kind   Kind
	Fields []Field
}

var schemas = map[Kind]Schema{
	Buildings: {Kind: Buildings, Fields: []Field{
		{Name: "building_name", Required: true},
		{Name: "demand", Required: true},
		{Name: "latitude", Required: true},
		{Name: "longitude", Required: true},
	}},
	Sources: {Kind: Sources, Fields: []Field{
		{Name: "source_name", Required: true},
		{Name: "latitude", Required: true},
		{Name: "longitude", Required: true},
		{Name: "demand", Required: true},
	}},
	Stops: {Kind: Stops, Fields: []Field{
		{Name: "stop_name", Required: true},
		{Name: "stop_lat", Required: true},
		{Name: "stop_lon", Required: true},
		{Name: "routes_serving"},
		{Name: "capacity"},
		{Name: "has_shelter"},
	}},
}

// SchemaFor returns the schema of kind.
func SchemaFor(kind Kind) (Schema, error) {
	s, ok := schemas[kind]
	if !ok {
		return Schema{}, opt.Errorf(opt.KindInputValidation, "dataset", "unknown dataset kind %q", string(kind))
	}
	return s, nil
}

// ParseKind accepts a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, err := SchemaFor(k); err != nil {
		return "", err
	}
	return k, nil
}

// Required returns the names of the mandatory columns.
func (s Schema) Required() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

func (s Schema) String() string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
		if !f.Required {
			names[i] += "?"
		}
	}
	return fmt.Sprintf("%s(%s)", s.Kind, strings.Join(names, ", "))
}
