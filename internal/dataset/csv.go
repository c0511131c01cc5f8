package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/karthik-kata/StingerOps/internal/opt"
)

// ReadCSV parses a CSV table of the given kind into d, replacing any rows
// of that kind already present. Headers are matched case-insensitively;
// every required column must exist and every required cell must be set.
func (d *Dataset) ReadCSV(kind Kind, r io.Reader) error {
	schema, err := SchemaFor(kind)
	if err != nil {
		return err
	}
	op := "read " + string(kind)
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return opt.Errorf(opt.KindInputValidation, op, "empty file")
	}
	if err != nil {
		return &opt.Error{Kind: opt.KindInputValidation, Op: op, Msg: "header", Err: err}
	}
	idx := makeIndex(header)
	for _, col := range schema.Required() {
		if _, ok := idx[col]; !ok {
			return opt.Errorf(opt.KindInputValidation, op, "missing required column %q", col)
		}
	}

	switch kind {
	case Buildings:
		d.Buildings = nil
	case Sources:
		d.Sources = nil
	case Stops:
		d.Stops = nil
	}
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &opt.Error{Kind: opt.KindInputValidation, Op: op, Msg: fmt.Sprintf("row %d", row), Err: err}
		}
		if blank(record) {
			row--
			continue
		}
		c := cells{record: record, idx: idx, row: row, op: op}
		switch kind {
		case Buildings:
			b := BuildingRow{
				BuildingName: c.get("building_name"),
				Demand:       c.getFloat("demand"),
				Latitude:     c.getFloat("latitude"),
				Longitude:    c.getFloat("longitude"),
			}
			if c.err == nil {
				c.err = ValidateRow(kind, row, &b)
			}
			if c.err != nil {
				return c.err
			}
			d.Buildings = append(d.Buildings, b)
		case Sources:
			s := SourceRow{
				SourceName: c.get("source_name"),
				Latitude:   c.getFloat("latitude"),
				Longitude:  c.getFloat("longitude"),
				Demand:     c.getFloat("demand"),
			}
			if c.err == nil {
				c.err = ValidateRow(kind, row, &s)
			}
			if c.err != nil {
				return c.err
			}
			d.Sources = append(d.Sources, s)
		case Stops:
			s := StopRow{
				StopName:      c.get("stop_name"),
				StopLat:       c.getFloat("stop_lat"),
				StopLon:       c.getFloat("stop_lon"),
				RoutesServing: c.get("routes_serving"),
				Capacity:      c.getInt("capacity"),
				HasShelter:    c.getBool("has_shelter"),
			}
			if c.err == nil {
				c.err = ValidateRow(kind, row, &s)
			}
			if c.err != nil {
				return c.err
			}
			d.Stops = append(d.Stops, s)
		}
	}
	return nil
}

// WriteCSV writes the rows of kind with the schema's column order.
func (d Dataset) WriteCSV(kind Kind, w io.Writer) error {
	schema, err := SchemaFor(kind)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	header := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		header[i] = f.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	ff := func(p *float64) string {
		if p == nil {
			return ""
		}
		return strconv.FormatFloat(*p, 'f', -1, 64)
	}
	switch kind {
	case Buildings:
		for _, b := range d.Buildings {
			if err := cw.Write([]string{b.BuildingName, ff(b.Demand), ff(b.Latitude), ff(b.Longitude)}); err != nil {
				return err
			}
		}
	case Sources:
		for _, s := range d.Sources {
			if err := cw.Write([]string{s.SourceName, ff(s.Latitude), ff(s.Longitude), ff(s.Demand)}); err != nil {
				return err
			}
		}
	case Stops:
		for _, s := range d.Stops {
			capacity, shelter := "", ""
			if s.Capacity != nil {
				capacity = strconv.Itoa(*s.Capacity)
			}
			if s.HasShelter != nil {
				shelter = strconv.FormatBool(*s.HasShelter)
			}
			if err := cw.Write([]string{s.StopName, ff(s.StopLat), ff(s.StopLon), s.RoutesServing, capacity, shelter}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// cells reads typed values from one record and keeps the first parse error.
type cells struct {
	record []string
	idx    map[string]int
	row    int
	op     string
	err    error
}

func (c *cells) get(field string) string {
	if i, ok := c.idx[field]; ok && i < len(c.record) {
		return strings.TrimSpace(c.record[i])
	}
	return ""
}

func (c *cells) fail(field, v string) {
	if c.err == nil {
		c.err = opt.Errorf(opt.KindInputValidation, c.op, "row %d: %s: cannot parse %q", c.row, field, v)
	}
}

func (c *cells) getFloat(field string) *float64 {
	v := c.get(field)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		c.fail(field, v)
		return nil
	}
	return &f
}

func (c *cells) getInt(field string) *int {
	v := c.get(field)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		// capacities exported as 40.0
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || f != float64(int(f)) {
			c.fail(field, v)
			return nil
		}
		n = int(f)
	}
	return &n
}

func (c *cells) getBool(field string) *bool {
	v := strings.ToLower(c.get(field))
	var b bool
	switch v {
	case "":
		return nil
	case "true", "t", "yes", "y", "1":
		b = true
	case "false", "f", "no", "n", "0":
		b = false
	default:
		c.fail(field, v)
		return nil
	}
	return &b
}
