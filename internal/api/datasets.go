package api

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/karthik-kata/StingerOps/internal/dataset"
	"github.com/karthik-kata/StingerOps/internal/model"
	"github.com/karthik-kata/StingerOps/internal/opt"
)

// DatasetsHandler handles POST/GET/DELETE /v1/datasets/{kind}. Uploads
// replace the tenant's rows of that kind.
func (s *Server) DatasetsHandler(w http.ResponseWriter, r *http.Request) {
	kind, err := dataset.ParseKind(strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/datasets/"), "/"))
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Unknown dataset", err.Error(), r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost, http.MethodPut:
		p, ok := s.requirePlanner(w, r)
		if !ok {
			return
		}
		d, err := decodeDataset(w, r, kind)
		if err == nil {
			err = d.Validate()
		}
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid dataset", err.Error(), r.URL.Path)
			return
		}
		importID, count, err := s.Store.SaveDataset(r.Context(), p.Tenant, kind, d)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Save dataset failed", err.Error(), r.URL.Path)
			return
		}
		imp := model.DatasetImport{ImportID: importID, Kind: string(kind), Count: count}
		s.Pub.Emit(r.Context(), p.Tenant, model.EventDatasetImported, imp)
		writeJSON(w, http.StatusCreated, imp)
	case http.MethodGet:
		p := s.getPrincipal(r)
		d, err := s.Store.LoadDataset(r.Context(), p.Tenant)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Load dataset failed", err.Error(), r.URL.Path)
			return
		}
		if strings.Contains(r.Header.Get("Accept"), "text/csv") {
			w.Header().Set("Content-Type", "text/csv")
			w.WriteHeader(http.StatusOK)
			_ = d.WriteCSV(kind, w)
			return
		}
		var items any
		switch kind {
		case dataset.Buildings:
			items = nonNil(d.Buildings)
		case dataset.Sources:
			items = nonNil(d.Sources)
		default:
			items = nonNil(d.Stops)
		}
		writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "items": items})
	case http.MethodDelete:
		p, ok := s.requirePlanner(w, r)
		if !ok {
			return
		}
		if err := s.Store.ClearDataset(r.Context(), p.Tenant, kind); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Clear dataset failed", err.Error(), r.URL.Path)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// decodeDataset reads a CSV body when Content-Type is text/csv, otherwise a
// JSON array of rows.
func decodeDataset(w http.ResponseWriter, r *http.Request, kind dataset.Kind) (dataset.Dataset, error) {
	var d dataset.Dataset
	body := http.MaxBytesReader(w, r.Body, maxOptimizeBody)
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "text/csv" {
		err := d.ReadCSV(kind, body)
		return d, err
	}
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	var err error
	switch kind {
	case dataset.Buildings:
		err = dec.Decode(&d.Buildings)
	case dataset.Sources:
		err = dec.Decode(&d.Sources)
	default:
		err = dec.Decode(&d.Stops)
	}
	if err != nil {
		return d, &opt.Error{Kind: opt.KindInputValidation, Op: "decode " + string(kind), Err: err}
	}
	return d, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
