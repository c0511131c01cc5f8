package api

import (
	"encoding/json"
	"net/http"

	"github.com/karthik-kata/StingerOps/internal/model"
	"github.com/karthik-kata/StingerOps/internal/opt"
)

// Problem is an RFC7807 body, used by every endpoint except the
// optimization envelope.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeFailure renders err as a {success:false} envelope with the status of its kind.
func writeFailure(w http.ResponseWriter, err error, source string) {
	writeJSON(w, statusFor(err), model.OptimizeResponse{Report: opt.FailureReport(err), DataSource: source})
}
