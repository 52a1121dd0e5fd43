package utils

import (
	"encoding/json"
	"net/http"

	"teamfeed/pkg/errs"
)

// Envelope is the JSON response shape shared by every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WriteSuccess writes {"success":true,"data":...} with the given status.
func WriteSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(Envelope{Success: true, Data: data})
}

// WriteError maps err through the error taxonomy to a status code and
// writes {"success":false,"error":...}.
func WriteError(w http.ResponseWriter, err error) {
	WriteErrorMsg(w, errs.HTTPStatus(err), err.Error())
}

// WriteErrorMsg writes an error envelope with an explicit status.
func WriteErrorMsg(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: false, Error: msg})
}
