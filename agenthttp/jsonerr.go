package agenthttp

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the JSON body written for any non-2xx response,
// adapted from the teacher's pkg/jsonerr.Response shape down to what
// this module's error paths actually need (a code and a message; no
// additional-fields extension point, since every caller here already
// knows its full error payload ahead of time).
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError works like http.Error but serializes the body as JSON in
// this module's error shape. Callers must still return after calling
// it; writeError does not stop handler execution.
func writeError(w http.ResponseWriter, code, message string, httpStatus int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(httpStatus)
	b, _ := json.Marshal(errorResponse{Code: code, Message: message})
	w.Write(b)
}
