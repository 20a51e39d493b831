package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/diffsec/vectorcore/internal/apierr"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apierr.Status(err), map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apierr.BadRequest("malformed request body: %v", err)
	}
	return nil
}
