package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/law-makers/hlsextract/pkg/models"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ExtractResponse{Success: false, Error: message})
}
