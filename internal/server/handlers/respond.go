package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/namelens/entryguard/internal/errors"
)

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

// respondWithError writes err as a JSON error envelope with the status its
// code maps to.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
