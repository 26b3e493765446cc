package api

import (
	"net/http"
	"strconv"

	"github.com/fiatjaf/dancing-couches/internal/auth"
)

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	since, err := queryInt64(r, "since", 0)
	if err != nil {
		http.Error(w, "Invalid since parameter", http.StatusBadRequest)
		return
	}
	limit, err := queryInt64(r, "limit", 0)
	if err != nil {
		http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
		return
	}

	creds := auth.FromRequest(r)
	result, err := s.replica.Changes(r.Context(), r.PathValue("tenant"), r.PathValue("dataset"), creds, since, int(limit))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func queryInt64(r *http.Request, key string, fallback int64) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
