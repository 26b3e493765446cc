package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("hello"))
}

func (s *Server) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"couchdb": "Welcome",
		"version": "0",
		"vendor": map[string]interface{}{
			"name":    "fake couchdb",
			"version": "5462",
			"variant": "crazy",
		},
	})
}

func (s *Server) handleDatabaseInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.replica.Info(r.Context(), r.PathValue("tenant"), r.PathValue("dataset"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type registerDatabaseRequest struct {
	Tenant   string `json:"tenant"`
	Dataset  string `json:"dataset"`
	Endpoint string `json:"endpoint"`
}

func (s *Server) handleRegisterDatabase(w http.ResponseWriter, r *http.Request) {
	var req registerDatabaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Tenant == "" || req.Dataset == "" || req.Endpoint == "" {
		http.Error(w, "tenant, dataset and endpoint are required", http.StatusBadRequest)
		return
	}
	if err := s.replica.RegisterDatabase(r.Context(), req.Tenant, req.Dataset, req.Endpoint); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
}
