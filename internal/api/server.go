package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fiatjaf/dancing-couches/pkg/model"
)

type Server struct {
	replica ReplicaService
	auth    AuthService
	metrics http.Handler
	mux     *http.ServeMux
}

func NewServer(replica ReplicaService, auth AuthService, metricsHandler http.Handler) *Server {
	s := &Server{
		replica: replica,
		auth:    auth,
		metrics: metricsHandler,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// CORS headers; replicating clients send credentials cross-origin
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /_admin/dbs", s.handleRegisterDatabase)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}

	s.mux.HandleFunc("GET /{tenant}/{$}", s.handleServerInfo)
	s.mux.HandleFunc("GET /{tenant}/{dataset}/{$}", s.handleDatabaseInfo)

	s.mux.HandleFunc("GET /{tenant}/{dataset}/_local/{id}", s.handleLocalGet)
	s.mux.HandleFunc("PUT /{tenant}/{dataset}/_local/{id}", s.handleLocalPut)

	s.mux.HandleFunc("GET /{tenant}/{dataset}/_changes", s.handleChanges)
	s.mux.HandleFunc("POST /{tenant}/{dataset}/_changes", s.handleChanges)

	s.mux.HandleFunc("POST /{tenant}/{dataset}/_revs_diff", s.handleRevsDiff)
	s.mux.HandleFunc("GET /{tenant}/{dataset}/_all_docs", s.handleAllDocs)
	s.mux.HandleFunc("POST /{tenant}/{dataset}/_bulk_get", s.handleBulkGet)
	s.mux.HandleFunc("POST /{tenant}/{dataset}/_bulk_docs", s.handleBulkDocs)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Reason: err.Error()})
	case errors.Is(err, model.ErrBadRevision):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Reason: err.Error()})
	case errors.Is(err, model.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Reason: err.Error()})
	case errors.Is(err, model.ErrBackendWriteFailed):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "service_unavailable", Reason: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error", Reason: err.Error()})
	}
}
