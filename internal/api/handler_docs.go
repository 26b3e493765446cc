package api

import (
	"encoding/json"
	"net/http"

	"github.com/fiatjaf/dancing-couches/internal/auth"
	"github.com/fiatjaf/dancing-couches/internal/replica"
	"github.com/fiatjaf/dancing-couches/internal/storage"
	"github.com/fiatjaf/dancing-couches/pkg/model"
)

func (s *Server) handleRevsDiff(w http.ResponseWriter, r *http.Request) {
	var requested map[string][]string
	if err := json.NewDecoder(r.Body).Decode(&requested); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	diff, err := s.replica.RevsDiff(r.Context(), r.PathValue("tenant"), r.PathValue("dataset"), requested)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func (s *Server) handleAllDocs(w http.ResponseWriter, r *http.Request) {
	tenant, dataset := r.PathValue("tenant"), r.PathValue("dataset")

	var keys []string
	if raw := r.URL.Query().Get("keys"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &keys); err != nil {
			http.Error(w, "Invalid keys parameter", http.StatusBadRequest)
			return
		}
	}

	// Local documents live outside the ledger; serve them directly and keep
	// them out of the batched resolution.
	var localRows []replica.AllDocsRow
	ledgerKeys := keys[:0]
	for _, key := range keys {
		if !model.IsLocalID(key) {
			ledgerKeys = append(ledgerKeys, key)
			continue
		}
		doc, err := s.replica.LocalGet(r.Context(), tenant, dataset, key)
		if err != nil {
			continue
		}
		localRows = append(localRows, replica.AllDocsRow{
			ID:    key,
			Key:   key,
			Value: replica.AllDocsValue{Rev: doc.Rev()},
			Doc:   doc,
		})
	}

	creds := auth.FromRequest(r)
	result, err := s.replica.AllDocs(r.Context(), tenant, dataset, creds, ledgerKeys)
	if err != nil {
		writeError(w, err)
		return
	}
	result.Rows = append(result.Rows, localRows...)
	result.TotalRows = len(result.Rows)
	writeJSON(w, http.StatusOK, result)
}

type bulkGetRequest struct {
	Docs []struct {
		ID  string `json:"id"`
		Rev string `json:"rev"`
	} `json:"docs"`
}

func (s *Server) handleBulkGet(w http.ResponseWriter, r *http.Request) {
	var req bulkGetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	reqs := make([]storage.DocRev, 0, len(req.Docs))
	for _, d := range req.Docs {
		reqs = append(reqs, storage.DocRev{DocID: d.ID, Rev: d.Rev})
	}

	creds := auth.FromRequest(r)
	results, err := s.replica.BulkGet(r.Context(), r.PathValue("tenant"), r.PathValue("dataset"), creds, reqs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

type bulkDocsRequest struct {
	Docs     []model.Document `json:"docs"`
	NewEdits *bool            `json:"new_edits"`
}

func (s *Server) handleBulkDocs(w http.ResponseWriter, r *http.Request) {
	tenant, dataset := r.PathValue("tenant"), r.PathValue("dataset")

	var req bulkDocsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	creds := auth.FromRequest(r)

	// new_edits defaults to true: writes on that path are restricted to
	// local documents, everything else is refused per document.
	if req.NewEdits == nil || *req.NewEdits {
		results := make([]replica.DocResult, 0, len(req.Docs))
		for _, doc := range req.Docs {
			id := doc.ID()
			if !doc.IsLocal() {
				results = append(results, replica.DocResult{ID: id, Error: "unauthorized"})
				continue
			}
			rev, err := s.replica.LocalPut(r.Context(), tenant, dataset, id, doc)
			if err != nil {
				results = append(results, replica.DocResult{ID: id, Error: "bad_request"})
				continue
			}
			results = append(results, replica.DocResult{ID: id, Rev: rev, OK: true})
		}
		writeJSON(w, http.StatusCreated, results)
		return
	}

	endpoint, err := s.replica.Resolve(r.Context(), tenant, dataset)
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.auth.Allowed(r.Context(), endpoint, creds) {
		writeError(w, model.ErrUnauthorized)
		return
	}

	results, err := s.replica.BulkDocs(r.Context(), tenant, dataset, creds, req.Docs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, results)
}

func (s *Server) handleLocalGet(w http.ResponseWriter, r *http.Request) {
	docID := model.LocalPrefix + r.PathValue("id")
	doc, err := s.replica.LocalGet(r.Context(), r.PathValue("tenant"), r.PathValue("dataset"), docID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleLocalPut(w http.ResponseWriter, r *http.Request) {
	docID := model.LocalPrefix + r.PathValue("id")

	var body model.Document
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rev, err := s.replica.LocalPut(r.Context(), r.PathValue("tenant"), r.PathValue("dataset"), docID, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"ok":  true,
		"id":  docID,
		"rev": rev,
	})
}
