package web

import (
	"net/http"

	"github.com/JonMunkholm/rejectlist/internal/core"
)

// messageResponse is the envelope for write results.
type messageResponse struct {
	Message string       `json:"message"`
	Data    *core.Record `json:"data,omitempty"`
}

// handleCreateClients accepts a single JSON object or a JSON array.
// A single duplicate is acknowledged with 200 and not stored; a batch always
// answers 201 with created and skipped counts.
func (s *Server) handleCreateClients(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, s.cfg.Ingest.MaxBodySize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isJSONArray(body) {
		s.createBatch(w, r, body)
		return
	}

	f, err := s.service.Decode(body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.service.Create(r.Context(), f)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, messageResponse{Message: "Duplicate client ignored"})
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "Client details added", Data: res.Record})
}

func (s *Server) createBatch(w http.ResponseWriter, r *http.Request, body []byte) {
	items, err := s.service.DecodeBatch(body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeBatchResult(w, r, items)
}

// writeBatchResult ingests items and writes the 201 summary.
func (s *Server) writeBatchResult(w http.ResponseWriter, r *http.Request, items []core.BatchItem) {
	res, err := s.service.CreateBatch(r.Context(), items)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if res.Created == nil {
		res.Created = []core.Record{}
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleUpdateClient applies a partial update. A submitted id is ignored.
func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	// A missing record wins over a bad payload.
	if _, err := s.service.Get(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	body, err := readBody(w, r, s.cfg.Ingest.MaxBodySize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	f, err := s.service.Decode(body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	rec, err := s.service.Update(r.Context(), id, f)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Client details updated successfully", Data: rec})
}

// handleDeleteClient removes a record. Success has no body.
func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
