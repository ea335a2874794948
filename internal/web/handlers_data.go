package web

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/rejectlist/internal/core"
	"github.com/JonMunkholm/rejectlist/internal/logging"
)

// exportTimeLayout renders timestamps in CSV exports.
const exportTimeLayout = time.RFC3339Nano

// handleListClients returns the records matching the search, status and
// name query parameters, ordered by id.
func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.List(r.Context(), queryFromRequest(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if records == nil {
		records = []core.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleGetClient returns one record.
func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	rec, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// exportColumns are the CSV header names, in the same order as the API.
// The importer recognizes every one of them.
var exportColumns = func() []string {
	cols := []string{"id"}
	for _, spec := range core.FieldSpecs {
		if spec.Name == "name" {
			cols = append(cols, "name", "proposal_date")
			continue
		}
		cols = append(cols, spec.Name)
	}
	return append(cols, "created_at", "updated_at")
}()

// handleExportClients streams the filtered records as a CSV download.
func (s *Server) handleExportClients(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.List(r.Context(), queryFromRequest(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	// Set CSV download headers with timestamp
	timestamp := time.Now().In(s.service.Location()).Format("20060102_150405")
	filename := fmt.Sprintf("reject_list_%s.csv", timestamp)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(exportColumns); err != nil {
		logging.FromContext(r.Context()).Error("csv export failed", "error", err)
		return
	}
	for i := range records {
		if err := csvWriter.Write(exportRow(&records[i])); err != nil {
			logging.FromContext(r.Context()).Error("csv export failed", "row", i, "error", err)
			return
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		logging.FromContext(r.Context()).Error("csv export failed", "error", err)
		return
	}
	logging.FromContext(r.Context()).Info("records exported", "count", len(records))
}

// exportRow formats rec in exportColumns order. Null values are empty cells.
func exportRow(rec *core.Record) []string {
	row := []string{strconv.FormatInt(rec.ID, 10)}
	for _, spec := range core.FieldSpecs {
		row = append(row, deref(*spec.Value(rec)))
		if spec.Name == "name" {
			pd := ""
			if rec.ProposalDate != nil {
				pd = rec.ProposalDate.Format(exportTimeLayout)
			}
			row = append(row, pd)
		}
	}
	return append(row,
		rec.CreatedAt.Format(exportTimeLayout),
		rec.UpdatedAt.Format(exportTimeLayout),
	)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
