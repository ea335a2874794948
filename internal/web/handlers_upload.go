package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/JonMunkholm/rejectlist/internal/core"
	"github.com/JonMunkholm/rejectlist/internal/logging"
)

// handleImportClients ingests a CSV file through the bulk path. The file is
// either the raw request body or the "file" part of a multipart form.
func (s *Server) handleImportClients(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Ingest.MaxBodySize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	src, filename, err := csvSource(r, maxSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer src.Close()

	items, err := core.ReadCSV(src, s.service.Location())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("csv import parsed", "file", filename, "rows", len(items))
	s.writeBatchResult(w, r, items)
}

// csvSource returns the uploaded CSV stream and a name for logging.
func csvSource(r *http.Request, maxSize int64) (io.ReadCloser, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, "body", nil
	}

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("%w: invalid form", errBadRequest)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("%w: no file provided", errBadRequest)
	}
	return file, header.Filename, nil
}
