package http

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"daisycash/internal/blob"
	applog "daisycash/internal/log"
	"daisycash/internal/reconcile"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxImportBody   = 10 << 20
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.reports.Dashboard(r.Context())
	if err != nil {
		s.respondError(w, r, err, applog.OpRead)
		return
	}
	NewJSONResponse().Body(d).Write(w)
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	rep, err := s.reports.Monthly(r.Context(), p.Year, p.Month)
	if err != nil {
		s.respondError(w, r, err, applog.OpRead)
		return
	}
	NewJSONResponse().Body(rep).Write(w)
}

// handleExport renders the workbook fully before writing headers so a
// failure still produces a JSON error.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.reports.Export(r.Context(), p.Year, p.Month, &buf); err != nil {
		s.respondError(w, r, err, applog.OpExport)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment",
		map[string]string{"filename": reconcile.FileName(p.Year, p.Month)}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.WarnContext(r.Context(), "Export download interrupted", "error", err)
	}
}

// handleImport reads a workbook from the "file" field. Per-row problems are
// part of the 200 outcome; an unreadable workbook is a 400.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "workbook too large").Write(w)
			return
		}
		BadRequestError("expected a multipart form with a file field").Write(w)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		BadRequestError("missing file field").Write(w)
		return
	}
	defer file.Close()

	out, err := s.reports.Import(r.Context(), file)
	if err != nil {
		if r.Context().Err() != nil {
			s.logger.WarnContext(r.Context(), "Import cancelled", "processed", out.Processed())
			return
		}
		s.logger.WarnContext(r.Context(), "Import rejected", applog.FieldOperation, applog.OpImport, "error", err)
		BadRequestError(err.Error()).Write(w)
		return
	}
	s.events.LogImport(r.Context(), out.Succeeded, out.Skipped, out.Failed)
	NewJSONResponse().Body(out).Write(w)
}

// handleFile streams a stored receipt. Only the owner can fetch it.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	if s.blobs == nil {
		NotFoundError("not found").Write(w)
		return
	}
	rc, err := s.blobs.Open(r.Context(), ref)
	if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidRef) {
		NotFoundError("not found").Write(w)
		return
	}
	if err != nil {
		s.respondError(w, r, err, applog.OpRead)
		return
	}
	defer rc.Close()

	ct := mime.TypeByExtension(filepath.Ext(ref))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.WarnContext(r.Context(), "Receipt download interrupted", "ref", ref, "error", err)
	}
}
