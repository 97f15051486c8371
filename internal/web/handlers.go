package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/salesimport/internal/core"
	"github.com/JonMunkholm/salesimport/internal/importer"
	"github.com/JonMunkholm/salesimport/internal/logging"
	"github.com/JonMunkholm/salesimport/internal/sheet"
)

var errNoFile = errors.New("no file provided")

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleImport runs an uploaded spreadsheet (multipart field "file") and
// returns the completed run. Row failures are reported inside the result
// with status 200; only admission and request errors use error statuses.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxFileSize+multipartOverhead)
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.respondError(w, r, fmt.Errorf("%w: %w", core.ErrFileTooLarge, err), http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("invalid form: %w", err), http.StatusBadRequest)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if s.opts.MaxFileSize > 0 && header.Size > s.opts.MaxFileSize {
		s.respondError(w, r, core.ErrFileTooLarge, http.StatusRequestEntityTooLarge)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	run, err := s.service.Import(ctx, header.Filename, file)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, r, http.StatusOK, run)
}

// handleTemplate serves the blank import workbook.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="import_template.xlsx"`)
	if err := sheet.WriteTemplate(w, importer.Template()); err != nil {
		// Headers are gone once the workbook starts streaming.
		logging.FromContext(r.Context()).Error("failed to write template", "error", err)
	}
}

// handleListRuns returns recent runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", core.DefaultHistoryLimit)
	runs, err := s.service.Runs(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"runs": runs})
}

// handleGetRun returns one run with its full result.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

// handleRunErrorsCSV downloads a run's error list.
func (s *Server) handleRunErrorsCSV(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	filename := fmt.Sprintf("import_errors_%s.csv", run.StartedAt.UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if err := core.WriteErrorsCSV(w, run.Result.Errors); err != nil {
		logging.FromContext(r.Context()).Error("failed to write errors csv", "run_id", run.ID, "error", err)
	}
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*core.Run, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("invalid run ID: %w", err), http.StatusBadRequest)
		return nil, false
	}
	run, err := s.service.Run(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return nil, false
	}
	return run, true
}

// handleHealth reports store connectivity and import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]any{
		"status":  "ok",
		"imports": s.service.Limiter().Status(),
	}
	status := http.StatusOK
	if err := s.service.Ping(ctx); err != nil {
		logging.FromContext(ctx).Warn("health check failed", "error", err)
		body["status"] = "unavailable"
		body["error"] = core.MapError(err).Message
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, body)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
