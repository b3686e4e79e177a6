package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/pdf-redactor/internal/logger"
	"github.com/raaihank/pdf-redactor/internal/matchstore"
	"github.com/raaihank/pdf-redactor/internal/pdfdoc"
	"github.com/raaihank/pdf-redactor/internal/preview"
	"github.com/raaihank/pdf-redactor/internal/redact"
	"github.com/raaihank/pdf-redactor/internal/report"
	"github.com/raaihank/pdf-redactor/internal/session"
)

const multipartMemory = 8 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type toggleRequest struct {
	Selected *bool `json:"selected"`
}

type manualRequest struct {
	Text string `json:"text"`
}

type uploadResponse struct {
	Changed bool `json:"changed"`
	session.Summary
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// classify maps a command failure to a status code and a message safe to show users.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, pdfdoc.ErrUnparsableDocument):
		return http.StatusUnprocessableEntity, "The file is not a readable PDF"
	case errors.Is(err, matchstore.ErrManualTextNotFound):
		return http.StatusNotFound, "The text was not found in the document"
	case errors.Is(err, matchstore.ErrUnknownMatch):
		return http.StatusNotFound, "Unknown match"
	case errors.Is(err, pdfdoc.ErrPageOutOfRange):
		return http.StatusNotFound, "Page out of range"
	case errors.Is(err, session.ErrNoDocument):
		return http.StatusConflict, "Upload a document first"
	case errors.Is(err, session.ErrNothingSelected):
		return http.StatusConflict, "Select at least one located match to redact"
	case errors.Is(err, session.ErrNotRedacted):
		return http.StatusConflict, "Redact the document before downloading it"
	case errors.Is(err, report.ErrStaleRecord), errors.Is(err, report.ErrMissingColumn):
		return http.StatusUnprocessableEntity, "The findings file does not match the current document"
	case errors.Is(err, redact.ErrRedactionIO):
		return http.StatusInternalServerError, "Redaction failed, the document was not changed"
	case errors.Is(err, preview.ErrRender):
		return http.StatusInternalServerError, "Preview unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// fail logs a command failure once and answers with its mapped status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, command string, err error) {
	status, message := classify(err)
	log := s.requestLogger(r)
	if status >= http.StatusInternalServerError {
		log.Error("Command failed", zap.String("command", command), zap.Error(err))
	} else {
		log.Info("Command rejected", zap.String("command", command), zap.Int("status_code", status), zap.Error(err))
	}
	writeError(w, status, message)
}

func (s *Server) requestLogger(r *http.Request) *logger.Logger {
	log := s.logger.WithRequestID(getRequestID(r.Context()))
	if userID := getUserID(r.Context()); userID != "" {
		log = log.WithSession(userID)
	}
	return log
}

// current returns the caller's session, answering 409 when there is none.
func (s *Server) current(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.sessions.Lookup(getUserID(r.Context()))
	if !ok {
		writeError(w, http.StatusConflict, "Upload a document first")
		return nil, false
	}
	return sess, true
}

// readUpload reads the multipart file field within the upload limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	if limit := s.config.Server.MaxUploadBytes; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "The file is too large")
		} else {
			writeError(w, http.StatusBadRequest, "Expected a multipart form with a file field")
		}
		return "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Expected a multipart form with a file field")
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.requestLogger(r).Error("Failed to read upload", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Failed to read the file")
		return "", nil, false
	}
	return baseName(header.Filename), data, true
}

// baseName strips any client-side directory, including Windows ones.
func baseName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" {
		return "document.pdf"
	}
	return name
}

// handleUpload handles POST /api/document
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	userID := getUserID(r.Context())
	_, existed := s.sessions.Lookup(userID)
	sess := s.sessions.Get(userID)
	changed, err := sess.Upload(r.Context(), name, data)
	if err != nil {
		// a rejected first upload leaves no session behind
		if !existed && sess.State() == session.StateEmpty {
			s.sessions.Remove(userID)
		}
		s.fail(w, r, "upload", err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Changed: changed, Summary: sess.Summary()})
}

// handleSummary handles GET /api/document
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Lookup(getUserID(r.Context()))
	if !ok {
		writeJSON(w, http.StatusOK, session.Summary{Groups: []session.Group{}})
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

// handleSetPage handles PUT /api/document/page/{n}
func (s *Server) handleSetPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w, r)
	if !ok {
		return
	}
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid page number")
		return
	}
	if err := sess.SetPage(n); err != nil {
		s.fail(w, r, "set_page", err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

// handleToggle handles PUT /api/matches/{id}
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid match id")
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Selected == nil {
		writeError(w, http.StatusBadRequest, `Expected {"selected": true|false}`)
		return
	}
	if err := sess.Toggle(id, *req.Selected); err != nil {
		s.fail(w, r, "toggle", err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

// handleSelectAll handles POST /api/matches/select-all
func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	s.bulk(w, r, "select_all", (*session.Session).SelectAll)
}

// handleClearAll handles POST /api/matches/clear-all
func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	s.bulk(w, r, "clear_all", (*session.Session).ClearAll)
}

func (s *Server) bulk(w http.ResponseWriter, r *http.Request, command string, fn func(*session.Session) error) {
	sess, ok := s.current(w, r)
	if !ok {
		return
	}
	if err := fn(sess); err != nil {
		s.fail(w, r, command, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

// handleDedupe handles POST /api/matches/dedupe
func (s *Server) handleDedupe(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w, r)
	if !ok {
		return
	}
	n, err := sess.Dedupe()
	if err != nil {
		s.fail(w, r, "dedupe", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deselected": n,
		"summary":    sess.Summary(),
	})
}

// handleManual handles POST /api/matches/manual
func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w, r)
	if !ok {
		return
	}

	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, `Expected {"text": "..."}`)
		return
	}
	ids, err := sess.AddManual(req.Text)
	if err != nil {
		s.fail(w, r, "manual", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ids":     ids,
		"summary": sess.Summary(),
	})
}

// handleRedact handles POST /api/redact
func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w, r)
	if !ok {
		return
	}
	if err := sess.Redact(); err != nil {
		s.fail(w, r, "redact", err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

// handleDownload handles GET /api/download
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w, r)
	if !ok {
		return
	}
	name, contentType, data, err := sess.Download()
	if err != nil {
		s.fail(w, r, "download", err)
		return
	}
	writeFile(w, name, contentType, data)
}

// handlePreview handles GET /api/preview/{page}
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w, r)
	if !ok {
		return
	}
	page, err := strconv.Atoi(mux.Vars(r)["page"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid page number")
		return
	}
	thumb := 0
	if v := r.URL.Query().Get("thumb"); v != "" {
		if thumb, err = strconv.Atoi(v); err != nil || thumb < 0 {
			writeError(w, http.StatusBadRequest, "Invalid thumbnail width")
			return
		}
	}

	png, pages, err := sess.Preview(page, thumb)
	if err != nil {
		s.fail(w, r, "preview", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Page-Count", strconv.Itoa(pages))
	w.Write(png)
}

// handleExport handles GET /api/report/{format}
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w, r)
	if !ok {
		return
	}
	format := report.ParseFormat(mux.Vars(r)["format"])
	if format == "" {
		writeError(w, http.StatusBadRequest, "Unsupported report format")
		return
	}

	sum := sess.Summary()
	if sum.Filename == "" {
		s.fail(w, r, "export", session.ErrNoDocument)
		return
	}
	records := findingRecords(sum.Filename, sess.Matches())

	var buf bytes.Buffer
	var err error
	name := strings.TrimSuffix(sum.Filename, path.Ext(sum.Filename))
	if format == report.FormatDOCX {
		summary := report.Summarize(sum.Filename, sum.Pages, records)
		summary.Redacted = sum.Redacted
		err = report.WriteSummary(&buf, summary)
		name += "_summary.docx"
	} else {
		err = report.Write(&buf, format, records)
		name += "_findings." + string(format)
	}
	if err != nil {
		s.fail(w, r, "export", err)
		return
	}
	writeFile(w, name, format.ContentType(), buf.Bytes())
}

// handleImport handles POST /api/report, applying the selection of a reviewed findings file
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.current(w, r)
	if !ok {
		return
	}
	name, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	format := report.DetectFileFormat(name)
	if f := r.URL.Query().Get("format"); f != "" {
		format = report.ParseFormat(f)
	}
	if format == "" || format == report.FormatDOCX {
		writeError(w, http.StatusBadRequest, "Unsupported findings format")
		return
	}

	records, err := report.Read(data, format)
	if err != nil {
		s.requestLogger(r).Info("Unreadable findings file", zap.String("format", string(format)), zap.Error(err))
		if errors.Is(err, report.ErrMissingColumn) {
			s.fail(w, r, "import", err)
			return
		}
		writeError(w, http.StatusBadRequest, "The findings file could not be read")
		return
	}

	views := sess.Matches()
	matches := make([]matchstore.Match, len(views))
	for i, v := range views {
		matches[i] = v.Match
	}
	selection, err := report.Selection(sess.Filename(), records, matches)
	if err != nil {
		s.fail(w, r, "import", err)
		return
	}
	if err := sess.ApplySelection(selection); err != nil {
		s.fail(w, r, "import", err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

func findingRecords(document string, views []session.MatchView) []report.FindingRecord {
	records := make([]report.FindingRecord, len(views))
	for i, v := range views {
		records[i] = report.NewRecord(document, v.Match, v.Selected)
	}
	return records
}

func writeFile(w http.ResponseWriter, name, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}
