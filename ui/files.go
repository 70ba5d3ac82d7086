package ui

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"exprview/domain/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// fileRouter serves prepared downloads and session reports. It is mounted
// into the gin engine, so routes carry their full paths.
func (s *Server) fileRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger, middleware.Recoverer)
	r.Get("/downloads/{id}", s.serveDownload)
	r.Get("/downloads/{id}/{name}", s.serveDownload)
	r.Get("/reports/{session}", s.serveReport)
	return r
}

func (s *Server) serveDownload(w http.ResponseWriter, r *http.Request) {
	rc, name, err := s.service.OpenDownload(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeHTTPError(w, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("Download %s interrupted: %v", chi.URLParam(r, "id"), err)
	}
}

// serveReport renders a session summary; ?format=html for HTML, Markdown
// otherwise
func (s *Server) serveReport(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseSessionID(chi.URLParam(r, "session"))
	if err != nil {
		writeHTTPError(w, err)
		return
	}
	asHTML := r.URL.Query().Get("format") == "html"
	body, err := s.service.Report(id, asHTML)
	if err != nil {
		writeHTTPError(w, err)
		return
	}
	if asHTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	}
	w.Write(body)
}
