package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/sqlpilot/internal/errs"
	"github.com/koustreak/sqlpilot/internal/export"
	"github.com/koustreak/sqlpilot/internal/logger"
)

type exportRequest struct {
	ConnectionID int64  `json:"connection_id"`
	SQL          string `json:"sql"`
	Format       string `json:"format"`
	Archive      bool   `json:"archive"`
}

var errArchiveDisabled = errs.New(errs.ErrKindUnavailable, "export archiving is not configured")

// exportQuery runs the statement and either streams the encoded result as
// an attachment or uploads it and answers with a download link.
func (s *Server) exportQuery(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := export.ParseFormat(req.Format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Archive && s.archiver == nil {
		writeError(w, r, errArchiveDisabled)
		return
	}

	res, err := s.executor.Execute(r.Context(), req.ConnectionID, req.SQL)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if req.Archive {
		a, err := s.archiver.Archive(r.Context(), res, f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
		return
	}

	chunks, err := export.Stream(res, f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", f.Filename()))
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	for chunk, err := range chunks {
		if err != nil {
			// Headers are gone; all that is left is to cut the body short.
			logger.FromContext(r.Context()).ErrorWith("export stream failed", err, map[string]interface{}{
				"request_id":    middleware.GetReqID(r.Context()),
				"connection_id": req.ConnectionID,
			})
			panic(http.ErrAbortHandler)
		}
		if _, err := w.Write(chunk); err != nil {
			return
		}
		_ = rc.Flush()
	}
}

func (s *Server) listExports(w http.ResponseWriter, r *http.Request) {
	if s.archiver == nil {
		writeError(w, r, errArchiveDisabled)
		return
	}
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	objects, err := s.archiver.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, objects)
}

// getExport redirects to a fresh presigned URL. The key may be given with
// or without its exports/ prefix.
func (s *Server) getExport(w http.ResponseWriter, r *http.Request) {
	if s.archiver == nil {
		writeError(w, r, errArchiveDisabled)
		return
	}
	key := chi.URLParam(r, "*")
	if !strings.HasPrefix(key, export.KeyPrefix) {
		key = export.KeyPrefix + key
	}

	a, err := s.archiver.Link(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, a.URL, http.StatusFound)
}
