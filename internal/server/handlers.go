package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/sqlpilot/internal/catalog"
	"github.com/koustreak/sqlpilot/internal/database"
	"github.com/koustreak/sqlpilot/internal/errs"
	"github.com/koustreak/sqlpilot/internal/export"
	"github.com/koustreak/sqlpilot/internal/validator"
)

type sqlRequest struct {
	ConnectionID int64  `json:"connection_id"`
	SQL          string `json:"sql"`
}

type validateRequest struct {
	ConnectionID int64  `json:"connection_id,omitempty"`
	DBType       string `json:"db_type,omitempty"`
	SQL          string `json:"sql"`
}

type nlRequest struct {
	ConnectionID int64  `json:"connection_id"`
	Question     string `json:"question"`
}

// resultBody is the JSON form of a database.Result: columns/rows for
// row-returning statements, rows_affected/message otherwise.
type resultBody struct {
	Columns      []string         `json:"columns,omitempty"`
	Rows         *database.RowSet `json:"rows,omitempty"`
	RowCount     *int             `json:"row_count,omitempty"`
	RowsAffected *int64           `json:"rows_affected,omitempty"`
	Message      string           `json:"message,omitempty"`
}

func newResultBody(res *database.Result) resultBody {
	if res.Tabular() {
		n := res.RowSet.Len()
		return resultBody{Columns: res.RowSet.Columns, Rows: res.RowSet, RowCount: &n}
	}
	affected := res.RowsAffected
	return resultBody{RowsAffected: &affected, Message: "Query executed successfully"}
}

type nlResponse struct {
	SQL          string        `json:"sql"`
	ExportFormat export.Format `json:"export_format,omitempty"`
	Result       resultBody    `json:"result"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- connections ---

func (s *Server) createConnection(w http.ResponseWriter, r *http.Request) {
	var in catalog.ConnectionInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if _, ok := database.ParseDriver(in.DBType); !ok {
		writeError(w, r, errs.Newf(errs.ErrKindInvalidInput, "unsupported db_type %q", in.DBType))
		return
	}

	conn, err := s.store.CreateConnection(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.indexer.Trigger(r.Context(), conn.ID)

	writeJSON(w, http.StatusCreated, conn)
}

func (s *Server) listConnections(w http.ResponseWriter, r *http.Request) {
	skip, err := intQuery(r, "skip", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit", catalog.DefaultListLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conns, err := s.store.ListConnections(r.Context(), skip, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conns)
}

func (s *Server) getConnection(w http.ResponseWriter, r *http.Request) {
	id, err := connectionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	conn, err := s.store.GetConnection(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (s *Server) deleteConnection(w http.ResponseWriter, r *http.Request) {
	id, err := connectionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DeleteConnection(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// indexConnection re-indexes in the background (202), or inline with
// ?wait=true (200 with the report).
func (s *Server) indexConnection(w http.ResponseWriter, r *http.Request) {
	id, err := connectionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	wait := false
	if v := r.URL.Query().Get("wait"); v != "" {
		if wait, err = strconv.ParseBool(v); err != nil {
			writeError(w, r, errs.Newf(errs.ErrKindInvalidInput, "wait must be a boolean, got %q", v))
			return
		}
	}

	if wait {
		report, err := s.indexer.Index(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	if _, err := s.store.GetConnection(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	if !s.indexer.Trigger(r.Context(), id) {
		writeError(w, r, errs.New(errs.ErrKindUnavailable, "indexer is shutting down"))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"connection_id": id, "status": "indexing"})
}

func (s *Server) getSchema(w http.ResponseWriter, r *http.Request) {
	id, err := connectionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.store.GetConnection(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	tables, err := s.store.GetTables(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tables == nil {
		tables = []*catalog.Table{}
	}
	writeJSON(w, http.StatusOK, tables)
}

func (s *Server) previewTable(w http.ResponseWriter, r *http.Request) {
	id, err := connectionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.executor.Preview(r.Context(), id, chi.URLParam(r, "table"), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultBody(res))
}

// --- query ---

// validateSQL checks the text as the target would read it: the dialect comes
// from connection_id when given, else from db_type, else PostgreSQL.
func (s *Server) validateSQL(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	dbType := req.DBType
	if req.ConnectionID != 0 {
		conn, err := s.store.GetConnection(r.Context(), req.ConnectionID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		dbType = conn.DBType
	}

	driver := database.DriverPostgres
	if dbType != "" {
		d, ok := database.ParseDriver(dbType)
		if !ok {
			writeError(w, r, errs.Newf(errs.ErrKindInvalidInput, "unsupported db_type %q", dbType))
			return
		}
		driver = d
	}
	writeJSON(w, http.StatusOK, validator.CheckFor(driver.Dialect(), req.SQL))
}

func (s *Server) executeSQL(w http.ResponseWriter, r *http.Request) {
	var req sqlRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.executor.Execute(r.Context(), req.ConnectionID, req.SQL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultBody(res))
}

// naturalLanguage translates the question and runs the generated SQL
// through the same validation as any other statement.
func (s *Server) naturalLanguage(w http.ResponseWriter, r *http.Request) {
	if s.translator == nil {
		writeError(w, r, errs.New(errs.ErrKindUnavailable, "natural-language queries are not configured"))
		return
	}
	var req nlRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tr, err := s.translator.Translate(r.Context(), req.ConnectionID, req.Question)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.executor.Execute(r.Context(), req.ConnectionID, tr.SQL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nlResponse{SQL: tr.SQL, ExportFormat: tr.ExportFormat, Result: newResultBody(res)})
}

func connectionID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Newf(errs.ErrKindInvalidInput, "invalid connection id %q", raw)
	}
	return id, nil
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errs.Newf(errs.ErrKindInvalidInput, "%s must be a non-negative integer, got %q", name, raw)
	}
	return n, nil
}
