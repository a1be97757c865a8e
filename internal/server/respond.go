package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/sqlpilot/internal/errs"
	"github.com/koustreak/sqlpilot/internal/logger"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// statusFor maps an error kind onto the HTTP status returned to clients.
func statusFor(kind errs.ErrKind) int {
	switch kind {
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindRejected, errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindInvalidInput, errs.ErrKindUnsupportedFormat:
		return http.StatusBadRequest
	case errs.ErrKindConnectionFailed:
		return http.StatusBadGateway
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindNotIndexed:
		return http.StatusConflict
	case errs.ErrKindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// writeError renders err as {error:{kind,message}}. Errors outside the errs
// taxonomy are logged and reported without their text.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		logger.FromContext(r.Context()).ErrorWith("unhandled error", err, map[string]interface{}{
			"request_id": middleware.GetReqID(r.Context()),
		})
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
			Kind:    errs.ErrKindUnknown.String(),
			Message: "internal error",
		}})
		return
	}

	status := statusFor(e.Kind)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).WarnWith("request failed", err, map[string]interface{}{
			"request_id": middleware.GetReqID(r.Context()),
			"kind":       e.Kind.String(),
		})
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: e.Kind.String(), Message: messageOf(e)}})
}

// messageOf keeps the cause text: for statement failures it carries the
// database's own message.
func messageOf(e *errs.Error) string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

// decode reads a JSON body into v. Unknown fields are rejected.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid request body", err)
	}
	return nil
}
