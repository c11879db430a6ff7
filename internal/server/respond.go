package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"augplayground/internal/apperror"
)

// errorBody is the JSON shape of every error response
type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("failed to write response", slog.String("error", err.Error()))
	}
}

// writeError maps err to its status and detail. Errors outside the
// taxonomy are reported as a bare 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		err = apperror.InvalidInput("Upload exceeds the %d byte limit.", s.cfg.Upload.MaxBytes)
	}

	appErr, ok := apperror.As(err)
	if !ok {
		s.metrics.RequestFailed("internal")
		s.logger.Error("unhandled error",
			slog.String("request_id", GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "Internal server error."})
		return
	}
	s.metrics.RequestFailed(string(appErr.Kind))
	writeJSON(w, appErr.StatusCode(), errorBody{Detail: appErr.Detail()})
}

// decodeBody decodes a JSON request body into dst
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.InvalidInput("Invalid JSON body.")
	}
	return nil
}
