package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/forPelevin/stickercut/internal/domain/selection"
	"github.com/forPelevin/stickercut/internal/session"
	"github.com/forPelevin/stickercut/internal/types"
	"github.com/forPelevin/stickercut/internal/usecase"
)

var errNothingToExport = errors.New("nothing to export: load audio and select a region")

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP status and the message clients see.
// Processing failures never expose their cause.
func statusFor(err error) (int, string) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, "upload too large"
	case errors.Is(err, types.ErrInputRejected):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, selection.ErrInvalidRange):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, selection.ErrNoSelection),
		errors.Is(err, selection.ErrNoDuration),
		errors.Is(err, errNothingToExport):
		return http.StatusConflict, err.Error()
	case errors.Is(err, usecase.ErrBusy):
		return http.StatusConflict, err.Error()
	case errors.Is(err, usecase.ErrProcessorUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, usecase.ErrProcessingFailed):
		return http.StatusInternalServerError, usecase.ErrProcessingFailed.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
