package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"dronevis/internal/telemetry"
)

// errNoScenario is returned by playback routes before a scenario is loaded.
var errNoScenario = errors.New("no scenario loaded")

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode json response", "err", err)
	}
}

// WriteJSONError writes {"error": msg} with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errNoScenario), telemetry.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, telemetry.ErrNotFound):
		return http.StatusNotFound
	case telemetry.IsLoad(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError writes err with the status statusFor picks. Unexpected errors
// are logged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	WriteJSONError(w, status, err.Error())
}
