package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"dronevis/internal/telemetry"
)

func (s *Server) handleVideoUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := int64(s.video.MaxSize())
	r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)
	file, hdr, err := r.FormFile("frame")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.writeError(w, r, &telemetry.ValidationError{Field: "frame", Reason: "exceeds maximum size"})
			return
		}
		s.writeError(w, r, &telemetry.ValidationError{Field: "frame", Reason: err.Error()})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.video.Put(id, hdr.Header.Get("Content-Type"), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "frame": f})
}

func (s *Server) handleVideoFrame(w http.ResponseWriter, r *http.Request) {
	f, err := s.video.Latest(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	h := w.Header()
	h.Set("Content-Type", f.ContentType)
	h.Set("Content-Length", strconv.Itoa(f.Size))
	h.Set("Cache-Control", "no-store")
	h.Set("X-Frame-Id", f.ID)
	h.Set("Last-Modified", f.ReceivedAt.Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}
