package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/deepscan/internal/model"
)

// SessionStatus is returned by GET /v1/sessions/{id}
type SessionStatus struct {
	SessionID string             `json:"session_id"`
	InFlight  bool               `json:"in_flight"`
	Media     *model.MediaHandle `json:"media,omitempty"`
	Report    *model.APIResponse `json:"report,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// HealthStatus is returned by GET /healthz
type HealthStatus struct {
	Status   string  `json:"status"`
	Sessions int     `json:"sessions"`
	Uptime   float64 `json:"uptime_seconds"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	// 1. Media type from the route
	mt, err := model.ParseMediaType(r.PathValue("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_media_type", err.Error())
		return
	}

	// 2. Upload, bounded before parsing
	r.Body = http.MaxBytesReader(w, r.Body, s.intake.MaxBytes()+multipartOverhead)
	file, header, err := r.FormFile(string(mt))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.reject(w, &model.IntakeError{Kind: model.IntakeTooLarge, Name: "upload", Message: "upload exceeds size limit"})
			return
		}
		writeError(w, http.StatusBadRequest, "missing_file", fmt.Sprintf("expected multipart field %q", mt))
		return
	}
	defer func() { _ = file.Close() }()

	// 3. Intake validation
	handle, err := s.intake.Accept(header.Filename, file, header.Size, header.Header.Get("Content-Type"), mt)
	if err != nil {
		s.reject(w, err)
		return
	}

	// 4. Session scoping: a new analysis supersedes the pending one
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	w.Header().Set(SessionHeader, sessionID)
	sess := s.sessions.GetOrCreate(sessionID)

	task, err := s.pipeline.Start(r.Context(), handle.MediaType, handle)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_media_type", err.Error())
		return
	}
	gen := sess.Begin(task, handle)

	// 5. Wait out the simulated latency
	report, err := task.Wait(r.Context())
	if err != nil {
		sess.Finish(gen, nil)
		s.writeAnalysisError(w, sessionID, err)
		return
	}
	if !sess.Finish(gen, report) {
		s.writeAnalysisError(w, sessionID, model.ErrCanceled)
		return
	}

	s.logger.Info("analysis served",
		"session", sessionID,
		"id", report.ID,
		"media_type", report.MediaType,
		"file", handle.Name,
		"verdict", report.Verdict,
	)
	writeJSON(w, http.StatusOK, model.NewAPIResponse(report))
}

func (s *Server) writeAnalysisError(w http.ResponseWriter, sessionID string, err error) {
	if errors.Is(err, model.ErrCanceled) {
		s.logger.Debug("analysis superseded or reset", "session", sessionID)
		writeError(w, http.StatusConflict, "canceled", "analysis was cancelled before completion")
		return
	}
	s.logger.Error("analysis failed", "session", sessionID, "error", err)
	writeError(w, http.StatusInternalServerError, "internal", "analysis failed")
}

// reject maps an intake failure to a 4xx response; it is never reported as a score
func (s *Server) reject(w http.ResponseWriter, err error) {
	ie, ok := model.IsIntakeError(err)
	if !ok {
		if model.IsInvalidMediaType(err) {
			writeError(w, http.StatusBadRequest, "invalid_media_type", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if s.recorder != nil {
		s.recorder.ObserveRejection(ie.Kind)
	}

	status := http.StatusBadRequest
	switch ie.Kind {
	case model.IntakeTooLarge:
		status = http.StatusRequestEntityTooLarge
	case model.IntakeUnsupported:
		status = http.StatusUnsupportedMediaType
	case model.IntakeMismatch:
		status = http.StatusUnprocessableEntity
	}
	writeError(w, status, string(ie.Kind), ie.Message)
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown session")
		return
	}

	status := SessionStatus{
		SessionID: id,
		InFlight:  sess.InFlight(),
		UpdatedAt: sess.UpdatedAt(),
	}
	if media, ok := sess.Media(); ok {
		status.Media = &media
	}
	if report, ok := sess.Last(); ok {
		resp := model.NewAPIResponse(report)
		status.Report = &resp
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Reset(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "not_found", "unknown session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:   "ok",
		Sessions: s.sessions.Len(),
		Uptime:   time.Since(s.started).Seconds(),
	})
}

// rateLimited answers 429 once a client exhausts its bucket
func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next(w, r)
	}
}

// statusWriter captures the response code for metrics
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.code = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next(sw, r)
		if s.recorder != nil {
			s.recorder.ObserveRequest(route, sw.code)
		}
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, model.NewAPIError(kind, message))
}
