package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/dunamismax/imaginify/internal/events"
	"github.com/dunamismax/imaginify/internal/session"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSessionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	kind, _ := domain.ParseTransformationType(req.Type)
	owner := ownerFrom(r.Context())

	var existing *domain.ImageRecord
	if id := strings.TrimSpace(req.ImageID); id != "" {
		img, err := s.images.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		existing = &img
	}

	sess, err := s.sessions.Create(owner, kind, existing)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.View())
}

// loadSession resolves the session named in the path for the acting user.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(ownerFrom(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	s.sessions.Delete(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: read upload result: %v", domain.ErrValidation, err))
		return
	}
	if err := sess.Upload(raw); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleEditField(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	var req domain.FieldEditRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := sess.EditField(req.Field, req.Value); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sess.View())
}

func (s *Server) handleSelectAspectRatio(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	var req domain.AspectRatioRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := sess.SelectAspectRatio(req.Key); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	rendered, err := sess.Apply()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transformation_url": rendered,
		"session":            sess.View(),
	})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	var req domain.SaveRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	saved, err := sess.Save(r.Context(), req.Title)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.publish(r.Context(), events.Event{
		Type:    events.TypeImageSaved,
		ImageID: saved.ID,
		Owner:   saved.Owner,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"image":   saved,
		"session": sess.View(),
	})
}
