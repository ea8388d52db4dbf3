package api

import (
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/dunamismax/imaginify/internal/events"
	"github.com/dunamismax/imaginify/internal/queue"
	"github.com/go-chi/chi/v5"
)

type exportRequest struct {
	WebhookURL string `json:"webhook_url,omitempty"`
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	images, err := s.images.ListByOwner(r.Context(), ownerFrom(r.Context()), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": images})
}

// loadImage fetches the image in the path and checks the acting user owns it.
func (s *Server) loadImage(w http.ResponseWriter, r *http.Request) (domain.ImageRecord, bool) {
	img, err := s.images.Get(r.Context(), chi.URLParam(r, "imageID"))
	if err != nil {
		s.writeError(w, r, err)
		return domain.ImageRecord{}, false
	}
	if img.Owner != ownerFrom(r.Context()) {
		s.writeError(w, r, fmt.Errorf("%w: image %s belongs to another user", domain.ErrForbidden, img.ID))
		return domain.ImageRecord{}, false
	}
	return img, true
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	img, ok := s.loadImage(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, img)
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	id := chi.URLParam(r, "imageID")
	if err := s.images.Delete(r.Context(), owner, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(r.Context(), events.Event{Type: events.TypeImageDeleted, ImageID: id, Owner: owner})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	img, ok := s.loadImage(w, r)
	if !ok {
		return
	}

	att, err := s.downloads.Fetch(r.Context(), renderURL(img), img.Title)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(att.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(att.Body)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exports == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "exports are not configured"})
		return
	}
	img, ok := s.loadImage(w, r)
	if !ok {
		return
	}
	var req exportRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	payload := queue.ExportImagePayload{
		ImageID:     img.ID,
		Owner:       img.Owner,
		RenderURL:   renderURL(img),
		Title:       img.Title,
		WebhookURL:  strings.TrimSpace(req.WebhookURL),
		RequestedAt: time.Now().UTC(),
	}
	// Queued is recorded before the task exists so a fast worker's terminal
	// status is never overwritten.
	if err := s.images.SetExport(r.Context(), img.ID, domain.ExportStatusQueued, ""); err != nil {
		s.writeError(w, r, err)
		return
	}
	info, err := s.exports.EnqueueExport(r.Context(), payload)
	if err != nil {
		s.logger.Error().Err(err).Str("image_id", img.ID).Msg("enqueue export failed")
		if rbErr := s.images.SetExport(r.Context(), img.ID, img.ExportStatus, ""); rbErr != nil {
			s.logger.Warn().Err(rbErr).Str("image_id", img.ID).Msg("export status rollback failed")
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue export"})
		return
	}
	s.metrics.exportsEnqueued.WithLabelValues(info.Queue).Inc()

	s.publish(r.Context(), events.Event{
		Type:    events.TypeExportQueued,
		ImageID: img.ID,
		Owner:   img.Owner,
		Status:  domain.ExportStatusQueued,
	})

	writeJSON(w, http.StatusAccepted, map[string]any{
		"image_id":    img.ID,
		"status":      domain.ExportStatusQueued,
		"queue":       info.Queue,
		"task_id":     info.ID,
		"state":       info.State.String(),
		"enqueued_at": info.NextProcessAt,
	})
}

func (s *Server) handleExportStatus(w http.ResponseWriter, r *http.Request) {
	img, ok := s.loadImage(w, r)
	if !ok {
		return
	}

	body := map[string]any{
		"image_id": img.ID,
		"status":   img.ExportStatus,
		"key":      img.ExportKey,
	}
	if img.ExportStatus != domain.ExportStatusSucceeded || img.ExportKey == "" || s.storage == nil {
		writeJSON(w, http.StatusOK, body)
		return
	}

	exists, err := s.storage.ObjectExists(r.Context(), img.ExportKey)
	if err != nil {
		s.logger.Warn().Err(err).Str("image_id", img.ID).Msg("stat export object failed")
		writeJSON(w, http.StatusOK, body)
		return
	}
	if !exists {
		// The record outlived its object, e.g. after a bucket lifecycle rule.
		body["missing"] = true
		writeJSON(w, http.StatusOK, body)
		return
	}

	link, err := s.storage.PresignedGetURL(r.Context(), img.ExportKey, path.Base(img.ExportKey), s.linkTTL)
	if err != nil {
		s.logger.Warn().Err(err).Str("image_id", img.ID).Msg("presign export link failed")
	} else {
		body["url"] = link
		body["expires_at"] = time.Now().UTC().Add(s.linkTTL)
	}
	writeJSON(w, http.StatusOK, body)
}

// renderURL prefers the transformed render and falls back to the original
// upload.
func renderURL(img domain.ImageRecord) string {
	if img.TransformationURL != "" {
		return img.TransformationURL
	}
	return img.SecureURL
}
