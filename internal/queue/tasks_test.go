package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/hibiken/asynq"
)

func TestExportImageTaskRoundTrip(t *testing.T) {
	payload := ExportImagePayload{
		ImageID:     "img-123",
		Owner:       "user-1",
		RenderURL:   "https://res.cloudinary.com/demo/image/upload/e_gen_restore/abc",
		Title:       "old photo",
		RequestedAt: time.Now().UTC(),
	}

	task, err := NewExportImageTask(payload)
	if err != nil {
		t.Fatalf("NewExportImageTask returned error: %v", err)
	}
	if task.Type() != TypeExportImage {
		t.Fatalf("expected task type %q, got %q", TypeExportImage, task.Type())
	}

	parsed, err := ParseExportImagePayload(task)
	if err != nil {
		t.Fatalf("ParseExportImagePayload returned error: %v", err)
	}
	if parsed.ImageID != payload.ImageID {
		t.Fatalf("expected image_id %q, got %q", payload.ImageID, parsed.ImageID)
	}
	if parsed.RenderURL != payload.RenderURL {
		t.Fatalf("expected render_url %q, got %q", payload.RenderURL, parsed.RenderURL)
	}
}

func TestNewExportImageTaskRequiresRenderURL(t *testing.T) {
	_, err := NewExportImageTask(ExportImagePayload{ImageID: "img-1"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseExportImagePayloadRejectsGarbage(t *testing.T) {
	if _, err := ParseExportImagePayload(asynq.NewTask(TypeExportImage, []byte("{"))); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
