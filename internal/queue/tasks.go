package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/hibiken/asynq"
)

const TypeExportImage = "image:export"

// ExportImagePayload asks the worker to fetch the rendered image and store
// a PNG copy plus a thumbnail.
type ExportImagePayload struct {
	ImageID     string    `json:"image_id"`
	Owner       string    `json:"owner,omitempty"`
	RenderURL   string    `json:"render_url"`
	Title       string    `json:"title"`
	WebhookURL  string    `json:"webhook_url,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

func (p ExportImagePayload) Validate() error {
	if strings.TrimSpace(p.ImageID) == "" {
		return fmt.Errorf("%w: image_id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(p.RenderURL) == "" {
		return fmt.Errorf("%w: render_url is required", domain.ErrValidation)
	}
	return nil
}

func NewExportImageTask(payload ExportImagePayload) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal export payload: %w", err)
	}
	return asynq.NewTask(TypeExportImage, body), nil
}

func ParseExportImagePayload(task *asynq.Task) (ExportImagePayload, error) {
	var payload ExportImagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ExportImagePayload{}, fmt.Errorf("unmarshal export payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return ExportImagePayload{}, err
	}
	return payload, nil
}
