package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	ExportStatusNone       = ""
	ExportStatusQueued     = "queued"
	ExportStatusProcessing = "processing"
	ExportStatusSucceeded  = "succeeded"
	ExportStatusFailed     = "failed"

	SessionActionAdd    = "add"
	SessionActionUpdate = "update"
)

// ImageRecord is the persisted metadata for one transformed image. ID is
// assigned by the store on first save.
type ImageRecord struct {
	ID                 string             `json:"id"`
	Owner              string             `json:"owner"`
	Title              string             `json:"title"`
	AssetID            string             `json:"asset_id"`
	TransformationType TransformationType `json:"transformation_type"`
	Width              int                `json:"width"`
	Height             int                `json:"height"`
	AspectRatio        string             `json:"aspect_ratio,omitempty"`
	SecureURL          string             `json:"secure_url"`
	TransformationURL  string             `json:"transformation_url,omitempty"`
	Config             *Transformations   `json:"config,omitempty"`
	Prompt             string             `json:"prompt,omitempty"`
	Color              string             `json:"color,omitempty"`
	ExportStatus       string             `json:"export_status,omitempty"`
	ExportKey          string             `json:"export_key,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Validate checks the record is eligible for persistence.
func (r ImageRecord) Validate() error {
	if strings.TrimSpace(r.AssetID) == "" {
		return fmt.Errorf("%w: asset_id is required; upload an image first", ErrValidation)
	}
	if !r.TransformationType.Valid() {
		return fmt.Errorf("%w: unsupported transformation type %q", ErrValidation, r.TransformationType)
	}
	if r.Width < 0 || r.Height < 0 {
		return fmt.Errorf("%w: width and height must not be negative", ErrValidation)
	}
	if r.AspectRatio != "" {
		if _, err := LookupAspectRatio(r.AspectRatio); err != nil {
			return err
		}
	}
	return nil
}

type CreateSessionRequest struct {
	Type    string `json:"type"`
	ImageID string `json:"image_id,omitempty"`
}

func (r CreateSessionRequest) Validate() error {
	if strings.TrimSpace(r.Type) == "" {
		return fmt.Errorf("%w: type is required", ErrValidation)
	}
	_, err := ParseTransformationType(r.Type)
	return err
}

type FieldEditRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (r FieldEditRequest) Validate() error {
	switch r.Field {
	case "prompt", "color":
		return nil
	case "":
		return fmt.Errorf("%w: field is required", ErrValidation)
	default:
		return fmt.Errorf("%w: unsupported field %q", ErrValidation, r.Field)
	}
}

type AspectRatioRequest struct {
	Key string `json:"key"`
}

type SaveRequest struct {
	Title string `json:"title"`
}
