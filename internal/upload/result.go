package upload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dunamismax/imaginify/internal/domain"
)

// Info is the informative payload of a successful widget upload.
type Info struct {
	AssetID   string `json:"public_id"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SecureURL string `json:"secure_url"`
}

// Result is the outcome of one upload widget interaction. It is one of
// Success, Failure or Unrecognized.
type Result interface {
	isResult()
}

type Success struct {
	Info Info
}

type Failure struct {
	Reason string
}

// Unrecognized is a payload whose shape matches neither outcome.
type Unrecognized struct{}

func (Success) isResult()      {}
func (Failure) isResult()      {}
func (Unrecognized) isResult() {}

type widgetPayload struct {
	Event string          `json:"event"`
	Info  json.RawMessage `json:"info"`
}

type widgetInfo struct {
	PublicID  *string `json:"public_id"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	SecureURL string  `json:"secure_url"`
}

// ParseResult decodes a raw widget callback payload. An info object carrying
// public_id is a Success, an info string or an "error" event is a Failure,
// anything else is Unrecognized. Only malformed JSON returns an error.
func ParseResult(data []byte) (Result, error) {
	var payload widgetPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: invalid upload result: %v", domain.ErrValidation, err)
	}

	raw := bytes.TrimSpace(payload.Info)
	switch {
	case len(raw) > 0 && raw[0] == '{':
		var info widgetInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return Unrecognized{}, nil
		}
		if info.PublicID == nil {
			if isErrorEvent(payload.Event) {
				return Failure{Reason: "upload failed"}, nil
			}
			return Unrecognized{}, nil
		}
		return Success{Info: Info{
			AssetID:   *info.PublicID,
			Width:     info.Width,
			Height:    info.Height,
			SecureURL: info.SecureURL,
		}}, nil
	case len(raw) > 0 && raw[0] == '"':
		var reason string
		if err := json.Unmarshal(raw, &reason); err != nil {
			return Unrecognized{}, nil
		}
		return Failure{Reason: reason}, nil
	case isErrorEvent(payload.Event):
		return Failure{Reason: "upload failed"}, nil
	default:
		return Unrecognized{}, nil
	}
}

func isErrorEvent(event string) bool {
	return strings.EqualFold(strings.TrimSpace(event), "error")
}
