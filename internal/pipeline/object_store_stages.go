package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/dunamismax/imaginify/internal/download"
)

const DefaultOutputPrefix = "exports"

// RenderFetcher downloads the CDN render over HTTP. file:// renders are
// read from disk only when AllowFiles is set.
type RenderFetcher struct {
	Client     *download.Client
	AllowFiles bool
}

func (f RenderFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if strings.HasPrefix(req.RenderURL, "file://") {
		if !f.AllowFiles {
			return nil, fmt.Errorf("%w: file renders are disabled", domain.ErrValidation)
		}
		return LocalFileFetcher{}.Fetch(ctx, req)
	}
	if f.Client == nil {
		return nil, errors.New("download client is required")
	}
	att, err := f.Client.Fetch(ctx, req.RenderURL, req.Title)
	if err != nil {
		return nil, err
	}
	return att.Body, nil
}

type objectWriter interface {
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
}

// ObjectStoreEmitter writes renditions to exports/<image_id>/<name>.png.
type ObjectStoreEmitter struct {
	Storage      objectWriter
	OutputPrefix string
}

func (e ObjectStoreEmitter) Emit(ctx context.Context, req Request, step Step, data []byte, format string, width, height int) (Output, error) {
	if e.Storage == nil {
		return Output{}, errors.New("storage client is required")
	}

	objectKey := path.Join(
		defaultOutputPrefix(e.OutputPrefix),
		sanitizePathToken(req.ImageID),
		outputName(req, step, format),
	)

	if err := e.Storage.WriteObject(ctx, objectKey, data, exportContentType); err != nil {
		return Output{}, err
	}

	return Output{
		StepID: step.ID,
		Format: format,
		Path:   objectKey,
		Bytes:  len(data),
		Width:  width,
		Height: height,
	}, nil
}

func defaultOutputPrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return DefaultOutputPrefix
	}
	return prefix
}
