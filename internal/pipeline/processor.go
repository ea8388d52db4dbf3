package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const DefaultThumbnailWidth = 320

// Step is one rendition produced from the fetched render.
type Step struct {
	ID       string
	Suffix   string
	MaxWidth int
}

// DefaultSteps is a full-size PNG plus a thumbnail of thumbWidth pixels.
func DefaultSteps(thumbWidth int) []Step {
	if thumbWidth <= 0 {
		thumbWidth = DefaultThumbnailWidth
	}
	return []Step{
		{ID: "full"},
		{ID: "thumb", Suffix: "_thumb", MaxWidth: thumbWidth},
	}
}

type Request struct {
	ImageID   string
	Title     string
	RenderURL string
	Steps     []Step
}

type Output struct {
	StepID string `json:"step_id"`
	Format string `json:"format"`
	Path   string `json:"path"`
	Bytes  int    `json:"bytes"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type Result struct {
	SourceBytes int
	Outputs     []Output
}

// Primary returns the path of the first rendition.
func (r Result) Primary() string {
	if len(r.Outputs) == 0 {
		return ""
	}
	return r.Outputs[0].Path
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, step Step, data []byte, format string, width, height int) (Output, error)
}

type Processor struct {
	fetcher     Fetcher
	transformer Transformer
	emitter     Emitter
}

func NewProcessor(fetcher Fetcher, emitter Emitter) (*Processor, error) {
	if fetcher == nil || emitter == nil {
		return nil, errors.New("fetcher and emitter are required")
	}
	transformer, err := newTransformer()
	if err != nil {
		return nil, fmt.Errorf("build transformer: %w", err)
	}

	return &Processor{
		fetcher:     fetcher,
		transformer: transformer,
		emitter:     emitter,
	}, nil
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.ImageID) == "" {
		return Result{}, errors.New("image_id is required")
	}
	if len(req.Steps) == 0 {
		return Result{}, errors.New("export must contain at least one step")
	}

	sourceBytes, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}

	out := Result{
		SourceBytes: len(sourceBytes),
		Outputs:     make([]Output, 0, len(req.Steps)),
	}
	for _, step := range req.Steps {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		transformed, format, width, height, err := p.transformer.Transform(ctx, sourceBytes, step)
		if err != nil {
			return Result{}, fmt.Errorf("transform stage step=%s: %w", step.ID, err)
		}

		written, err := p.emitter.Emit(ctx, req, step, transformed, format, width, height)
		if err != nil {
			return Result{}, fmt.Errorf("emit stage step=%s: %w", step.ID, err)
		}
		out.Outputs = append(out.Outputs, written)
	}

	return out, nil
}

// LocalFileFetcher reads renders addressed by file:// URLs.
type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	u, err := url.Parse(req.RenderURL)
	if err != nil || u.Scheme != "file" {
		return nil, fmt.Errorf("local fetcher needs a file:// url, got %q", req.RenderURL)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(u.Path)
	if err != nil {
		return nil, fmt.Errorf("read render file %s: %w", u.Path, err)
	}
	return data, nil
}

type LocalFileEmitter struct {
	OutputDir string
}

func (e LocalFileEmitter) Emit(_ context.Context, req Request, step Step, data []byte, format string, width, height int) (Output, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return Output{}, errors.New("output directory is required")
	}

	imageDir := filepath.Join(e.OutputDir, sanitizePathToken(req.ImageID))
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}

	fullPath := filepath.Join(imageDir, outputName(req, step, format))
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return Output{}, fmt.Errorf("write output file: %w", err)
	}

	return Output{
		StepID: step.ID,
		Format: format,
		Path:   fullPath,
		Bytes:  len(data),
		Width:  width,
		Height: height,
	}, nil
}

func outputName(req Request, step Step, format string) string {
	base := strings.TrimSpace(req.Title)
	if base == "" {
		base = "image"
	}
	return fmt.Sprintf("%s%s.%s", sanitizePathToken(base), sanitizePathToken(step.Suffix), format)
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
