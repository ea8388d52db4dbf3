//go:build govips && cgo

package pipeline

import (
	"context"
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
)

type govipsTransformer struct{}

func (t govipsTransformer) Transform(ctx context.Context, input []byte, step Step) ([]byte, string, int, int, error) {
	select {
	case <-ctx.Done():
		return nil, "", 0, 0, ctx.Err()
	default:
	}

	img, err := vips.NewImageFromBuffer(input)
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("decode render: %w", err)
	}
	defer img.Close()

	if err := img.AutoRotate(); err != nil {
		return nil, "", 0, 0, fmt.Errorf("auto rotate: %w", err)
	}
	if err := fitWidthGovips(img, step.MaxWidth); err != nil {
		return nil, "", 0, 0, err
	}

	data, _, err := img.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("encode png: %w", err)
	}
	return data, exportFormat, img.Width(), img.Height(), nil
}

func fitWidthGovips(img *vips.ImageRef, maxWidth int) error {
	if maxWidth <= 0 || img.Width() <= maxWidth {
		return nil
	}
	if img.Width() <= 0 {
		return fmt.Errorf("render has invalid width")
	}

	scale := float64(maxWidth) / float64(img.Width())
	if err := img.Resize(scale, vips.KernelLanczos3); err != nil {
		return fmt.Errorf("resize render: %w", err)
	}
	return nil
}
