package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

type imagingTransformer struct{}

func (t imagingTransformer) Transform(ctx context.Context, input []byte, step Step) ([]byte, string, int, int, error) {
	select {
	case <-ctx.Done():
		return nil, "", 0, 0, ctx.Err()
	default:
	}

	src, err := imaging.Decode(bytes.NewReader(input), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("decode render: %w", err)
	}

	out := fitWidth(src, step.MaxWidth)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG, imaging.PNGCompressionLevel(png.BestSpeed)); err != nil {
		return nil, "", 0, 0, fmt.Errorf("encode png: %w", err)
	}

	bounds := out.Bounds()
	return buf.Bytes(), exportFormat, bounds.Dx(), bounds.Dy(), nil
}

// fitWidth scales src down to maxWidth keeping its aspect ratio. Images
// already narrow enough are returned as is.
func fitWidth(src image.Image, maxWidth int) image.Image {
	if maxWidth <= 0 || src.Bounds().Dx() <= maxWidth {
		return src
	}
	return imaging.Resize(src, maxWidth, 0, imaging.Lanczos)
}
