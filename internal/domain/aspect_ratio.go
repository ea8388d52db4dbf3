package domain

import (
	"fmt"
	"sort"
	"strings"
)

type AspectRatioOption struct {
	Key         string `json:"key"`
	AspectRatio string `json:"aspect_ratio"`
	Label       string `json:"label"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

var aspectRatioOptions = map[string]AspectRatioOption{
	"square": {
		Key:         "square",
		AspectRatio: "1:1",
		Label:       "Square (1:1)",
		Width:       500,
		Height:      500,
	},
	"portrait": {
		Key:         "portrait",
		AspectRatio: "3:4",
		Label:       "Standard Portrait (3:4)",
		Width:       750,
		Height:      1000,
	},
	"phone": {
		Key:         "phone",
		AspectRatio: "9:16",
		Label:       "Phone Portrait (9:16)",
		Width:       563,
		Height:      1000,
	},
}

// DefaultImageSize is used when neither the image nor the aspect ratio table
// provides a dimension.
const DefaultImageSize = 1000

func LookupAspectRatio(key string) (AspectRatioOption, error) {
	opt, ok := aspectRatioOptions[strings.TrimSpace(key)]
	if !ok {
		return AspectRatioOption{}, fmt.Errorf("%w: unknown aspect ratio %q", ErrValidation, key)
	}
	return opt, nil
}

func AspectRatioOptions() []AspectRatioOption {
	out := make([]AspectRatioOption, 0, len(aspectRatioOptions))
	for _, opt := range aspectRatioOptions {
		out = append(out, opt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Width*out[j].Height > out[j].Width*out[i].Height })
	return out
}

// DisplaySize picks the rendered width and height for an image of the given
// kind. Fill renders at the selected aspect ratio, every other kind at the
// image's own size.
func DisplaySize(kind TransformationType, img ImageRecord) (width, height int) {
	if kind == TransformationFill {
		opt, err := LookupAspectRatio(img.AspectRatio)
		if err != nil {
			return DefaultImageSize, DefaultImageSize
		}
		return opt.Width, opt.Height
	}

	width, height = img.Width, img.Height
	if width <= 0 {
		width = DefaultImageSize
	}
	if height <= 0 {
		height = DefaultImageSize
	}
	return width, height
}
