package cdn

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/asset"
	"github.com/cloudinary/cloudinary-go/v2/config"
	"github.com/dunamismax/imaginify/internal/domain"
)

const DefaultBaseURL = "https://res.cloudinary.com"

// Builder composes delivery URLs for uploaded assets. It never talks to the
// network; the CDN renders the transformation when the URL is fetched.
type Builder struct {
	CloudName string
	BaseURL   string
}

type Params struct {
	AssetID string
	Width   int
	Height  int
	Config  domain.Transformations
}

func NewBuilder(cloudName string) Builder {
	return Builder{CloudName: cloudName, BaseURL: DefaultBaseURL}
}

// URL returns the delivery URL for p.AssetID with every transformation set in
// p.Config applied, followed by a width limit and automatic format and
// quality.
func (b Builder) URL(p Params) (string, error) {
	assetID := strings.Trim(strings.TrimSpace(p.AssetID), "/")
	if assetID == "" {
		return "", fmt.Errorf("%w: asset id is required to build a delivery url", domain.ErrValidation)
	}
	cloud := strings.TrimSpace(b.CloudName)
	if cloud == "" {
		return "", fmt.Errorf("%w: cdn cloud name is not configured", domain.ErrValidation)
	}
	base := strings.TrimRight(b.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	chain, err := Chain(p)
	if err != nil {
		return "", err
	}

	conf, err := config.NewFromParams(cloud, "", "")
	if err != nil {
		return "", fmt.Errorf("cdn config: %w", err)
	}
	// Delivery URLs are unsigned and carry no version or analytics marker so
	// the same configuration always yields the same URL.
	conf.URL.Secure = true
	conf.URL.ForceVersion = false
	conf.URL.Analytics = false

	img, err := asset.Image(assetID, conf)
	if err != nil {
		return "", fmt.Errorf("%w: asset id %q: %w", domain.ErrValidation, assetID, err)
	}
	img.Transformation = strings.Join(chain, "/")

	rendered, err := img.String()
	if err != nil {
		return "", fmt.Errorf("build delivery url: %w", err)
	}
	if base == DefaultBaseURL {
		return rendered, nil
	}
	// The SDK always targets the shared CDN host; a custom base swaps it.
	if rest, ok := strings.CutPrefix(rendered, DefaultBaseURL); ok {
		return base + rest, nil
	}
	return rendered, nil
}

// Chain returns the transformation components of the URL in the order the
// CDN applies them.
func Chain(p Params) ([]string, error) {
	cfg := p.Config
	var chain []string

	if domain.Deref(cfg.Restore) {
		chain = append(chain, "e_gen_restore")
	}
	if domain.Deref(cfg.RemoveBackground) {
		chain = append(chain, "e_background_removal")
	}
	if domain.Deref(cfg.FillBackground) {
		fill := []string{"b_gen_fill", "c_pad"}
		if p.Width > 0 {
			fill = append(fill, fmt.Sprintf("w_%d", p.Width))
		}
		if p.Height > 0 {
			fill = append(fill, fmt.Sprintf("h_%d", p.Height))
		}
		chain = append(chain, strings.Join(fill, ","))
	}
	if cfg.Remove != nil {
		prompt := strings.TrimSpace(domain.Deref(cfg.Remove.Prompt))
		if prompt == "" {
			return nil, fmt.Errorf("%w: object removal needs a prompt", domain.ErrValidation)
		}
		opts := []string{"prompt_" + escapeValue(prompt)}
		if domain.Deref(cfg.Remove.Multiple) {
			opts = append(opts, "multiple_true")
		}
		if domain.Deref(cfg.Remove.RemoveShadow) {
			opts = append(opts, "remove-shadow_true")
		}
		chain = append(chain, "e_gen_remove:"+strings.Join(opts, ";"))
	}
	if cfg.Recolor != nil {
		prompt := strings.TrimSpace(domain.Deref(cfg.Recolor.Prompt))
		to := strings.TrimSpace(domain.Deref(cfg.Recolor.To))
		if prompt == "" || to == "" {
			return nil, fmt.Errorf("%w: recolor needs a prompt and a target color", domain.ErrValidation)
		}
		opts := []string{"prompt_" + escapeValue(prompt), "to-color_" + escapeValue(strings.TrimPrefix(to, "#"))}
		if domain.Deref(cfg.Recolor.Multiple) {
			opts = append(opts, "multiple_true")
		}
		chain = append(chain, "e_gen_recolor:"+strings.Join(opts, ";"))
	}

	if p.Width > 0 {
		chain = append(chain, fmt.Sprintf("c_limit,w_%d", p.Width))
	}
	chain = append(chain, "f_auto,q_auto")
	return chain, nil
}

// escapeValue makes free text safe inside a transformation component, where
// commas, slashes, colons and semicolons are separators.
func escapeValue(v string) string {
	return strings.ReplaceAll(url.PathEscape(v), ":", "%3A")
}
