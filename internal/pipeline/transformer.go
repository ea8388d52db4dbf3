package pipeline

import "context"

type Transformer interface {
	Transform(ctx context.Context, input []byte, step Step) (data []byte, format string, width, height int, err error)
}

// Exports are always PNG so that downloads and exports agree on format.
const (
	exportFormat      = "png"
	exportContentType = "image/png"
)

// RuntimeConfig sizes the native image runtime's operation cache. Zero
// fields take the defaults.
type RuntimeConfig struct {
	MaxCacheMemMB int
	MaxCacheSize  int
}

func (c RuntimeConfig) withDefaults() RuntimeConfig {
	if c.MaxCacheMemMB <= 0 {
		c.MaxCacheMemMB = 128
	}
	if c.MaxCacheSize <= 0 {
		c.MaxCacheSize = 100
	}
	return c
}
