//go:build govips && cgo

package pipeline

import (
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var vipsRuntime struct {
	once    sync.Once
	mu      sync.Mutex
	running bool
}

// Startup boots libvips once per process with cache limits from cfg.
func Startup(cfg RuntimeConfig) error {
	cfg = cfg.withDefaults()
	vipsRuntime.once.Do(func() {
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   cfg.MaxCacheMemMB * 1024 * 1024,
			MaxCacheSize:  cfg.MaxCacheSize,
		})

		vipsRuntime.mu.Lock()
		vipsRuntime.running = true
		vipsRuntime.mu.Unlock()
	})
	return nil
}

func Shutdown() {
	vipsRuntime.mu.Lock()
	defer vipsRuntime.mu.Unlock()
	if !vipsRuntime.running {
		return
	}
	vips.Shutdown()
	vipsRuntime.running = false
}

func newTransformer() (Transformer, error) {
	return govipsTransformer{}, nil
}
