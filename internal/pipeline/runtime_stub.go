//go:build !govips || !cgo

package pipeline

// Startup is a no-op without the native runtime; the imaging transformer
// needs no setup.
func Startup(RuntimeConfig) error {
	return nil
}

func Shutdown() {}

func newTransformer() (Transformer, error) {
	return imagingTransformer{}, nil
}
