package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/dunamismax/imaginify/internal/download"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type memoryWriter struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (m *memoryWriter) WriteObject(_ context.Context, key string, data []byte, contentType string) error {
	if m.err != nil {
		return m.err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
		m.types = map[string]string{}
	}
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func TestProcessorWritesLocalRenditions(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "render.png")
	require.NoError(t, os.WriteFile(src, encodePNG(t, 800, 600), 0o644))

	out := filepath.Join(dir, "out")
	p, err := NewProcessor(LocalFileFetcher{}, LocalFileEmitter{OutputDir: out})
	require.NoError(t, err)

	res, err := p.Process(context.Background(), Request{
		ImageID:   "img-1",
		Title:     "My Photo",
		RenderURL: "file://" + src,
		Steps:     DefaultSteps(320),
	})
	require.NoError(t, err)
	require.Len(t, res.Outputs, 2)

	full, thumb := res.Outputs[0], res.Outputs[1]
	assert.Equal(t, filepath.Join(out, "img-1", "My_Photo.png"), full.Path)
	assert.Equal(t, 800, full.Width)
	assert.Equal(t, 600, full.Height)
	assert.Equal(t, full.Path, res.Primary())

	assert.Equal(t, filepath.Join(out, "img-1", "My_Photo_thumb.png"), thumb.Path)
	assert.Equal(t, 320, thumb.Width)
	assert.Equal(t, 240, thumb.Height)

	data, err := os.ReadFile(thumb.Path)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 320, cfg.Width)
}

func TestProcessorFetchesRenderAndWritesObjects(t *testing.T) {
	body := encodePNG(t, 200, 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	store := &memoryWriter{}
	p, err := NewProcessor(
		RenderFetcher{Client: download.NewClient(download.Config{})},
		ObjectStoreEmitter{Storage: store},
	)
	require.NoError(t, err)

	res, err := p.Process(context.Background(), Request{
		ImageID:   "img-2",
		RenderURL: srv.URL + "/render",
		Steps:     DefaultSteps(0),
	})
	require.NoError(t, err)
	assert.Equal(t, len(body), res.SourceBytes)

	assert.Equal(t, "exports/img-2/image.png", res.Outputs[0].Path)
	assert.Equal(t, "exports/img-2/image_thumb.png", res.Outputs[1].Path)
	assert.Equal(t, 200, res.Outputs[1].Width, "narrow renders are not upscaled")
	assert.Equal(t, "image/png", store.types["exports/img-2/image.png"])
	assert.Len(t, store.objects, 2)
}

func TestProcessorStageErrors(t *testing.T) {
	_, err := NewProcessor(nil, LocalFileEmitter{})
	require.Error(t, err)

	p, err := NewProcessor(LocalFileFetcher{}, ObjectStoreEmitter{Storage: &memoryWriter{}})
	require.NoError(t, err)

	_, err = p.Process(context.Background(), Request{Steps: DefaultSteps(0)})
	assert.ErrorContains(t, err, "image_id")

	_, err = p.Process(context.Background(), Request{ImageID: "img", RenderURL: "https://cdn/x"})
	assert.ErrorContains(t, err, "at least one step")

	_, err = p.Process(context.Background(), Request{ImageID: "img", RenderURL: "https://cdn/x", Steps: DefaultSteps(0)})
	assert.ErrorContains(t, err, "fetch stage")

	dir := t.TempDir()
	src := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(src, []byte("not an image"), 0o644))
	_, err = p.Process(context.Background(), Request{ImageID: "img", RenderURL: "file://" + src, Steps: DefaultSteps(0)})
	assert.ErrorContains(t, err, "transform stage step=full")

	boom := errors.New("bucket gone")
	require.NoError(t, os.WriteFile(src, encodePNG(t, 10, 10), 0o644))
	p, err = NewProcessor(LocalFileFetcher{}, ObjectStoreEmitter{Storage: &memoryWriter{err: boom}})
	require.NoError(t, err)
	_, err = p.Process(context.Background(), Request{ImageID: "img", RenderURL: "file://" + src, Steps: DefaultSteps(0)})
	assert.ErrorIs(t, err, boom)
}

func TestRenderFetcherFileURLs(t *testing.T) {
	src := filepath.Join(t.TempDir(), "render.png")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))
	req := Request{ImageID: "img", RenderURL: "file://" + src}

	_, err := RenderFetcher{Client: download.NewClient(download.Config{})}.Fetch(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrValidation)

	data, err := RenderFetcher{AllowFiles: true}.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)
}

func TestSanitizePathToken(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizePathToken(" a/b c "))
	assert.Equal(t, "", sanitizePathToken("  "))
	assert.Equal(t, "exports", defaultOutputPrefix("/"))
	assert.Equal(t, "custom", defaultOutputPrefix("/custom/"))
}

func BenchmarkProcessorThumbnail(b *testing.B) {
	img := image.NewNRGBA(image.Rect(0, 0, 1024, 768))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		b.Fatal(err)
	}
	src := filepath.Join(b.TempDir(), "render.png")
	if err := os.WriteFile(src, buf.Bytes(), 0o644); err != nil {
		b.Fatal(err)
	}

	p, err := NewProcessor(LocalFileFetcher{}, ObjectStoreEmitter{Storage: &memoryWriter{}})
	if err != nil {
		b.Fatal(err)
	}
	req := Request{ImageID: "bench", RenderURL: "file://" + src, Steps: DefaultSteps(320)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Process(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}

func TestRuntimeConfigDefaults(t *testing.T) {
	assert.Equal(t, RuntimeConfig{MaxCacheMemMB: 128, MaxCacheSize: 100}, RuntimeConfig{}.withDefaults())
	assert.Equal(t, RuntimeConfig{MaxCacheMemMB: 64, MaxCacheSize: 10}, RuntimeConfig{MaxCacheMemMB: 64, MaxCacheSize: 10}.withDefaults())
	require.NoError(t, Startup(RuntimeConfig{MaxCacheMemMB: 64}))
	Shutdown()
}
