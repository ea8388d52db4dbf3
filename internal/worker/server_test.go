package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dunamismax/imaginify/internal/config"
	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/dunamismax/imaginify/internal/events"
	"github.com/dunamismax/imaginify/internal/pipeline"
	"github.com/dunamismax/imaginify/internal/queue"
	"github.com/dunamismax/imaginify/internal/store"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	got    pipeline.Request
	result pipeline.Result
	err    error
}

func (p *fakeProcessor) Process(_ context.Context, req pipeline.Request) (pipeline.Result, error) {
	p.got = req
	return p.result, p.err
}

type capturePublisher struct {
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type captureWebhook struct {
	endpoint string
	event    string
	err      error
}

func (w *captureWebhook) Send(_ context.Context, endpoint, event string, _ any) error {
	w.endpoint = endpoint
	w.event = event
	return w.err
}

func seedImage(t *testing.T, images store.ImageStore) domain.ImageRecord {
	t.Helper()
	cfg := domain.TransformationRestore.DefaultConfig()
	saved, err := images.Create(context.Background(), "user-1", domain.ImageRecord{
		Title:              "Beach",
		TransformationType: domain.TransformationRestore,
		AssetID:            "samples/beach",
		SecureURL:          "https://res.cloudinary.com/demo/image/upload/samples/beach",
		Width:              800,
		Height:             600,
		Config:             &cfg,
		TransformationURL:  "https://res.cloudinary.com/demo/image/upload/e_gen_restore/samples/beach",
	})
	require.NoError(t, err)
	return saved
}

func exportTask(t *testing.T, payload queue.ExportImagePayload) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(queue.TypeExportImage, body)
}

func TestHandleExportImageSucceeds(t *testing.T) {
	images := store.NewMemoryImageStore()
	img := seedImage(t, images)

	proc := &fakeProcessor{result: pipeline.Result{
		SourceBytes: 2048,
		Outputs: []pipeline.Output{
			{StepID: "full", Path: "exports/" + img.ID + "/Beach.png", Bytes: 1500},
			{StepID: "thumb", Path: "exports/" + img.ID + "/Beach_thumb.png", Bytes: 300},
		},
	}}
	pub := &capturePublisher{}
	hooks := &captureWebhook{}
	s := newServer(zerolog.Nop(), config.WorkerConfig{ThumbnailWidth: 200}, proc, images, pub, hooks)

	err := s.handleExportImage(context.Background(), exportTask(t, queue.ExportImagePayload{
		ImageID:     img.ID,
		Owner:       "user-1",
		Title:       "Beach",
		RenderURL:   img.TransformationURL,
		WebhookURL:  "https://hooks.example.com/export",
		RequestedAt: time.Now().UTC(),
	}))
	require.NoError(t, err)

	assert.Equal(t, img.TransformationURL, proc.got.RenderURL)
	require.Len(t, proc.got.Steps, 2)
	assert.Equal(t, 200, proc.got.Steps[1].MaxWidth)

	got, err := images.Get(context.Background(), img.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusSucceeded, got.ExportStatus)
	assert.Equal(t, "exports/"+img.ID+"/Beach.png", got.ExportKey)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeImageExported, pub.events[0].Type)
	assert.Equal(t, got.ExportKey, pub.events[0].ObjectKey)
	assert.Equal(t, events.TypeImageExported, hooks.event)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.exportsTotal.WithLabelValues(domain.ExportStatusSucceeded)))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.metrics.outputsTotal))
	assert.Equal(t, 1800.0, testutil.ToFloat64(s.metrics.outputBytesTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(s.metrics.activeExports))
}

func TestHandleExportImageRecordsFailure(t *testing.T) {
	images := store.NewMemoryImageStore()
	img := seedImage(t, images)

	proc := &fakeProcessor{err: errors.New("fetch stage: connection reset")}
	pub := &capturePublisher{}
	s := newServer(zerolog.Nop(), config.WorkerConfig{}, proc, images, pub, nil)

	err := s.handleExportImage(context.Background(), exportTask(t, queue.ExportImagePayload{
		ImageID:   img.ID,
		RenderURL: img.TransformationURL,
	}))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry), "transient failures are retried")

	got, err := images.Get(context.Background(), img.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusFailed, got.ExportStatus)
	assert.Empty(t, got.ExportKey)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeImageExportFailed, pub.events[0].Type)
	assert.Contains(t, pub.events[0].Error, "connection reset")
}

func TestHandleExportImageSkipsRetryForBadInput(t *testing.T) {
	s := newServer(zerolog.Nop(), config.WorkerConfig{}, &fakeProcessor{}, store.NewMemoryImageStore(), nil, nil)

	err := s.handleExportImage(context.Background(), asynq.NewTask(queue.TypeExportImage, []byte(`{"image_id":""}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	images := store.NewMemoryImageStore()
	img := seedImage(t, images)
	proc := &fakeProcessor{err: fmt.Errorf("fetch stage: %w", domain.ErrValidation)}
	s = newServer(zerolog.Nop(), config.WorkerConfig{}, proc, images, nil, nil)
	err = s.handleExportImage(context.Background(), exportTask(t, queue.ExportImagePayload{
		ImageID:   img.ID,
		RenderURL: "file:///tmp/render.png",
	}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleExportImageReturnsWebhookError(t *testing.T) {
	images := store.NewMemoryImageStore()
	img := seedImage(t, images)
	hooks := &captureWebhook{err: errors.New("receiver down")}
	proc := &fakeProcessor{result: pipeline.Result{Outputs: []pipeline.Output{{Path: "exports/x.png"}}}}
	s := newServer(zerolog.Nop(), config.WorkerConfig{}, proc, images, nil, hooks)

	err := s.handleExportImage(context.Background(), exportTask(t, queue.ExportImagePayload{
		ImageID:    img.ID,
		RenderURL:  img.TransformationURL,
		WebhookURL: "https://hooks.example.com/export",
	}))
	assert.ErrorContains(t, err, "dispatch webhook")

	got, err := images.Get(context.Background(), img.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusSucceeded, got.ExportStatus)
}
