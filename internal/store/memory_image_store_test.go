package store

import (
	"context"
	"testing"
	"time"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleImage() domain.ImageRecord {
	cfg := domain.TransformationRecolor.DefaultConfig()
	return domain.ImageRecord{
		Title:              "red car",
		AssetID:            "abc",
		TransformationType: domain.TransformationRecolor,
		Width:              800,
		Height:             600,
		SecureURL:          "https://x/abc.png",
		Config:             &cfg,
		Prompt:             "car",
		Color:              "red",
	}
}

func TestMemoryImageStoreCreateAndGet(t *testing.T) {
	s := NewMemoryImageStore()
	ctx := context.Background()

	created, err := s.Create(ctx, "user-1", sampleImage())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "user-1", created.Owner)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestMemoryImageStoreCreateRequiresUploadAndOwner(t *testing.T) {
	s := NewMemoryImageStore()
	ctx := context.Background()

	img := sampleImage()
	img.AssetID = ""
	_, err := s.Create(ctx, "user-1", img)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.Create(ctx, " ", sampleImage())
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMemoryImageStoreUpdate(t *testing.T) {
	s := NewMemoryImageStore()
	ctx := context.Background()

	created, err := s.Create(ctx, "user-1", sampleImage())
	require.NoError(t, err)

	changed := sampleImage()
	changed.Title = "blue car"
	changed.Color = "blue"

	_, err = s.Update(ctx, "user-2", created.ID, changed)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = s.Update(ctx, "user-1", "missing", changed)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	updated, err := s.Update(ctx, "user-1", created.ID, changed)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "blue car", updated.Title)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestMemoryImageStoreListDeleteAndExport(t *testing.T) {
	s := NewMemoryImageStore()
	ctx := context.Background()

	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	first, err := s.Create(ctx, "user-1", sampleImage())
	require.NoError(t, err)
	second, err := s.Create(ctx, "user-1", sampleImage())
	require.NoError(t, err)
	_, err = s.Create(ctx, "user-2", sampleImage())
	require.NoError(t, err)

	list, err := s.ListByOwner(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	require.NoError(t, s.SetExport(ctx, first.ID, domain.ExportStatusSucceeded, "exports/a.png"))
	got, err := s.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusSucceeded, got.ExportStatus)
	assert.Equal(t, "exports/a.png", got.ExportKey)
	assert.ErrorIs(t, s.SetExport(ctx, "missing", domain.ExportStatusFailed, ""), domain.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "user-2", first.ID), domain.ErrForbidden)
	require.NoError(t, s.Delete(ctx, "user-1", first.ID))
	_, err = s.Get(ctx, first.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryImageStoreReturnsCopies(t *testing.T) {
	s := NewMemoryImageStore()
	ctx := context.Background()

	created, err := s.Create(ctx, "user-1", sampleImage())
	require.NoError(t, err)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	*got.Config.Recolor.To = "mutated"

	again, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "", domain.Deref(again.Config.Recolor.To))
}
