package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  ImageRecord
		wantErr bool
	}{
		{
			name: "uploaded recolor image",
			record: ImageRecord{
				AssetID:            "abc",
				TransformationType: TransformationRecolor,
				Width:              800,
				Height:             600,
			},
		},
		{
			name: "missing asset id",
			record: ImageRecord{
				TransformationType: TransformationFill,
			},
			wantErr: true,
		},
		{
			name: "unknown transformation",
			record: ImageRecord{
				AssetID:            "abc",
				TransformationType: "sharpen",
			},
			wantErr: true,
		},
		{
			name: "unknown aspect ratio",
			record: ImageRecord{
				AssetID:            "abc",
				TransformationType: TransformationFill,
				AspectRatio:        "16:9",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCreateSessionRequestValidate(t *testing.T) {
	require.NoError(t, CreateSessionRequest{Type: "recolor"}.Validate())
	assert.ErrorIs(t, CreateSessionRequest{}.Validate(), ErrValidation)
	assert.ErrorIs(t, CreateSessionRequest{Type: "blur"}.Validate(), ErrValidation)
}

func TestFieldEditRequestValidate(t *testing.T) {
	require.NoError(t, FieldEditRequest{Field: "prompt", Value: "car"}.Validate())
	require.NoError(t, FieldEditRequest{Field: "color", Value: "red"}.Validate())
	assert.ErrorIs(t, FieldEditRequest{Field: "title"}.Validate(), ErrValidation)
	assert.ErrorIs(t, FieldEditRequest{}.Validate(), ErrValidation)
}

func TestDefaultConfigIsIndependentCopy(t *testing.T) {
	cfg := TransformationRecolor.DefaultConfig()
	require.NotNil(t, cfg.Recolor)
	*cfg.Recolor.Prompt = "mutated"

	again := TransformationRecolor.DefaultConfig()
	assert.Equal(t, "", Deref(again.Recolor.Prompt))
	assert.True(t, Deref(again.Recolor.Multiple))
}

func TestDisplaySize(t *testing.T) {
	w, h := DisplaySize(TransformationFill, ImageRecord{AspectRatio: "square", Width: 800, Height: 600})
	assert.Equal(t, 500, w)
	assert.Equal(t, 500, h)

	w, h = DisplaySize(TransformationFill, ImageRecord{Width: 800, Height: 600})
	assert.Equal(t, DefaultImageSize, w)
	assert.Equal(t, DefaultImageSize, h)

	w, h = DisplaySize(TransformationRestore, ImageRecord{Width: 800})
	assert.Equal(t, 800, w)
	assert.Equal(t, DefaultImageSize, h)
}

func TestAspectRatioOptionsOrderedWidestFirst(t *testing.T) {
	opts := AspectRatioOptions()
	require.Len(t, opts, 3)
	assert.Equal(t, "square", opts[0].Key)
	assert.Equal(t, "portrait", opts[1].Key)
	assert.Equal(t, "phone", opts[2].Key)
}
