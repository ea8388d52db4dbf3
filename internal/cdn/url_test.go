package cdn

import (
	"testing"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderURL(t *testing.T) {
	b := NewBuilder("demo")

	tests := []struct {
		name   string
		params Params
		want   string
	}{
		{
			name:   "restore",
			params: Params{AssetID: "abc", Width: 800, Height: 600, Config: domain.TransformationRestore.DefaultConfig()},
			want:   "https://res.cloudinary.com/demo/image/upload/e_gen_restore/c_limit,w_800/f_auto,q_auto/abc",
		},
		{
			name:   "remove background",
			params: Params{AssetID: "abc", Width: 800, Config: domain.TransformationRemoveBackground.DefaultConfig()},
			want:   "https://res.cloudinary.com/demo/image/upload/e_background_removal/c_limit,w_800/f_auto,q_auto/abc",
		},
		{
			name:   "fill",
			params: Params{AssetID: "abc", Width: 500, Height: 500, Config: domain.TransformationFill.DefaultConfig()},
			want:   "https://res.cloudinary.com/demo/image/upload/b_gen_fill,c_pad,w_500,h_500/c_limit,w_500/f_auto,q_auto/abc",
		},
		{
			name: "remove",
			params: Params{AssetID: "folder/abc", Width: 800, Config: domain.Transformations{
				Remove: &domain.ObjectRemoval{Prompt: domain.String("red car"), RemoveShadow: domain.Bool(true), Multiple: domain.Bool(true)},
			}},
			want: "https://res.cloudinary.com/demo/image/upload/e_gen_remove:prompt_red%20car;multiple_true;remove-shadow_true/c_limit,w_800/f_auto,q_auto/folder/abc",
		},
		{
			name: "recolor",
			params: Params{AssetID: "abc", Config: domain.Transformations{
				Recolor: &domain.ObjectRecolor{Prompt: domain.String("shirt"), To: domain.String("#ff0000"), Multiple: domain.Bool(true)},
			}},
			want: "https://res.cloudinary.com/demo/image/upload/e_gen_recolor:prompt_shirt;to-color_ff0000;multiple_true/f_auto,q_auto/abc",
		},
		{
			name:   "no transformation",
			params: Params{AssetID: "abc"},
			want:   "https://res.cloudinary.com/demo/image/upload/f_auto,q_auto/abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.URL(tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuilderURLValidation(t *testing.T) {
	b := NewBuilder("demo")

	_, err := b.URL(Params{AssetID: " "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = Builder{}.URL(Params{AssetID: "abc"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = b.URL(Params{AssetID: "abc", Config: domain.TransformationRecolor.DefaultConfig()})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = b.URL(Params{AssetID: "abc", Config: domain.TransformationRemove.DefaultConfig()})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBuilderCustomBaseURL(t *testing.T) {
	b := Builder{CloudName: "demo", BaseURL: "http://cdn.local/"}

	got, err := b.URL(Params{AssetID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.local/demo/image/upload/f_auto,q_auto/abc", got)
}

func TestEscapeValueKeepsSeparatorsOut(t *testing.T) {
	assert.Equal(t, "a%2Cb%3Bc%3Ad%2Fe", escapeValue("a,b;c:d/e"))
}
