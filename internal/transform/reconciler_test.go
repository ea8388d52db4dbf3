package transform

import (
	"errors"
	"testing"
	"time"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcilerDebouncesFieldEdits(t *testing.T) {
	r := NewReconciler(domain.TransformationRecolor, nil, 50*time.Millisecond)
	defer r.Close()

	for _, v := range []string{"c", "ca", "car"} {
		require.NoError(t, r.UpdateField("prompt", v))
	}
	require.NoError(t, r.UpdateField("color", "red"))

	assert.True(t, r.Pending().IsZero())

	require.Eventually(t, func() bool { return !r.HasStaged() }, time.Second, 5*time.Millisecond)

	pending := r.Pending()
	require.NotNil(t, pending.Recolor)
	assert.Equal(t, "car", domain.Deref(pending.Recolor.Prompt))
	assert.Equal(t, "red", domain.Deref(pending.Recolor.To))
}

func TestReconcilerApplyFlushesStagedAndResetsPending(t *testing.T) {
	committed := domain.TransformationRecolor.DefaultConfig()
	r := NewReconciler(domain.TransformationRecolor, &committed, time.Hour)
	defer r.Close()

	require.NoError(t, r.UpdateField("prompt", "shirt"))

	applied := r.Apply()

	require.NotNil(t, applied.Recolor)
	assert.Equal(t, "shirt", domain.Deref(applied.Recolor.Prompt))
	assert.Equal(t, "", domain.Deref(applied.Recolor.To))
	assert.True(t, domain.Deref(applied.Recolor.Multiple))
	assert.True(t, r.Pending().IsZero())
	assert.False(t, r.HasStaged())

	require.NoError(t, r.UpdateField("color", "yellow"))
	applied = r.Apply()
	assert.Equal(t, "shirt", domain.Deref(applied.Recolor.Prompt))
	assert.Equal(t, "yellow", domain.Deref(applied.Recolor.To))
}

func TestReconcilerRejectsFieldOutsideKind(t *testing.T) {
	r := NewReconciler(domain.TransformationFill, nil, time.Hour)
	defer r.Close()

	err := r.UpdateField("prompt", "sky")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.False(t, r.HasStaged())
}

func TestReconcilerSelectAspectRatioSeedsDefaults(t *testing.T) {
	r := NewReconciler(domain.TransformationFill, nil, time.Hour)
	defer r.Close()

	opt, err := r.SelectAspectRatio("square")
	require.NoError(t, err)
	assert.Equal(t, 500, opt.Width)
	assert.Equal(t, 500, opt.Height)
	assert.Equal(t, "square", opt.Key)
	assert.Equal(t, domain.TransformationFill.DefaultConfig(), r.Pending())

	_, err = r.SelectAspectRatio("panorama")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReconcilerSeedSupersedesOlderStagedEdits(t *testing.T) {
	r := NewReconciler(domain.TransformationRemove, nil, time.Hour)
	defer r.Close()

	require.NoError(t, r.UpdateField("prompt", "typed before seed"))
	r.SeedDefaults()
	require.NoError(t, r.UpdateField("prompt", "lamp"))

	applied := r.Apply()
	require.NotNil(t, applied.Remove)
	assert.Equal(t, "lamp", domain.Deref(applied.Remove.Prompt))
	assert.True(t, domain.Deref(applied.Remove.RemoveShadow))
}

func TestReconcilerCommittedIsCopied(t *testing.T) {
	initial := domain.Transformations{Restore: domain.Bool(true)}
	r := NewReconciler(domain.TransformationRestore, &initial, time.Hour)
	defer r.Close()

	*initial.Restore = false
	got := r.Committed()
	require.NotNil(t, got)
	assert.True(t, domain.Deref(got.Restore))

	assert.Nil(t, NewReconciler(domain.TransformationRestore, nil, time.Hour).Committed())
}

func TestReconcilerApplyIfRejectedKeepsState(t *testing.T) {
	committed := domain.TransformationRestore.DefaultConfig()
	r := NewReconciler(domain.TransformationRecolor, &committed, time.Hour)
	defer r.Close()

	require.NoError(t, r.UpdateField("prompt", "car"))

	boom := errors.New("incomplete")
	var seen domain.Transformations
	_, err := r.ApplyIf(func(merged domain.Transformations) error {
		seen = merged
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NotNil(t, seen.Recolor)
	assert.Equal(t, "car", domain.Deref(seen.Recolor.Prompt))

	assert.Equal(t, committed, *r.Committed())
	require.NotNil(t, r.Pending().Recolor)
	assert.Equal(t, "car", domain.Deref(r.Pending().Recolor.Prompt))

	applied, err := r.ApplyIf(func(domain.Transformations) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "car", domain.Deref(applied.Recolor.Prompt))
	assert.True(t, domain.Deref(applied.Restore))
	assert.True(t, r.Pending().IsZero())
}
