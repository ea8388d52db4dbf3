package session

import (
	"testing"
	"time"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerCreateValidates(t *testing.T) {
	m := newTestManager(t, nil)

	_, err := m.Create("", domain.TransformationFill, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = m.Create("user-1", domain.TransformationType("blur"), nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, m.Len())
}

func TestManagerGetChecksOwnerAndExpiry(t *testing.T) {
	m := newTestManager(t, nil)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	s, err := m.Create("user-1", domain.TransformationFill, nil)
	require.NoError(t, err)

	got, err := m.Get("user-1", s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get("user-2", s.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = m.Get("user-1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	now = now.Add(DefaultTTL - time.Second)
	_, err = m.Get("user-1", s.ID)
	require.NoError(t, err, "access extends the lifetime")

	now = now.Add(DefaultTTL)
	_, err = m.Get("user-1", s.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, m.Len())
}

func TestManagerSweep(t *testing.T) {
	m := newTestManager(t, nil)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, err := m.Create("user-1", domain.TransformationFill, nil)
	require.NoError(t, err)
	now = now.Add(time.Minute)
	fresh, err := m.Create("user-1", domain.TransformationRestore, nil)
	require.NoError(t, err)

	now = now.Add(DefaultTTL - 30*time.Second)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())

	_, err = m.Get("user-1", fresh.ID)
	assert.NoError(t, err)
}

func TestManagerDelete(t *testing.T) {
	m := newTestManager(t, nil)
	s, err := m.Create("user-1", domain.TransformationFill, nil)
	require.NoError(t, err)

	m.Delete(s.ID)
	_, err = m.Get("user-1", s.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
