package upload

import (
	"testing"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeState struct {
	img     domain.ImageRecord
	updates int
}

func (s *fakeState) UpdateImage(fn func(img *domain.ImageRecord)) {
	s.updates++
	fn(&s.img)
}

type captureNotifier struct {
	got []domain.Notification
}

func (n *captureNotifier) Notify(note domain.Notification) {
	n.got = append(n.got, note)
}

func TestHandleSuccessOverlaysAssetFields(t *testing.T) {
	state := &fakeState{img: domain.ImageRecord{
		Title:       "holiday",
		AspectRatio: "square",
		Prompt:      "car",
		Width:       1,
	}}
	notifier := &captureNotifier{}
	var forwarded []string

	result, err := ParseResult([]byte(`{"event":"success","info":{"public_id":"abc","width":800,"height":600,"secure_url":"https://x/abc.png"}}`))
	require.NoError(t, err)

	NewCoordinator(notifier, zerolog.Nop()).Handle(result, state, func(id string) {
		forwarded = append(forwarded, id)
	})

	assert.Equal(t, domain.ImageRecord{
		Title:       "holiday",
		AspectRatio: "square",
		Prompt:      "car",
		AssetID:     "abc",
		Width:       800,
		Height:      600,
		SecureURL:   "https://x/abc.png",
	}, state.img)
	assert.Equal(t, []string{"abc"}, forwarded)
	require.Len(t, notifier.got, 1)
	assert.Equal(t, domain.NotificationSuccess, notifier.got[0].Variant)
	assert.Equal(t, domain.NotificationDuration, notifier.got[0].Duration)
}

func TestHandleStringInfoIsFailure(t *testing.T) {
	state := &fakeState{img: domain.ImageRecord{Title: "keep"}}
	notifier := &captureNotifier{}
	called := false

	result, err := ParseResult([]byte(`{"info":"upload aborted"}`))
	require.NoError(t, err)
	require.Equal(t, Failure{Reason: "upload aborted"}, result)

	NewCoordinator(notifier, zerolog.Nop()).Handle(result, state, func(string) { called = true })

	assert.Equal(t, 0, state.updates)
	assert.Equal(t, domain.ImageRecord{Title: "keep"}, state.img)
	assert.False(t, called)
	require.Len(t, notifier.got, 1)
	assert.Equal(t, domain.NotificationError, notifier.got[0].Variant)
}

func TestHandleUnrecognizedHasNoSideEffects(t *testing.T) {
	payloads := []string{
		`{}`,
		`{"info":{"width":10}}`,
		`{"info":42}`,
		`{"event":"success","info":{"public_id":"","width":10}}`,
	}

	for _, payload := range payloads {
		t.Run(payload, func(t *testing.T) {
			state := &fakeState{}
			notifier := &captureNotifier{}
			called := false

			result, err := ParseResult([]byte(payload))
			require.NoError(t, err)

			NewCoordinator(notifier, zerolog.Nop()).Handle(result, state, func(string) { called = true })

			assert.Equal(t, 0, state.updates)
			assert.False(t, called)
			assert.Empty(t, notifier.got)
		})
	}
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Result
	}{
		{
			name:    "success",
			payload: `{"info":{"public_id":"p1","width":1,"height":2,"secure_url":"u"}}`,
			want:    Success{Info: Info{AssetID: "p1", Width: 1, Height: 2, SecureURL: "u"}},
		},
		{
			name:    "error event",
			payload: `{"event":"error"}`,
			want:    Failure{Reason: "upload failed"},
		},
		{
			name:    "error event with object info",
			payload: `{"event":"error","info":{"status":"timeout"}}`,
			want:    Failure{Reason: "upload failed"},
		},
		{
			name:    "null info",
			payload: `{"info":null}`,
			want:    Unrecognized{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResult([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseResult([]byte(`{"info":`))
	assert.ErrorIs(t, err, domain.ErrValidation)
}
