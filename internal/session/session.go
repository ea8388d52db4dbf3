package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dunamismax/imaginify/internal/cdn"
	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/dunamismax/imaginify/internal/store"
	"github.com/dunamismax/imaginify/internal/transform"
	"github.com/dunamismax/imaginify/internal/upload"
	"github.com/rs/zerolog"
)

const maxNotifications = 20

// Form holds the user-entered values of an editing session.
type Form struct {
	Title       string `json:"title"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Color       string `json:"color,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	AssetID     string `json:"asset_id,omitempty"`
}

// Session is one user's in-progress edit of an image, either a new one
// (add) or an existing record (update).
type Session struct {
	ID     string
	Owner  string
	Action string
	Kind   domain.TransformationType

	store       store.ImageStore
	urls        cdn.Builder
	coordinator *upload.Coordinator
	reconciler  *transform.Reconciler
	quiet       time.Duration
	logger      zerolog.Logger

	mu            sync.Mutex
	image         domain.ImageRecord
	form          Form
	notifications []domain.Notification
	transforming  bool
	expiresAt     time.Time
}

// View is a point-in-time snapshot of a session.
type View struct {
	ID            string                    `json:"id"`
	Owner         string                    `json:"owner"`
	Action        string                    `json:"action"`
	Kind          domain.TransformationType `json:"type"`
	Image         domain.ImageRecord        `json:"image"`
	Form          Form                      `json:"form"`
	Pending       domain.Transformations    `json:"pending"`
	Committed     *domain.Transformations   `json:"committed,omitempty"`
	Transforming  bool                      `json:"transforming"`
	Notifications []domain.Notification     `json:"notifications"`
	ExpiresAt     time.Time                 `json:"expires_at"`
}

func (s *Session) UpdateImage(fn func(img *domain.ImageRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.image)
}

func (s *Session) Notify(n domain.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[len(s.notifications)-maxNotifications:]
	}
}

// Upload applies a raw upload widget result to the draft image.
func (s *Session) Upload(raw []byte) error {
	result, err := upload.ParseResult(raw)
	if err != nil {
		return err
	}

	s.coordinator.Handle(result, s, func(assetID string) {
		s.mu.Lock()
		s.form.AssetID = assetID
		s.mu.Unlock()
		s.seedFieldlessKind()
	})
	return nil
}

// EditField records a prompt or color keystroke. The form value changes at
// once; the transformation parameter follows after the quiet window.
func (s *Session) EditField(field, value string) error {
	req := domain.FieldEditRequest{Field: field, Value: value}
	if err := req.Validate(); err != nil {
		return err
	}
	if err := s.rec().UpdateField(field, value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch field {
	case "prompt":
		s.form.Prompt = value
	case "color":
		s.form.Color = value
	}
	return nil
}

// SelectAspectRatio sizes the draft to the chosen ratio and seeds the pending
// set with the fill defaults.
func (s *Session) SelectAspectRatio(key string) (domain.AspectRatioOption, error) {
	if s.Kind != domain.TransformationFill {
		return domain.AspectRatioOption{}, fmt.Errorf("%w: aspect ratio only applies to %s", domain.ErrValidation, domain.TransformationFill)
	}
	opt, err := s.rec().SelectAspectRatio(key)
	if err != nil {
		return domain.AspectRatioOption{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.image.AspectRatio = opt.Key
	s.image.Width = opt.Width
	s.image.Height = opt.Height
	s.form.AspectRatio = opt.Key
	return opt, nil
}

// Apply merges pending edits into the committed configuration and returns
// the URL of the transformed preview. When no URL can be built from the
// merged configuration nothing is committed and the edits stay pending.
func (s *Session) Apply() (string, error) {
	s.mu.Lock()
	img := s.image
	s.mu.Unlock()
	if strings.TrimSpace(img.AssetID) == "" {
		return "", fmt.Errorf("%w: upload an image before applying a transformation", domain.ErrValidation)
	}

	width, height := domain.DisplaySize(s.Kind, img)
	var rendered string
	merged, err := s.rec().ApplyIf(func(cfg domain.Transformations) error {
		var err error
		rendered, err = s.urls.URL(cdn.Params{
			AssetID: img.AssetID,
			Width:   width,
			Height:  height,
			Config:  cfg,
		})
		return err
	})
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.image.Config = &merged
	s.image.TransformationURL = rendered
	s.transforming = true
	return rendered, nil
}

// Save persists the draft. A new image is created on the first save of an
// add session, after which the form starts over; an update session writes
// over its record.
func (s *Session) Save(ctx context.Context, title string) (domain.ImageRecord, error) {
	s.mu.Lock()
	if t := strings.TrimSpace(title); t != "" {
		s.form.Title = t
	}
	record, err := s.recordLocked()
	s.mu.Unlock()
	if err != nil {
		return domain.ImageRecord{}, err
	}

	var saved domain.ImageRecord
	if s.Action == domain.SessionActionAdd {
		saved, err = s.store.Create(ctx, s.Owner, record)
	} else {
		saved, err = s.store.Update(ctx, s.Owner, record.ID, record)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", s.ID).Str("action", s.Action).Msg("save image failed")
		s.Notify(domain.Notification{
			Title:       "Something went wrong while saving",
			Description: "Please try again",
			Variant:     domain.NotificationError,
			Duration:    domain.NotificationDuration,
			CreatedAt:   time.Now().UTC(),
		})
		return domain.ImageRecord{}, err
	}

	s.logger.Info().Str("session_id", s.ID).Str("image_id", saved.ID).Str("action", s.Action).Msg("image saved")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transforming = false
	if s.Action == domain.SessionActionAdd {
		s.resetLocked()
	} else {
		s.image = saved
	}
	return saved, nil
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	img := s.image
	if img.Config != nil {
		c := img.Config.Clone()
		img.Config = &c
	}
	notes := make([]domain.Notification, len(s.notifications))
	copy(notes, s.notifications)

	return View{
		ID:            s.ID,
		Owner:         s.Owner,
		Action:        s.Action,
		Kind:          s.Kind,
		Image:         img,
		Form:          s.form,
		Pending:       s.reconciler.Pending(),
		Committed:     s.reconciler.Committed(),
		Transforming:  s.transforming,
		Notifications: notes,
		ExpiresAt:     s.expiresAt,
	}
}

// Close stops any pending debounced write.
func (s *Session) Close() {
	s.rec().Close()
}

// rec returns the current reconciler; it is replaced when an add session
// starts over after a save.
func (s *Session) rec() *transform.Reconciler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconciler
}

func (s *Session) recordLocked() (domain.ImageRecord, error) {
	img := s.image
	if strings.TrimSpace(img.AssetID) == "" {
		return domain.ImageRecord{}, fmt.Errorf("%w: upload an image before saving", domain.ErrValidation)
	}

	committed := s.reconciler.Committed()
	var cfg domain.Transformations
	if committed != nil {
		cfg = *committed
	}

	// An incomplete configuration still saves, without a rendered URL.
	width, height := domain.DisplaySize(s.Kind, img)
	rendered, err := s.urls.URL(cdn.Params{
		AssetID: img.AssetID,
		Width:   width,
		Height:  height,
		Config:  cfg,
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("session_id", s.ID).Msg("saving without transformation url")
		rendered = ""
	}

	img.Title = s.form.Title
	img.TransformationType = s.Kind
	img.Config = committed
	img.TransformationURL = rendered
	img.AspectRatio = s.form.AspectRatio
	img.Prompt = s.form.Prompt
	img.Color = s.form.Color
	return img, nil
}

func (s *Session) resetLocked() {
	s.reconciler.Close()
	s.reconciler = transform.NewReconciler(s.Kind, nil, s.quiet)
	s.image = domain.ImageRecord{TransformationType: s.Kind}
	s.form = Form{}
}

// seedFieldlessKind pre-populates the pending set for kinds that have no
// editable parameters once an image is present.
func (s *Session) seedFieldlessKind() {
	switch s.Kind {
	case domain.TransformationRestore, domain.TransformationRemoveBackground:
		s.rec().SeedDefaults()
	}
}

func (s *Session) touch(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiresAt = now.Add(ttl)
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !now.Before(s.expiresAt)
}
