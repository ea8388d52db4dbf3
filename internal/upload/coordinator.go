package upload

import (
	"strings"
	"time"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/rs/zerolog"
)

// ImageState is the image draft an upload writes into.
type ImageState interface {
	UpdateImage(fn func(img *domain.ImageRecord))
}

type Notifier interface {
	Notify(n domain.Notification)
}

type Coordinator struct {
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewCoordinator(notifier Notifier, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle applies an upload outcome. On success the asset fields are written
// over the draft, leaving its other fields alone, and the asset id is passed
// to onValueChange. A failure only notifies. An unrecognized result, or a
// success without an asset id, has no effect at all.
func (c *Coordinator) Handle(result Result, state ImageState, onValueChange func(assetID string)) {
	switch r := result.(type) {
	case Success:
		if strings.TrimSpace(r.Info.AssetID) == "" {
			c.logger.Debug().Msg("ignoring upload success without asset id")
			return
		}
		state.UpdateImage(func(img *domain.ImageRecord) {
			img.AssetID = r.Info.AssetID
			img.Width = r.Info.Width
			img.Height = r.Info.Height
			img.SecureURL = r.Info.SecureURL
		})
		if onValueChange != nil {
			onValueChange(r.Info.AssetID)
		}
		c.logger.Info().
			Str("asset_id", r.Info.AssetID).
			Int("width", r.Info.Width).
			Int("height", r.Info.Height).
			Msg("upload completed")
		c.notify(domain.Notification{
			Title:       "Image uploaded successfully",
			Description: "1 credit deducted from your account",
			Variant:     domain.NotificationSuccess,
		})
	case Failure:
		c.logger.Warn().Str("reason", r.Reason).Msg("upload failed")
		c.notify(domain.Notification{
			Title:       "Something went wrong while uploading",
			Description: "Please try again",
			Variant:     domain.NotificationError,
		})
	case Unrecognized, nil:
		c.logger.Debug().Msg("ignoring unrecognized upload result")
	}
}

func (c *Coordinator) notify(n domain.Notification) {
	if c.notifier == nil {
		return
	}
	n.Duration = domain.NotificationDuration
	n.CreatedAt = c.now().UTC()
	c.notifier.Notify(n)
}
