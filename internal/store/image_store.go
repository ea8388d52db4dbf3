package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dunamismax/imaginify/internal/domain"
)

const DefaultListLimit = 50

// ImageStore persists image records. Records are keyed by a store-assigned
// id and owned by the user that created them; only the owner may update or
// delete one.
type ImageStore interface {
	Create(ctx context.Context, owner string, img domain.ImageRecord) (domain.ImageRecord, error)
	Update(ctx context.Context, owner, id string, img domain.ImageRecord) (domain.ImageRecord, error)
	Get(ctx context.Context, id string) (domain.ImageRecord, error)
	ListByOwner(ctx context.Context, owner string, limit int) ([]domain.ImageRecord, error)
	Delete(ctx context.Context, owner, id string) error
	SetExport(ctx context.Context, id, status, key string) error
}

func prepareCreate(owner string, img domain.ImageRecord, now time.Time) (domain.ImageRecord, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return domain.ImageRecord{}, fmt.Errorf("%w: owner is required", domain.ErrValidation)
	}
	if err := img.Validate(); err != nil {
		return domain.ImageRecord{}, err
	}

	img.Owner = owner
	img.CreatedAt = now
	img.UpdatedAt = now
	return img, nil
}

// prepareUpdate checks ownership and carries the immutable fields of
// existing over to img.
func prepareUpdate(owner string, existing, img domain.ImageRecord, now time.Time) (domain.ImageRecord, error) {
	if err := img.Validate(); err != nil {
		return domain.ImageRecord{}, err
	}
	if err := checkOwner(owner, existing); err != nil {
		return domain.ImageRecord{}, err
	}

	img.ID = existing.ID
	img.Owner = existing.Owner
	img.CreatedAt = existing.CreatedAt
	img.UpdatedAt = now
	if img.ExportStatus == "" {
		img.ExportStatus = existing.ExportStatus
		img.ExportKey = existing.ExportKey
	}
	return img, nil
}

func checkOwner(owner string, existing domain.ImageRecord) error {
	if strings.TrimSpace(owner) == "" || existing.Owner != owner {
		return fmt.Errorf("%w: image %s belongs to another user", domain.ErrForbidden, existing.ID)
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return DefaultListLimit
	}
	return limit
}

func notFound(id string) error {
	return fmt.Errorf("%w: image %s", domain.ErrNotFound, id)
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
}
