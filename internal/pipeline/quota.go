package pipeline

import (
	"context"
	"errors"

	"sitesmith/pkg/models"

	"gorm.io/gorm"
)

// QuotaGate decides whether a draft is eligible for another generation.
// Pure read; it runs before any LLM call so an over-quota request never
// spends tokens.
type QuotaGate struct {
	db *gorm.DB
}

// NewQuotaGate creates a quota gate over the record store.
func NewQuotaGate(db *gorm.DB) *QuotaGate {
	return &QuotaGate{db: db}
}

// Check loads the draft and its owning account and verifies the quota.
// Returns both records so the orchestrator reads the store exactly once.
func (g *QuotaGate) Check(ctx context.Context, draftPublicID string) (*models.DraftProject, *models.User, error) {
	var draft models.DraftProject
	err := g.db.WithContext(ctx).Where("public_id = ?", draftPublicID).First(&draft).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, wrapf(ErrDraftNotFound, "draft %s", draftPublicID)
		}
		return nil, nil, err
	}

	var owner models.User
	err = g.db.WithContext(ctx).First(&owner, draft.OwnerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, wrapf(ErrAccountNotFound, "account %d for draft %s", draft.OwnerID, draftPublicID)
		}
		return nil, nil, err
	}

	if draft.GenerationCount >= models.TierMax(owner.Tier) {
		return nil, nil, wrapf(ErrQuotaExceeded, "draft %s used %d of %d generations on tier %s",
			draftPublicID, draft.GenerationCount, models.TierMax(owner.Tier), owner.Tier)
	}

	return &draft, &owner, nil
}
