package pipeline

import (
	"context"
	"testing"

	"sitesmith/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaGateAllowsUnderLimit(t *testing.T) {
	gdb := testDB(t)
	seeded, _ := seedDraft(t, gdb, models.TierFree, 2)

	gate := NewQuotaGate(gdb)
	draft, owner, err := gate.Check(context.Background(), seeded.PublicID)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, draft.ID)
	assert.Equal(t, models.TierFree, owner.Tier)
}

func TestQuotaGateRejectsAtLimit(t *testing.T) {
	tests := []struct {
		name  string
		tier  string
		count int
		allow bool
	}{
		{"free under limit", models.TierFree, 2, true},
		{"free at limit", models.TierFree, 3, false},
		{"free over limit", models.TierFree, 5, false},
		{"pro under limit", models.TierPro, 9, true},
		{"pro at limit", models.TierPro, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gdb := testDB(t)
			seeded, _ := seedDraft(t, gdb, tt.tier, tt.count)

			gate := NewQuotaGate(gdb)
			_, _, err := gate.Check(context.Background(), seeded.PublicID)
			if tt.allow {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrQuotaExceeded)
			}
		})
	}
}

func TestQuotaGateDraftNotFound(t *testing.T) {
	gdb := testDB(t)
	gate := NewQuotaGate(gdb)
	_, _, err := gate.Check(context.Background(), "no-such-draft")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestQuotaGateOrphanedDraft(t *testing.T) {
	gdb := testDB(t)
	seeded, owner := seedDraft(t, gdb, models.TierFree, 0)
	require.NoError(t, gdb.Delete(&models.User{}, owner.ID).Error)

	gate := NewQuotaGate(gdb)
	_, _, err := gate.Check(context.Background(), seeded.PublicID)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
