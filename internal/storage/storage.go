// Package storage persists generated file trees. A tree is always committed
// whole for a draft: the previous tree is replaced, never merged.
package storage

import (
	"context"
	"fmt"

	"sitesmith/pkg/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TreeStore accepts a path→content mapping for a given draft.
type TreeStore interface {
	// CommitTree replaces the stored tree for the draft with files.
	CommitTree(ctx context.Context, draftID uint, publicID string, files map[string]string) error
}

// DBTreeStore stores tree files as rows in the record store.
type DBTreeStore struct {
	db *gorm.DB
}

// NewDBTreeStore creates a database-backed tree store.
func NewDBTreeStore(db *gorm.DB) *DBTreeStore {
	return &DBTreeStore{db: db}
}

// CommitTree implements TreeStore. The delete and the inserts run in one
// transaction so a failed commit leaves the previous tree intact.
func (s *DBTreeStore) CommitTree(ctx context.Context, draftID uint, publicID string, files map[string]string) error {
	if len(files) == 0 {
		return fmt.Errorf("refusing to commit empty tree for draft %d", draftID)
	}

	rows := make([]models.DraftFile, 0, len(files))
	for path, content := range files {
		rows = append(rows, models.DraftFile{
			DraftID: draftID,
			Path:    path,
			Content: content,
			Size:    int64(len(content)),
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("draft_id = ?", draftID).Delete(&models.DraftFile{}).Error; err != nil {
			return fmt.Errorf("failed to clear previous tree: %w", err)
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "draft_id"}, {Name: "path"}},
			UpdateAll: true,
		}).Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to write tree: %w", err)
		}
		return nil
	})
}
