package models

import (
	"time"

	"gorm.io/gorm"
)

// Account tiers. The tier controls the generation quota and whether the
// produced artifact expires.
const (
	TierFree = "free"
	TierPro  = "pro"
)

// TierMax returns the maximum permitted generation count for a tier.
func TierMax(tier string) int {
	if tier == TierPro {
		return 10
	}
	return 3
}

// TierExpiry returns how long a generated artifact stays reachable for a
// tier. Zero means the artifact never expires.
func TierExpiry(tier string) time.Duration {
	if tier == TierPro {
		return 0
	}
	return 14 * 24 * time.Hour
}

// User represents an account that owns draft projects.
type User struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Email string `json:"email" gorm:"uniqueIndex;not null"`
	Name  string `json:"name"`

	// Subscription tier: free, pro
	Tier string `json:"tier" gorm:"default:'free'"`

	Drafts []DraftProject `json:"drafts" gorm:"foreignKey:OwnerID"`
}

// Draft statuses.
const (
	DraftStatusDraft     = "draft"
	DraftStatusGenerated = "generated"
)

// DraftProject is the unit of work for the generation pipeline. All
// generation parameters live on this record; the generate call accepts
// nothing but the draft identifier.
type DraftProject struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Stable external key used in URLs and the tree store.
	PublicID string `json:"public_id" gorm:"uniqueIndex;not null"`

	OwnerID uint `json:"owner_id" gorm:"not null;index"`
	Owner   User `json:"-" gorm:"foreignKey:OwnerID"`

	// Business context consumed by the prompts
	BusinessName        string `json:"business_name" gorm:"not null"`
	BusinessType        string `json:"business_type"` // food-beverage, retail, services, ...
	BusinessDescription string `json:"business_description" gorm:"type:text"`
	Location            string `json:"location"`

	// Visual preferences
	Style           string `json:"style"` // modern, classic, bold, minimal, ...
	PreferredColors string `json:"preferred_colors"`
	UploadedImage   string `json:"uploaded_image"` // URL of an uploaded reference image, if any

	// Free-form request text for the agentic builder
	RequestText string `json:"request_text" gorm:"type:text"`

	// Produced by the pipeline
	Status          string     `json:"status" gorm:"default:'draft'"`
	GenerationCount int        `json:"generation_count" gorm:"default:0"`
	DraftURL        string     `json:"draft_url"`
	GeneratedAt     *time.Time `json:"generated_at"`
	ExpiresAt       *time.Time `json:"expires_at"`

	// Generated component code, SEO block, page structure
	Metadata map[string]interface{} `json:"metadata" gorm:"serializer:json"`
}

// DraftFile is one committed file of a generated virtual tree. The whole
// tree for a draft is replaced atomically on each successful commit.
type DraftFile struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DraftID uint   `json:"draft_id" gorm:"not null;index:idx_draft_path,unique"`
	Path    string `json:"path" gorm:"not null;index:idx_draft_path,unique"`
	Content string `json:"content" gorm:"type:text"`
	Size    int64  `json:"size" gorm:"default:0"`
}

// GenerationRun records one pipeline run for auditability.
type GenerationRun struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`

	RunID    string `json:"run_id" gorm:"uniqueIndex;not null"`
	DraftID  uint   `json:"draft_id" gorm:"index"`
	Strategy string `json:"strategy"` // agentic, legacy
	Success  bool   `json:"success"`
	Error    string `json:"error"`

	DurationMs int64 `json:"duration_ms"`
}
