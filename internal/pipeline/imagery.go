package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sitesmith/internal/ai"
	"sitesmith/internal/logging"
	"sitesmith/pkg/models"

	"github.com/go-redis/redis/v8"
)

// ImageContext is the visual context fed into the build prompts. Exactly one
// variant is set per run, or neither when both attempts fail; downstream
// strategies then proceed without visual context.
type ImageContext struct {
	Analyzed  *AnalyzedImage   `json:"analyzed,omitempty"`
	Suggested *SuggestedImages `json:"suggested,omitempty"`
}

// AnalyzedImage is derived from an uploaded reference image.
type AnalyzedImage struct {
	Description string   `json:"description"`
	Placements  []string `json:"placements"`
	Palette     []string `json:"palette"`
	StyleNotes  string   `json:"styleNotes"`
}

// SuggestedImages holds stock-photo identifiers chosen for the three
// standard slots, with a short description per slot.
type SuggestedImages struct {
	Hero         string            `json:"hero"`
	About        string            `json:"about"`
	Service      string            `json:"service"`
	Descriptions map[string]string `json:"descriptions,omitempty"`
}

// PromptContext renders the image context for inclusion in a build prompt.
func (c *ImageContext) PromptContext() string {
	if c == nil {
		return ""
	}
	switch {
	case c.Analyzed != nil:
		return fmt.Sprintf(
			"The owner uploaded a reference image: %s. Suggested placements: %s. Color palette: %s. Style notes: %s.",
			c.Analyzed.Description,
			strings.Join(c.Analyzed.Placements, ", "),
			strings.Join(c.Analyzed.Palette, ", "),
			c.Analyzed.StyleNotes,
		)
	case c.Suggested != nil:
		return fmt.Sprintf(
			"Use these stock photos (unsplash ids): hero %s, about %s, services %s.",
			c.Suggested.Hero, c.Suggested.About, c.Suggested.Service,
		)
	default:
		return ""
	}
}

// ImageResolver resolves visual context for a run. The analyze branch (an
// uploaded image exists) propagates its failure upward; the suggest branch
// never raises and falls back to a curated static table.
type ImageResolver struct {
	vision      ai.Client
	text        ai.Client
	visionModel string
	textModel   string
	redis       *redis.Client // optional suggestion cache; nil disables
}

// NewImageResolver creates an image context resolver.
func NewImageResolver(vision, text ai.Client, visionModel, textModel string, redisClient *redis.Client) *ImageResolver {
	return &ImageResolver{
		vision:      vision,
		text:        text,
		visionModel: visionModel,
		textModel:   textModel,
		redis:       redisClient,
	}
}

// Resolve picks the branch by the presence of an uploaded image. An analyze
// failure is returned to the caller; a suggest failure never is.
func (r *ImageResolver) Resolve(ctx context.Context, draft *models.DraftProject) (*ImageContext, error) {
	if draft.UploadedImage != "" {
		analyzed, err := r.AnalyzeUpload(ctx, draft)
		if err != nil {
			return nil, err
		}
		return &ImageContext{Analyzed: analyzed}, nil
	}
	return &ImageContext{Suggested: r.SuggestImagery(ctx, draft)}, nil
}

// AnalyzeUpload asks the vision backend to describe the uploaded image in a
// fixed JSON shape. A transport failure propagates; an unparseable reply
// returns the generic fallback object instead.
func (r *ImageResolver) AnalyzeUpload(ctx context.Context, draft *models.DraftProject) (*AnalyzedImage, error) {
	prompt := fmt.Sprintf(
		`This image was uploaded by the owner of %q (%s) for their website. `+
			`Analyze it and respond with exactly one JSON object of this shape: `+
			`{"description": string, "placements": [string], "palette": ["#rrggbb"], "styleNotes": string}. `+
			`Placements are page sections where the image fits (hero, about, services, gallery).`,
		draft.BusinessName, draft.BusinessType,
	)

	resp, err := r.vision.Complete(ctx, &ai.ChatRequest{
		Model: r.visionModel,
		Messages: []ai.ChatMessage{{
			Role: ai.RoleUser,
			Parts: []ai.ContentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &ai.ImageURL{URL: draft.UploadedImage}},
			},
		}},
		MaxTokens: 800,
	})
	if err != nil {
		return nil, fmt.Errorf("image analysis failed: %w", err)
	}

	raw := ai.ExtractJSON(resp.Content)
	if raw == "" {
		return genericAnalyzedImage(), nil
	}

	var analyzed AnalyzedImage
	if err := json.Unmarshal([]byte(raw), &analyzed); err != nil {
		return genericAnalyzedImage(), nil
	}
	if analyzed.Description == "" {
		return genericAnalyzedImage(), nil
	}
	return &analyzed, nil
}

// genericAnalyzedImage is the fixed fallback for unparseable vision replies.
func genericAnalyzedImage() *AnalyzedImage {
	return &AnalyzedImage{
		Description: "A professional photo suitable for a business website",
		Placements:  []string{"hero"},
		Palette:     []string{"#1e3a8a", "#3b82f6", "#f8fafc"},
		StyleNotes:  "professional",
	}
}

// SuggestImagery picks thematic stock photos via the text backend. Any
// failure (network, timeout, unparseable JSON) falls back deterministically
// to the curated table for the draft's business type. It never returns an
// error.
func (r *ImageResolver) SuggestImagery(ctx context.Context, draft *models.DraftProject) *SuggestedImages {
	cacheKey := fmt.Sprintf("imagery:%s:%s:%s", draft.BusinessType, draft.Style, draft.PreferredColors)
	if cached := r.cacheGet(ctx, cacheKey); cached != nil {
		return cached
	}

	prompt := fmt.Sprintf(
		`Choose unsplash photo ids for a %s business website with a %s aesthetic and colors %q. `+
			`Respond with exactly one JSON object: {"hero": id, "about": id, "service": id, `+
			`"descriptions": {"hero": string, "about": string, "service": string}}. `+
			`Ids are bare unsplash photo identifiers like "1555939596-4b03f3b8c8b0".`,
		orDefault(draft.BusinessType, "local"), orDefault(draft.Style, "modern"), draft.PreferredColors,
	)

	resp, err := r.text.Complete(ctx, &ai.ChatRequest{
		Model:     r.textModel,
		Messages:  []ai.ChatMessage{{Role: ai.RoleUser, Content: prompt}},
		MaxTokens: 400,
	})
	if err != nil {
		logging.S().Debugw("image suggestion call failed, using fallback table", "business_type", draft.BusinessType, "error", err)
		return fallbackImagery(draft.BusinessType)
	}

	raw := ai.ExtractJSON(resp.Content)
	if raw == "" {
		return fallbackImagery(draft.BusinessType)
	}

	var suggested SuggestedImages
	if err := json.Unmarshal([]byte(raw), &suggested); err != nil {
		return fallbackImagery(draft.BusinessType)
	}
	if suggested.Hero == "" || suggested.About == "" || suggested.Service == "" {
		return fallbackImagery(draft.BusinessType)
	}

	r.cacheSet(ctx, cacheKey, &suggested)
	return &suggested
}

func (r *ImageResolver) cacheGet(ctx context.Context, key string) *SuggestedImages {
	if r.redis == nil {
		return nil
	}
	raw, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		return nil
	}
	var suggested SuggestedImages
	if err := json.Unmarshal([]byte(raw), &suggested); err != nil {
		return nil
	}
	return &suggested
}

func (r *ImageResolver) cacheSet(ctx context.Context, key string, suggested *SuggestedImages) {
	if r.redis == nil {
		return
	}
	raw, err := json.Marshal(suggested)
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, key, raw, time.Hour).Err(); err != nil {
		logging.S().Debugw("failed to cache image suggestions", "key", key, "error", err)
	}
}

// fallbackImagery returns the curated static set for a business type. Same
// input, same output, every time.
func fallbackImagery(businessType string) *SuggestedImages {
	if set, ok := curatedImagery[businessType]; ok {
		copied := set
		return &copied
	}
	copied := defaultImagery
	return &copied
}

// curatedImagery maps business types to hand-picked unsplash photo ids.
var curatedImagery = map[string]SuggestedImages{
	"food-beverage": {
		Hero:    "1555939596-4b03f3b8c8b0",
		About:   "1517248135467-4c7edcad34c4",
		Service: "1414235077428-338989a2e8c0",
		Descriptions: map[string]string{
			"hero":    "A beautifully plated dish on a rustic table",
			"about":   "A warm, inviting restaurant interior",
			"service": "An elegant dining table set for guests",
		},
	},
	"retail": {
		Hero:    "1441986300917-64674bd600d8",
		About:   "1472851294608-062f824d29cc",
		Service: "1556742049-0cfed4f6a45d",
		Descriptions: map[string]string{
			"hero":    "A bright, modern storefront display",
			"about":   "Curated products on wooden shelving",
			"service": "A customer completing a purchase",
		},
	},
	"services": {
		Hero:    "1497366216548-37526070297c",
		About:   "1522071820081-009f0129c71c",
		Service: "1454165804606-c3d57bc86b40",
		Descriptions: map[string]string{
			"hero":    "A clean, professional office space",
			"about":   "A team collaborating around a table",
			"service": "Hands reviewing documents and plans",
		},
	},
	"health-wellness": {
		Hero:    "1571019613454-1cb2f99b2d8b",
		About:   "1544367567-0f2fcb009e0b",
		Service: "1506126613408-eca07ce68773",
		Descriptions: map[string]string{
			"hero":    "A serene wellness studio at sunrise",
			"about":   "A yoga class in a bright room",
			"service": "A calming treatment space with plants",
		},
	},
	"beauty": {
		Hero:    "1560066984-138dadb4c035",
		About:   "1522335789203-aabd1fc54bc9",
		Service: "1487412947147-5cebf100ffc2",
		Descriptions: map[string]string{
			"hero":    "A stylish salon interior",
			"about":   "Professional beauty products on display",
			"service": "A stylist working with a client",
		},
	},
	"travel-hospitality": {
		Hero:    "1566073771259-6a8506099945",
		About:   "1582719508461-905c673771fd",
		Service: "1551882547-ff40c63fe5fa",
		Descriptions: map[string]string{
			"hero":    "A resort pool at golden hour",
			"about":   "A welcoming hotel lobby",
			"service": "A comfortable, sunlit guest room",
		},
	},
}

// defaultImagery is used for business types outside the curated table.
var defaultImagery = SuggestedImages{
	Hero:    "1497366754035-f200968a6e72",
	About:   "1557804506-669a67965ba0",
	Service: "1521737604893-d14cc237f11d",
	Descriptions: map[string]string{
		"hero":    "A bright, modern workspace",
		"about":   "A friendly team at work",
		"service": "People collaborating on a project",
	},
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
