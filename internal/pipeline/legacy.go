package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sitesmith/internal/ai"
	"sitesmith/internal/logging"
	"sitesmith/pkg/models"
)

// legacyCallTimeout bounds each structure/polish call. Expiry cancels the
// in-flight request and surfaces a timeout error instead of hanging the
// stream.
const legacyCallTimeout = 120 * time.Second

// PageSpec is one planned page of the generated site.
type PageSpec struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Sections []string `json:"sections"`
}

// SEOBlock is derived from business fields, independent of model output.
type SEOBlock struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// LegacyResult is the outcome of the two-stage strategy.
type LegacyResult struct {
	Code     string
	SEO      SEOBlock
	Pages    []PageSpec
	Polished bool
}

// LegacyStrategy is the fallback build path: one call for structure, one
// call to polish it. Polish is an enhancement, not a requirement: a
// transient polish failure degrades to the structure output.
type LegacyStrategy struct {
	client ai.Client
	model  string
}

// NewLegacyStrategy creates the two-stage fallback strategy.
func NewLegacyStrategy(client ai.Client, model string) *LegacyStrategy {
	return &LegacyStrategy{client: client, model: model}
}

// Execute runs structure then polish, emitting legacy step events 1–5.
// Stage A errors are fatal to the run; Stage B errors are fatal only when
// they are authentication errors.
func (s *LegacyStrategy) Execute(ctx context.Context, draft *models.DraftProject, image *ImageContext, stream *Stream) (*LegacyResult, error) {
	stream.Step(StepRequirements, StatusInProgress, "Analyzing your business requirements")
	pages := buildPageSkeleton(draft)
	stream.Step(StepRequirements, StatusCompleted, fmt.Sprintf("Planned %d pages for %s", len(pages), draft.BusinessName))

	stream.Step(StepStructure, StatusInProgress, "Designing the site structure")
	stream.Step(StepStructure, StatusCompleted, "Site structure ready")

	stream.Step(StepGeneration, StatusInProgress, "Generating your website")

	structureCode, err := s.generateStructure(ctx, draft, image, pages)
	if err != nil {
		return nil, err
	}

	code := structureCode
	polished := false
	polishedCode, err := s.polish(ctx, draft, image, structureCode)
	switch {
	case err == nil:
		code = polishedCode
		polished = true
	case errors.Is(err, ErrUpstreamAuth):
		// Credential misconfiguration cannot be worked around by
		// degrading quality.
		return nil, err
	default:
		logging.S().Warnw("polish stage failed, using structure output",
			"draft", draft.PublicID, "error", err)
	}

	stream.Step(StepGeneration, StatusCompleted, "Website generated")

	stream.Step(StepInteractivity, StatusInProgress, "Wiring up interactivity")
	stream.Step(StepInteractivity, StatusCompleted, "Interactive elements ready")

	stream.Step(StepResponsiveness, StatusInProgress, "Tuning for all screen sizes")
	stream.Step(StepResponsiveness, StatusCompleted, "Responsive layout ready")

	return &LegacyResult{
		Code:     normalizeGeneratedCode(code),
		SEO:      deriveSEO(draft),
		Pages:    pages,
		Polished: polished,
	}, nil
}

// generateStructure is Stage A. Its failure is fatal to the run.
func (s *LegacyStrategy) generateStructure(ctx context.Context, draft *models.DraftProject, image *ImageContext, pages []PageSpec) (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(
		"Generate a complete React component for the website of %s, a %s business",
		draft.BusinessName, orDefault(draft.BusinessType, "local")))
	if draft.Location != "" {
		sb.WriteString(" in " + draft.Location)
	}
	sb.WriteString(".\n")
	if draft.BusinessDescription != "" {
		sb.WriteString("About the business: " + draft.BusinessDescription + "\n")
	}
	if draft.Style != "" || draft.PreferredColors != "" {
		sb.WriteString(fmt.Sprintf("Aesthetic: %s. Colors: %s.\n",
			orDefault(draft.Style, "modern"), orDefault(draft.PreferredColors, "tasteful defaults")))
	}
	sb.WriteString("\nPages and sections:\n")
	for _, page := range pages {
		sb.WriteString(fmt.Sprintf("- %s (%s): %s\n", page.Name, page.Path, strings.Join(page.Sections, ", ")))
	}
	if img := image.PromptContext(); img != "" {
		sb.WriteString("\n" + img + "\n")
	}
	sb.WriteString("\nReturn only the component code with a default export. No explanations.")

	return s.call(ctx, "structure", sb.String())
}

// polish is Stage B. On success its output supersedes Stage A's.
func (s *LegacyStrategy) polish(ctx context.Context, draft *models.DraftProject, image *ImageContext, structureCode string) (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(
		"Refine this React website for %s. Improve visual hierarchy, spacing, copywriting, and polish, keeping the same structure and content.\n",
		draft.BusinessName))
	if img := image.PromptContext(); img != "" {
		sb.WriteString(img + "\n")
	}
	sb.WriteString("\nCurrent code:\n" + structureCode + "\n")
	sb.WriteString("\nReturn only the improved component code with a default export. No explanations.")

	return s.call(ctx, "polish", sb.String())
}

// call performs one bounded LLM call and maps transport failures onto the
// pipeline error taxonomy.
func (s *LegacyStrategy) call(ctx context.Context, stage, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, legacyCallTimeout)
	defer cancel()

	resp, err := s.client.Complete(callCtx, &ai.ChatRequest{
		Model:     s.model,
		Messages:  []ai.ChatMessage{{Role: ai.RoleUser, Content: prompt}},
		MaxTokens: 6000,
	})
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return "", wrapf(ErrRequestTimeout, "%s call exceeded %s", stage, legacyCallTimeout)
		case errors.Is(err, ai.ErrUnauthorized):
			return "", wrapf(ErrUpstreamAuth, "%s call rejected: %v", stage, err)
		default:
			return "", wrapf(ErrUpstream, "%s call failed: %v", stage, err)
		}
	}

	if strings.TrimSpace(resp.Content) == "" {
		return "", wrapf(ErrEmptyGeneration, "%s call returned empty text", stage)
	}
	return resp.Content, nil
}

// normalizeGeneratedCode strips wrapping markup and trims the chosen text
// before it is treated as the final generated code.
func normalizeGeneratedCode(code string) string {
	return strings.TrimSpace(ai.StripFences(code))
}

// buildPageSkeleton produces the default page/navigation skeleton for the
// structure prompt. Food businesses get a menu page; everyone gets contact.
func buildPageSkeleton(draft *models.DraftProject) []PageSpec {
	pages := []PageSpec{
		{Name: "Home", Path: "/", Sections: []string{"hero", "highlights", "testimonials", "call-to-action"}},
		{Name: "About", Path: "/about", Sections: []string{"story", "team", "values"}},
	}

	switch draft.BusinessType {
	case "food-beverage":
		pages = append(pages, PageSpec{Name: "Menu", Path: "/menu", Sections: []string{"featured", "full-menu"}})
	case "retail":
		pages = append(pages, PageSpec{Name: "Products", Path: "/products", Sections: []string{"featured", "catalog"}})
	default:
		pages = append(pages, PageSpec{Name: "Services", Path: "/services", Sections: []string{"offerings", "pricing"}})
	}

	pages = append(pages, PageSpec{Name: "Contact", Path: "/contact", Sections: []string{"form", "map", "hours"}})
	return pages
}

// deriveSEO computes the SEO block from business fields. Model output never
// feeds into it.
func deriveSEO(draft *models.DraftProject) SEOBlock {
	title := draft.BusinessName
	if draft.Location != "" {
		title += " | " + draft.Location
	} else if draft.BusinessType != "" {
		title += " | " + draft.BusinessType
	}
	title = truncateAt(title, 60)

	description := strings.TrimSpace(draft.BusinessDescription)
	if description == "" {
		description = fmt.Sprintf("%s is a %s business", draft.BusinessName, orDefault(draft.BusinessType, "local"))
		if draft.Location != "" {
			description += " in " + draft.Location
		}
		description += "."
	}
	description = truncateAt(description, 160)

	keywords := []string{draft.BusinessName}
	for _, kw := range []string{draft.BusinessType, draft.Location, draft.Style} {
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	keywords = append(keywords, "website")

	return SEOBlock{Title: title, Description: description, Keywords: keywords}
}

func truncateAt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n-1]) + "…"
}
