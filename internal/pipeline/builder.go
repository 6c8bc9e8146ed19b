package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"sitesmith/internal/ai"
	"sitesmith/pkg/models"
)

// FileTree is the in-memory, uncommitted mapping of relative paths to file
// contents produced by the agentic strategy.
type FileTree map[string]string

// MainFile is the designated entry component of a generated tree. Its
// contents become the canonical generated code on commit.
const MainFile = "src/App.jsx"

// CompilationIssue describes one detected build error inside a virtual tree.
type CompilationIssue struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (i CompilationIssue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// BuildRequest carries the context the builder turns into a site.
type BuildRequest struct {
	Draft *models.DraftProject
	Image *ImageContext
}

// SiteBuilder produces and repairs virtual file trees. Both calls return the
// tree together with the compilation issues found in it, so the repair loop
// carries explicit state between iterations.
type SiteBuilder interface {
	Build(ctx context.Context, req *BuildRequest) (FileTree, []CompilationIssue, error)
	Repair(ctx context.Context, req *BuildRequest, tree FileTree, issues []CompilationIssue) (FileTree, []CompilationIssue, error)
}

// LLMBuilder implements SiteBuilder over the text chat backend.
type LLMBuilder struct {
	client ai.Client
	model  string
}

// NewLLMBuilder creates an LLM-backed site builder.
func NewLLMBuilder(client ai.Client, model string) *LLMBuilder {
	return &LLMBuilder{client: client, model: model}
}

const builderSystemPrompt = `You are an expert web developer generating a complete multi-file React website.
Respond with exactly one JSON object: {"files": {"path": "content", ...}}.
Requirements:
- Include src/App.jsx as the entry component with a default export.
- Every file must be complete and self-contained. No placeholders, no TODO comments, no truncated code.
- Styling lives in src/styles.css; import it from src/App.jsx.
- Use plain React without external UI libraries.`

// Build generates the initial virtual file tree for the request.
func (b *LLMBuilder) Build(ctx context.Context, req *BuildRequest) (FileTree, []CompilationIssue, error) {
	resp, err := b.client.Complete(ctx, &ai.ChatRequest{
		Model: b.model,
		Messages: []ai.ChatMessage{
			{Role: ai.RoleSystem, Content: builderSystemPrompt},
			{Role: ai.RoleUser, Content: buildUserPrompt(req)},
		},
		MaxTokens: 8000,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build call failed: %w", err)
	}

	tree, err := parseTree(resp.Content)
	if err != nil {
		return nil, nil, err
	}
	return tree, ValidateTree(tree), nil
}

// Repair re-invokes the generator with the current tree and the issue list,
// expecting a corrected tree.
func (b *LLMBuilder) Repair(ctx context.Context, req *BuildRequest, tree FileTree, issues []CompilationIssue) (FileTree, []CompilationIssue, error) {
	var sb strings.Builder
	sb.WriteString("The site you generated has compilation errors. Fix them and return the FULL corrected tree ")
	sb.WriteString(`as {"files": {...}} with every file included, not just the changed ones.` + "\n\nErrors:\n")
	for _, issue := range issues {
		sb.WriteString("- " + issue.String() + "\n")
	}
	sb.WriteString("\nCurrent files:\n")
	for _, path := range sortedPaths(tree) {
		sb.WriteString(fmt.Sprintf("--- %s ---\n%s\n", path, tree[path]))
	}

	resp, err := b.client.Complete(ctx, &ai.ChatRequest{
		Model: b.model,
		Messages: []ai.ChatMessage{
			{Role: ai.RoleSystem, Content: builderSystemPrompt},
			{Role: ai.RoleUser, Content: sb.String()},
		},
		MaxTokens: 8000,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("repair call failed: %w", err)
	}

	fixed, err := parseTree(resp.Content)
	if err != nil {
		return nil, nil, err
	}
	return fixed, ValidateTree(fixed), nil
}

// buildUserPrompt combines the owner's request text (or a synthesized
// default), the business context, and the resolved image context.
func buildUserPrompt(req *BuildRequest) string {
	draft := req.Draft

	request := strings.TrimSpace(draft.RequestText)
	if request == "" {
		request = fmt.Sprintf("Build a polished single-page website for %s, a %s business.",
			draft.BusinessName, orDefault(draft.BusinessType, "local"))
	}

	var sb strings.Builder
	sb.WriteString(request)
	sb.WriteString(fmt.Sprintf("\n\nBusiness: %s (%s)", draft.BusinessName, orDefault(draft.BusinessType, "local")))
	if draft.BusinessDescription != "" {
		sb.WriteString("\nDescription: " + draft.BusinessDescription)
	}
	if draft.Location != "" {
		sb.WriteString("\nLocation: " + draft.Location)
	}
	if draft.Style != "" {
		sb.WriteString("\nAesthetic: " + draft.Style)
	}
	if draft.PreferredColors != "" {
		sb.WriteString("\nPreferred colors: " + draft.PreferredColors)
	}
	if img := req.Image.PromptContext(); img != "" {
		sb.WriteString("\n\n" + img)
	}
	return sb.String()
}

// parseTree extracts the {"files": {...}} object from a model reply.
func parseTree(content string) (FileTree, error) {
	raw := ai.ExtractJSON(content)
	if raw == "" {
		return nil, wrapf(ErrEmptyGeneration, "no JSON object in builder reply")
	}

	var payload struct {
		Files map[string]string `json:"files"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("builder reply is not valid JSON: %w", err)
	}
	if len(payload.Files) == 0 {
		return nil, wrapf(ErrEmptyGeneration, "builder reply contained no files")
	}

	tree := make(FileTree, len(payload.Files))
	for path, fileContent := range payload.Files {
		tree[strings.TrimPrefix(path, "/")] = fileContent
	}
	return tree, nil
}

func sortedPaths(tree FileTree) []string {
	paths := make([]string, 0, len(tree))
	for path := range tree {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
