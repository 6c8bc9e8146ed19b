package pipeline

import (
	"context"
	"testing"

	"sitesmith/internal/ai"
	"sitesmith/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTree(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantPaths []string
		wantErr   bool
	}{
		{
			name:      "plain object",
			content:   `{"files": {"src/App.jsx": "export default 1", "src/styles.css": "body{}"}}`,
			wantPaths: []string{"src/App.jsx", "src/styles.css"},
		},
		{
			name:      "fenced object with prose",
			content:   "Here is your site:\n```json\n{\"files\": {\"src/App.jsx\": \"x\"}}\n```",
			wantPaths: []string{"src/App.jsx"},
		},
		{
			name:      "leading slashes stripped",
			content:   `{"files": {"/src/App.jsx": "x"}}`,
			wantPaths: []string{"src/App.jsx"},
		},
		{name: "no json", content: "sorry, I can't", wantErr: true},
		{name: "empty files", content: `{"files": {}}`, wantErr: true},
		{name: "wrong shape", content: `{"pages": ["home"]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := parseTree(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, tree, len(tt.wantPaths))
			for _, path := range tt.wantPaths {
				assert.Contains(t, tree, path)
			}
		})
	}
}

func TestLLMBuilderBuild(t *testing.T) {
	client := &scriptedClient{replies: []scriptedReply{{
		content: `{"files": {"src/App.jsx": "import './styles.css';\nexport default function App() { return null; }", "src/styles.css": "body{}"}}`,
	}}}
	builder := NewLLMBuilder(client, "gpt-4o-mini")

	tree, issues, err := builder.Build(context.Background(), &BuildRequest{Draft: draftFor("retail", "")})
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Len(t, tree, 2)

	// System prompt pins the reply contract.
	require.Len(t, client.seen, 1)
	require.Len(t, client.seen[0].Messages, 2)
	assert.Equal(t, ai.RoleSystem, client.seen[0].Messages[0].Role)
}

func TestLLMBuilderRepairSendsIssuesAndTree(t *testing.T) {
	client := &scriptedClient{replies: []scriptedReply{{
		content: `{"files": {"src/App.jsx": "export default function App() { return null; }"}}`,
	}}}
	builder := NewLLMBuilder(client, "gpt-4o-mini")

	tree := FileTree{"src/App.jsx": "function App() {"}
	issues := []CompilationIssue{{Path: "src/App.jsx", Message: "unbalanced braces (depth +1)"}}

	fixed, remaining, err := builder.Repair(context.Background(), &BuildRequest{Draft: draftFor("retail", "")}, tree, issues)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.Contains(t, fixed["src/App.jsx"], "export default")

	prompt := client.seen[0].Messages[1].Content
	assert.Contains(t, prompt, "unbalanced braces")
	assert.Contains(t, prompt, "src/App.jsx")
}

func TestBuildUserPromptSynthesizesRequest(t *testing.T) {
	draft := &models.DraftProject{
		BusinessName: "Glow Studio",
		BusinessType: "beauty",
		Location:     "Austin, TX",
	}
	prompt := buildUserPrompt(&BuildRequest{Draft: draft})
	assert.Contains(t, prompt, "Glow Studio")
	assert.Contains(t, prompt, "Austin, TX")

	draft.RequestText = "Make it neon and loud."
	prompt = buildUserPrompt(&BuildRequest{Draft: draft})
	assert.Contains(t, prompt, "Make it neon and loud.")
}

func TestBuildUserPromptIncludesImageContext(t *testing.T) {
	image := &ImageContext{Suggested: &SuggestedImages{Hero: "h-1", About: "a-1", Service: "s-1"}}
	prompt := buildUserPrompt(&BuildRequest{Draft: draftFor("retail", ""), Image: image})
	assert.Contains(t, prompt, "h-1")
}
