package pipeline

import (
	"context"
	"errors"
	"testing"

	"sitesmith/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draftFor(businessType, uploadedImage string) *models.DraftProject {
	return &models.DraftProject{
		PublicID:      "d-1",
		BusinessName:  "Rosa's Trattoria",
		BusinessType:  businessType,
		UploadedImage: uploadedImage,
	}
}

func TestResolveSuggestBranchFallsBackOnError(t *testing.T) {
	text := &scriptedClient{replies: []scriptedReply{{err: errors.New("connection refused")}}}
	resolver := NewImageResolver(&scriptedClient{}, text, "gpt-4o", "gpt-4o-mini", nil)

	image, err := resolver.Resolve(context.Background(), draftFor("food-beverage", ""))
	require.NoError(t, err, "the suggest branch never raises")
	require.NotNil(t, image.Suggested)
	assert.Nil(t, image.Analyzed)

	// The curated table for food businesses, exact ids.
	assert.Equal(t, "1555939596-4b03f3b8c8b0", image.Suggested.Hero)
	assert.Equal(t, "1517248135467-4c7edcad34c4", image.Suggested.About)
	assert.Equal(t, "1414235077428-338989a2e8c0", image.Suggested.Service)
}

func TestSuggestImageryDeterministicFallback(t *testing.T) {
	text := &scriptedClient{replies: []scriptedReply{
		{err: errors.New("timeout")},
		{err: errors.New("timeout")},
	}}
	resolver := NewImageResolver(&scriptedClient{}, text, "gpt-4o", "gpt-4o-mini", nil)

	first := resolver.SuggestImagery(context.Background(), draftFor("food-beverage", ""))
	second := resolver.SuggestImagery(context.Background(), draftFor("food-beverage", ""))
	assert.Equal(t, first, second)
}

func TestSuggestImageryUnknownTypeUsesDefault(t *testing.T) {
	text := &scriptedClient{replies: []scriptedReply{{err: errors.New("down")}}}
	resolver := NewImageResolver(&scriptedClient{}, text, "gpt-4o", "gpt-4o-mini", nil)

	suggested := resolver.SuggestImagery(context.Background(), draftFor("taxidermy", ""))
	require.NotNil(t, suggested)
	assert.Equal(t, defaultImagery.Hero, suggested.Hero)
}

func TestSuggestImageryParsesModelReply(t *testing.T) {
	text := &scriptedClient{replies: []scriptedReply{{
		content: `{"hero": "h-1", "about": "a-1", "service": "s-1", "descriptions": {"hero": "sunset"}}`,
	}}}
	resolver := NewImageResolver(&scriptedClient{}, text, "gpt-4o", "gpt-4o-mini", nil)

	suggested := resolver.SuggestImagery(context.Background(), draftFor("retail", ""))
	assert.Equal(t, "h-1", suggested.Hero)
	assert.Equal(t, "a-1", suggested.About)
	assert.Equal(t, "s-1", suggested.Service)
}

func TestSuggestImageryIncompleteReplyFallsBack(t *testing.T) {
	text := &scriptedClient{replies: []scriptedReply{{content: `{"hero": "h-1"}`}}}
	resolver := NewImageResolver(&scriptedClient{}, text, "gpt-4o", "gpt-4o-mini", nil)

	suggested := resolver.SuggestImagery(context.Background(), draftFor("retail", ""))
	assert.Equal(t, curatedImagery["retail"].Hero, suggested.Hero)
}

func TestResolveAnalyzeBranchPropagatesError(t *testing.T) {
	vision := &scriptedClient{replies: []scriptedReply{{err: errors.New("vision backend down")}}}
	resolver := NewImageResolver(vision, &scriptedClient{}, "gpt-4o", "gpt-4o-mini", nil)

	image, err := resolver.Resolve(context.Background(), draftFor("food-beverage", "data:image/png;base64,AAAA"))
	assert.Error(t, err)
	assert.Nil(t, image)
}

func TestAnalyzeUploadParsesReply(t *testing.T) {
	vision := &scriptedClient{replies: []scriptedReply{{
		content: `{"description": "a wood-fired pizza oven", "placements": ["hero", "about"], "palette": ["#7c2d12"], "styleNotes": "rustic"}`,
	}}}
	resolver := NewImageResolver(vision, &scriptedClient{}, "gpt-4o", "gpt-4o-mini", nil)

	analyzed, err := resolver.AnalyzeUpload(context.Background(), draftFor("food-beverage", "data:image/png;base64,AAAA"))
	require.NoError(t, err)
	assert.Equal(t, "a wood-fired pizza oven", analyzed.Description)
	assert.Equal(t, []string{"hero", "about"}, analyzed.Placements)

	// The vision call carries the image as a content part.
	require.Len(t, vision.seen, 1)
	require.Len(t, vision.seen[0].Messages, 1)
	require.Len(t, vision.seen[0].Messages[0].Parts, 2)
	assert.Equal(t, "image_url", vision.seen[0].Messages[0].Parts[1].Type)
}

func TestAnalyzeUploadUnparseableReplyUsesGenericFallback(t *testing.T) {
	vision := &scriptedClient{replies: []scriptedReply{{content: "I see a nice picture!"}}}
	resolver := NewImageResolver(vision, &scriptedClient{}, "gpt-4o", "gpt-4o-mini", nil)

	analyzed, err := resolver.AnalyzeUpload(context.Background(), draftFor("food-beverage", "data:image/png;base64,AAAA"))
	require.NoError(t, err)
	assert.Equal(t, genericAnalyzedImage(), analyzed)
}

func TestPromptContext(t *testing.T) {
	var nilCtx *ImageContext
	assert.Empty(t, nilCtx.PromptContext())

	analyzed := &ImageContext{Analyzed: &AnalyzedImage{
		Description: "a pizza oven",
		Placements:  []string{"hero"},
		Palette:     []string{"#7c2d12"},
		StyleNotes:  "rustic",
	}}
	assert.Contains(t, analyzed.PromptContext(), "a pizza oven")

	suggested := &ImageContext{Suggested: &SuggestedImages{Hero: "h", About: "a", Service: "s"}}
	assert.Contains(t, suggested.PromptContext(), "hero h")
}
