package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"sitesmith/internal/ai"
	"sitesmith/internal/db"
	"sitesmith/pkg/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// scriptedClient replays a fixed sequence of responses and errors, one per
// Complete call, and records every request it saw.
type scriptedClient struct {
	replies []scriptedReply
	calls   int
	seen    []*ai.ChatRequest
}

type scriptedReply struct {
	content string
	err     error
}

func (c *scriptedClient) Complete(_ context.Context, req *ai.ChatRequest) (*ai.ChatResponse, error) {
	c.seen = append(c.seen, req)
	if c.calls >= len(c.replies) {
		c.calls++
		return &ai.ChatResponse{Content: ""}, nil
	}
	reply := c.replies[c.calls]
	c.calls++
	if reply.err != nil {
		return nil, reply.err
	}
	return &ai.ChatResponse{Content: reply.content}, nil
}

// scriptedBuilder replays Build and Repair results.
type scriptedBuilder struct {
	buildTree    FileTree
	buildIssues  []CompilationIssue
	buildErr     error
	repairTree   FileTree
	repairIssues []CompilationIssue
	repairErr    error

	buildCalls  int
	repairCalls int
}

func (b *scriptedBuilder) Build(context.Context, *BuildRequest) (FileTree, []CompilationIssue, error) {
	b.buildCalls++
	return b.buildTree, b.buildIssues, b.buildErr
}

func (b *scriptedBuilder) Repair(context.Context, *BuildRequest, FileTree, []CompilationIssue) (FileTree, []CompilationIssue, error) {
	b.repairCalls++
	return b.repairTree, b.repairIssues, b.repairErr
}

// recordingTreeStore captures commits instead of writing anywhere.
type recordingTreeStore struct {
	commits []map[string]string
	err     error
}

func (s *recordingTreeStore) CommitTree(_ context.Context, _ uint, _ string, files map[string]string) error {
	if s.err != nil {
		return s.err
	}
	s.commits = append(s.commits, files)
	return nil
}

// testDB opens a throwaway sqlite store with the full schema.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := db.New("", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	return database.DB
}

// seedDraft inserts a user of the given tier and one draft owned by them.
func seedDraft(t *testing.T, gdb *gorm.DB, tier string, generationCount int) (*models.DraftProject, *models.User) {
	t.Helper()
	user := &models.User{
		Email: uuid.New().String() + "@example.com",
		Name:  "Test Owner",
		Tier:  tier,
	}
	require.NoError(t, gdb.Create(user).Error)

	draft := &models.DraftProject{
		PublicID:            uuid.New().String(),
		OwnerID:             user.ID,
		BusinessName:        "Rosa's Trattoria",
		BusinessType:        "food-beverage",
		BusinessDescription: "Family-run Italian restaurant with handmade pasta",
		Location:            "Portland, OR",
		Style:               "warm",
		GenerationCount:     generationCount,
		Status:              models.DraftStatusDraft,
	}
	require.NoError(t, gdb.Create(draft).Error)
	return draft, user
}

// collectEvents drains a closed stream into a slice.
func collectEvents(stream *Stream) []ProgressEvent {
	var events []ProgressEvent
	for ev := range stream.Events() {
		events = append(events, ev)
	}
	return events
}

// validTree is a minimal tree that passes static validation.
func validTree() FileTree {
	return FileTree{
		"src/App.jsx":    "import './styles.css';\nexport default function App() { return <div>hi</div>; }",
		"src/styles.css": "body { margin: 0; }",
		"src/Hero.jsx":   "export default function Hero() { return <header>Welcome</header>; }",
		"index.html":     "<!DOCTYPE html><html><body><div id=\"root\"></div></body></html>",
	}
}
