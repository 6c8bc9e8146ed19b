package pipeline

import (
	"context"
	"fmt"

	"sitesmith/internal/logging"
	"sitesmith/internal/storage"
	"sitesmith/pkg/models"
)

// MaxRepairIterations caps the compile-fix loop. The loop terminates when
// no issues remain or the cap is reached, whichever comes first.
const MaxRepairIterations = 3

// AgenticStrategy is the primary build path: generate a complete virtual
// file tree in one pass and self-repair build errors without a new top-level
// round-trip per file.
type AgenticStrategy struct {
	builder SiteBuilder
	trees   storage.TreeStore
}

// NewAgenticStrategy creates the agentic build strategy.
func NewAgenticStrategy(builder SiteBuilder, trees storage.TreeStore) *AgenticStrategy {
	return &AgenticStrategy{builder: builder, trees: trees}
}

// AgenticResult is a committed tree plus the canonical generated code.
type AgenticResult struct {
	Tree       FileTree
	MainCode   string
	Iterations int
}

// Execute runs build → fix loop → commit. onProgress is called after the
// initial build and after every repair iteration with (iteration, cap).
// Any error aborts only this strategy: the caller falls through to the
// legacy path.
func (s *AgenticStrategy) Execute(ctx context.Context, draft *models.DraftProject, image *ImageContext, onProgress func(current, total int)) (*AgenticResult, error) {
	req := &BuildRequest{Draft: draft, Image: image}

	tree, issues, err := s.builder.Build(ctx, req)
	if err != nil {
		return nil, err
	}
	onProgress(0, MaxRepairIterations)

	iteration := 0
	for len(issues) > 0 && iteration < MaxRepairIterations {
		iteration++
		logging.S().Infow("repairing virtual tree",
			"draft", draft.PublicID, "iteration", iteration, "issues", len(issues))

		tree, issues, err = s.builder.Repair(ctx, req, tree, issues)
		if err != nil {
			return nil, err
		}
		onProgress(iteration, MaxRepairIterations)
	}

	if len(issues) > 0 {
		logging.S().Warnw("issues remain after repair cap, committing best effort",
			"draft", draft.PublicID, "issues", len(issues))
	}
	if len(tree) == 0 {
		return nil, fmt.Errorf("builder produced an empty tree for draft %s", draft.PublicID)
	}

	if err := s.trees.CommitTree(ctx, draft.ID, draft.PublicID, tree); err != nil {
		return nil, wrapf(ErrPersistence, "tree commit failed: %v", err)
	}

	return &AgenticResult{
		Tree:       tree,
		MainCode:   tree[MainFile],
		Iterations: iteration,
	}, nil
}
