package pipeline

import (
	"context"
	"time"

	"sitesmith/internal/logging"
	"sitesmith/internal/metrics"
	"sitesmith/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Orchestrator sequences one generation run: quota gate → image context →
// agentic strategy → legacy fallback → persistence → stream closure. It is
// the only component that knows the overall state machine.
type Orchestrator struct {
	db      *gorm.DB
	gate    *QuotaGate
	imagery *ImageResolver
	agentic *AgenticStrategy
	legacy  *LegacyStrategy
	guard   *RunGuard

	publicBaseURL string
}

// NewOrchestrator wires the pipeline. All collaborators are injected;
// nothing here reads ambient process state.
func NewOrchestrator(db *gorm.DB, imagery *ImageResolver, agentic *AgenticStrategy, legacy *LegacyStrategy, guard *RunGuard, publicBaseURL string) *Orchestrator {
	return &Orchestrator{
		db:            db,
		gate:          NewQuotaGate(db),
		imagery:       imagery,
		agentic:       agentic,
		legacy:        legacy,
		guard:         guard,
		publicBaseURL: publicBaseURL,
	}
}

// Run executes one generation for the draft and emits progress on stream.
// The stream is closed exactly once, after the terminal event. Run never
// panics the caller; every failure becomes a single error event.
func (o *Orchestrator) Run(ctx context.Context, draftPublicID string, stream *Stream) {
	start := time.Now()
	runID := uuid.New().String()
	log := logging.S().With("run", runID, "draft", draftPublicID)

	defer stream.Close()
	defer func() {
		metrics.RunDuration.Observe(time.Since(start).Seconds())
	}()

	release, ok := o.guard.Acquire(ctx, draftPublicID)
	if !ok {
		o.fail(stream, runID, 0, "none", start, ErrRunInProgress)
		return
	}
	defer release()

	// Quota gate runs before any LLM call so rejected runs spend nothing.
	draft, owner, err := o.gate.Check(ctx, draftPublicID)
	if err != nil {
		log.Infow("run rejected by gate", "error", err)
		o.fail(stream, runID, 0, "none", start, err)
		return
	}

	stream.Step(StepImageContext, StatusInProgress, "Preparing the visual direction")
	image, err := o.imagery.Resolve(ctx, draft)
	if err != nil {
		// Only the analyze branch can land here; the run continues with
		// no visual context.
		log.Warnw("image analysis failed, continuing without visual context", "error", err)
		image = nil
	}
	stream.Step(StepImageContext, StatusCompleted, "Visual direction ready")

	// Primary: agentic build. Any failure falls through to the legacy
	// strategy; nothing on this path aborts the run.
	result, err := o.agentic.Execute(ctx, draft, image, func(current, total int) {
		stream.StepProgress(StepImageContext, current, total, "Building your site")
	})
	if err == nil {
		if perr := o.persistSuccess(ctx, draft, owner, result.MainCode, nil, nil); perr != nil {
			log.Warnw("agentic persistence failed, falling back", "error", perr)
		} else {
			log.Infow("agentic strategy succeeded",
				"files", len(result.Tree), "iterations", result.Iterations)
			o.complete(stream, draft)
			o.recordRun(runID, draft.ID, "agentic", true, "", start)
			metrics.RunsTotal.WithLabelValues("agentic", "success").Inc()
			return
		}
	} else {
		log.Warnw("agentic strategy failed, falling back", "error", err)
	}
	metrics.FallbacksTotal.Inc()

	legacyResult, err := o.legacy.Execute(ctx, draft, image, stream)
	if err != nil {
		log.Errorw("legacy strategy failed", "error", err)
		o.fail(stream, runID, draft.ID, "legacy", start, err)
		return
	}

	stream.Step(StepDeployment, StatusInProgress, "Publishing your draft")
	if err := o.persistSuccess(ctx, draft, owner, legacyResult.Code, &legacyResult.SEO, legacyResult.Pages); err != nil {
		o.fail(stream, runID, draft.ID, "legacy", start, err)
		return
	}
	stream.Step(StepDeployment, StatusCompleted, "Draft published")

	o.complete(stream, draft)
	o.recordRun(runID, draft.ID, "legacy", true, "", start)
	metrics.RunsTotal.WithLabelValues("legacy", "success").Inc()
}

// persistSuccess performs the single write of a successful run: increment
// the generation count exactly once, stamp timestamps and expiry, and store
// the generated code (plus the SEO block and the page structure when the
// legacy path planned more than one page).
func (o *Orchestrator) persistSuccess(ctx context.Context, draft *models.DraftProject, owner *models.User, code string, seo *SEOBlock, pages []PageSpec) error {
	now := time.Now().UTC()

	metadata := map[string]interface{}{}
	for k, v := range draft.Metadata {
		metadata[k] = v
	}
	metadata["generatedCode"] = code
	if seo != nil {
		metadata["seo"] = seo
	}
	if len(pages) > 1 {
		metadata["pages"] = pages
	}

	var expiresAt *time.Time
	if expiry := models.TierExpiry(owner.Tier); expiry > 0 {
		t := now.Add(expiry)
		expiresAt = &t
	}

	updates := map[string]interface{}{
		"generation_count": draft.GenerationCount + 1,
		"status":           models.DraftStatusGenerated,
		"generated_at":     &now,
		"expires_at":       expiresAt,
		"draft_url":        o.previewURL(draft),
		"metadata":         metadata,
	}

	if err := o.db.WithContext(ctx).Model(draft).Updates(updates).Error; err != nil {
		return wrapf(ErrPersistence, "%v", err)
	}

	// The in-memory record changes only after the write landed; a failed
	// write must leave it untouched so a fallback path starts clean.
	draft.GenerationCount++
	draft.Status = models.DraftStatusGenerated
	draft.GeneratedAt = &now
	draft.ExpiresAt = expiresAt
	draft.DraftURL = o.previewURL(draft)
	draft.Metadata = metadata
	return nil
}

func (o *Orchestrator) complete(stream *Stream, draft *models.DraftProject) {
	url := o.previewURL(draft)
	stream.Preview(url)
	stream.Complete(url, "Your website is ready")
}

func (o *Orchestrator) fail(stream *Stream, runID string, draftID uint, strategy string, start time.Time, err error) {
	stream.Fail(UserMessage(err))
	o.recordRun(runID, draftID, strategy, false, err.Error(), start)
	metrics.RunsTotal.WithLabelValues(strategy, reason(err)).Inc()
}

// recordRun appends the audit row for a run. Best effort: a failed insert
// never affects the run outcome.
func (o *Orchestrator) recordRun(runID string, draftID uint, strategy string, success bool, errMsg string, start time.Time) {
	run := &models.GenerationRun{
		RunID:      runID,
		DraftID:    draftID,
		Strategy:   strategy,
		Success:    success,
		Error:      errMsg,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err := o.db.Create(run).Error; err != nil {
		logging.S().Warnw("failed to record generation run", "run", runID, "error", err)
	}
}

func (o *Orchestrator) previewURL(draft *models.DraftProject) string {
	return o.publicBaseURL + "/preview/" + draft.PublicID
}
