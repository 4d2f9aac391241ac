// Package pipeline sequences one daily publishing run.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"auto_blog_publisher/generator"
	"auto_blog_publisher/history"
	"auto_blog_publisher/imagery"
	"auto_blog_publisher/publisher"
	"auto_blog_publisher/render"
)

// HistoryStore is the persisted record of published posts.
type HistoryStore interface {
	Load() ([]history.Record, error)
	Contains(topic string) bool
	Topics() []string
	Append(record history.Record) error
	CountOn(day time.Time, loc *time.Location) int
}

// ContentGenerator writes drafts.
type ContentGenerator interface {
	Generate(ctx context.Context, req generator.Request) (generator.Draft, error)
}

// ImageResolver finds a cover image.
type ImageResolver interface {
	Resolve(ctx context.Context, topic string) (imagery.Asset, error)
}

// Renderer builds the submitted document. It must not do I/O.
type Renderer interface {
	Render(draft generator.Draft, image *imagery.Asset) (render.Post, error)
}

// Publisher submits a rendered post.
type Publisher interface {
	Publish(ctx context.Context, post render.Post) (publisher.PostRef, error)
}

// DuplicatePolicy decides what happens when the re-requested topic is
// still in history.
type DuplicatePolicy string

const (
	DuplicateProceed DuplicatePolicy = "proceed"
	DuplicateFail    DuplicatePolicy = "fail"
)

// Config tunes the orchestrator.
type Config struct {
	Generation RetryPolicy
	Publish    RetryPolicy
	// CallTimeout bounds each attempt of an external call.
	CallTimeout time.Duration
	// MaxPostsPerDay stops a run once that many posts exist for today. Zero disables the guard.
	MaxPostsPerDay  int
	DuplicatePolicy DuplicatePolicy
	// Topic fixes the subject of the post instead of letting the model pick.
	Topic string
	// Labels replace the generated tags on the published post.
	Labels   []string
	Location *time.Location
	Now      func() time.Time
}

// Orchestrator wires the pipeline components together.
type Orchestrator struct {
	store     HistoryStore
	generator ContentGenerator
	images    ImageResolver
	renderer  Renderer
	publisher Publisher
	cfg       Config
	logger    *zap.SugaredLogger
}

// New validates the collaborators and applies configuration defaults.
// images may be nil, in which case posts are always text-only.
func New(store HistoryStore, gen ContentGenerator, images ImageResolver, renderer Renderer, pub Publisher, cfg Config, logger *zap.SugaredLogger) (*Orchestrator, error) {
	if store == nil || gen == nil || renderer == nil || pub == nil {
		return nil, errors.New("history store, generator, renderer and publisher are required")
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Minute
	}
	switch cfg.DuplicatePolicy {
	case "":
		cfg.DuplicatePolicy = DuplicateProceed
	case DuplicateProceed, DuplicateFail:
	default:
		return nil, errors.Errorf("unknown duplicate policy %q", cfg.DuplicatePolicy)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Orchestrator{
		store:     store,
		generator: gen,
		images:    images,
		renderer:  renderer,
		publisher: pub,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Result is the externally visible outcome of a run.
type Result struct {
	RunID  string
	State  State
	Reason FailureReason
	Err    error
	// Trace lists every state entered, in order.
	Trace []State

	Skipped        bool
	Duplicate      bool
	ImageDegraded  bool
	HistoryCorrupt bool
	// HistoryErr is set when the post is live but could not be recorded.
	HistoryErr error

	Post   publisher.PostRef
	Record *history.Record
}

func (r *Result) enter(s State) { r.State = s; r.Trace = append(r.Trace, s) }

// Succeeded reports whether the run ended in Done.
func (r Result) Succeeded() bool { return r.State == Done }

// ExitCode maps the terminal state to a process exit status.
func (r Result) ExitCode() int {
	if r.Succeeded() {
		return 0
	}
	return 1
}

// Summary is the single human readable status line of a run.
func (r Result) Summary() string {
	switch r.State {
	case Done:
		var notes []string
		if r.Skipped {
			notes = append(notes, "skipped: today's post already exists")
		}
		if r.Record != nil {
			notes = append(notes, fmt.Sprintf("published %q %s", r.Record.Title, r.Record.PostURL))
		}
		if r.Duplicate {
			notes = append(notes, "topic duplicates an earlier post")
		}
		if r.HistoryErr != nil {
			notes = append(notes, "history not updated: "+r.HistoryErr.Error())
		}
		if len(notes) == 0 {
			return "Done"
		}
		return "Done: " + strings.Join(notes, "; ")
	case Failed:
		if r.Err != nil {
			return fmt.Sprintf("Failed(%s): %v", r.Reason, r.Err)
		}
		return fmt.Sprintf("Failed(%s)", r.Reason)
	default:
		return r.State.String()
	}
}

// Run executes one scheduled invocation from Idle to Done or Failed.
func (o *Orchestrator) Run(ctx context.Context) Result {
	res := Result{RunID: uuid.NewString()}
	log := o.logger.With("run_id", res.RunID)
	res.enter(Idle)

	res.HistoryCorrupt = !o.loadHistory(log)

	if o.cfg.MaxPostsPerDay > 0 {
		if n := o.store.CountOn(o.cfg.Now(), o.cfg.Location); n >= o.cfg.MaxPostsPerDay {
			log.Infow("daily post limit reached, nothing to do", "posts_today", n, "limit", o.cfg.MaxPostsPerDay)
			res.Skipped = true
			res.enter(Done)
			return res
		}
	}

	res.enter(GeneratingContent)
	draft, dup, err := o.generate(ctx, log, o.store.Topics())
	if err != nil {
		return o.fail(ctx, log, res, ReasonGeneration, err)
	}
	res.Duplicate = dup
	if dup && o.cfg.DuplicatePolicy == DuplicateFail {
		return o.fail(ctx, log, res, ReasonDuplicate, errors.Errorf("topic %q was already published", draft.Topic))
	}

	res.enter(ResolvingImage)
	image := o.resolveImage(ctx, log, draft.Topic)
	res.ImageDegraded = image == nil

	res.enter(Rendering)
	post, err := o.render(draft, image)
	if err != nil {
		return o.fail(ctx, log, res, ReasonRender, err)
	}
	o.overrideLabels(&post)

	res.enter(Publishing)
	ref, err := Retry(ctx, o.cfg.Publish, func(ctx context.Context, attempt int) (publisher.PostRef, error) {
		if attempt > 1 {
			log.Infow("retrying publish", "attempt", attempt)
		}
		return withTimeout(ctx, o.cfg.CallTimeout, func(ctx context.Context) (publisher.PostRef, error) {
			return o.publisher.Publish(ctx, post)
		})
	})
	if err == nil && ref.ID == "" {
		err = errors.Wrap(publisher.ErrPublish, "publisher returned an empty post id")
	}
	if err != nil {
		return o.fail(ctx, log, res, ReasonPublish, err)
	}
	res.Post = ref

	res.enter(RecordingHistory)
	record := history.Record{
		Identifier:  ref.ID,
		Topic:       draft.Topic,
		Title:       post.Title,
		PublishedAt: o.cfg.Now().UTC(),
		PostURL:     ref.URL,
	}
	res.Record = &record
	if err := o.store.Append(record); err != nil {
		res.HistoryErr = err
		log.Errorw("post is live but history was not updated; the next run may repeat this topic",
			"post_id", ref.ID, "url", ref.URL, "error", err)
	}

	res.enter(Done)
	log.Infow("run finished", "post_id", ref.ID, "url", ref.URL, "topic", draft.Topic, "duplicate", res.Duplicate)
	return res
}

// Preview is a draft rendered without publishing.
type Preview struct {
	Draft     generator.Draft
	Image     *imagery.Asset
	Post      render.Post
	Duplicate bool
}

// StepError is returned by Preview and names the step that failed.
type StepError struct {
	Reason FailureReason
	Err    error
}

func (e *StepError) Error() string { return string(e.Reason) + ": " + e.Err.Error() }
func (e *StepError) Unwrap() error { return e.Err }

// Preview generates and renders a post but neither publishes nor records it.
func (o *Orchestrator) Preview(ctx context.Context) (Preview, error) {
	log := o.logger.With("run_id", uuid.NewString(), "preview", true)
	o.loadHistory(log)

	draft, dup, err := o.generate(ctx, log, o.store.Topics())
	if err != nil {
		return Preview{}, stepError(ctx, ReasonGeneration, err)
	}
	image := o.resolveImage(ctx, log, draft.Topic)
	post, err := o.render(draft, image)
	if err != nil {
		return Preview{}, stepError(ctx, ReasonRender, err)
	}
	o.overrideLabels(&post)
	return Preview{Draft: draft, Image: image, Post: post, Duplicate: dup}, nil
}

func stepError(ctx context.Context, reason FailureReason, err error) error {
	if ctx.Err() != nil {
		reason = ReasonCancelled
	}
	return &StepError{Reason: reason, Err: err}
}

// loadHistory reports whether the history was readable. An unreadable
// history leaves the store empty.
func (o *Orchestrator) loadHistory(log *zap.SugaredLogger) bool {
	records, err := o.store.Load()
	if err != nil {
		if errors.Is(err, history.ErrStorageCorrupt) {
			log.Warnw("history file is corrupt, continuing with empty history", "error", err)
		} else {
			log.Warnw("history could not be read, continuing with empty history", "error", err)
		}
		return false
	}
	log.Infow("history loaded", "records", len(records))
	return true
}

// generate asks for a draft and re-requests exactly once when its topic is
// already in history. The bool result flags a remaining duplicate.
func (o *Orchestrator) generate(ctx context.Context, log *zap.SugaredLogger, excluded []string) (generator.Draft, bool, error) {
	if o.cfg.Topic != "" {
		return o.generateFixed(ctx, log)
	}
	draft, err := o.generateWithRetry(ctx, log, generator.Request{ExcludedTopics: excluded})
	if err != nil {
		return generator.Draft{}, false, err
	}
	if !o.store.Contains(draft.Topic) {
		return draft, false, nil
	}

	log.Warnw("generated topic already published, requesting another", "topic", draft.Topic)
	second, err := o.generateWithRetry(ctx, log, generator.Request{ExcludedTopics: excluded, Rejected: draft.Topic})
	if err != nil {
		if ctx.Err() != nil {
			return generator.Draft{}, false, err
		}
		log.Warnw("re-request failed, keeping the duplicate draft", "topic", draft.Topic, "error", err)
		return draft, true, nil
	}
	if o.store.Contains(second.Topic) {
		log.Warnw("topic still duplicates history, flagging it", "topic", second.Topic, "policy", o.cfg.DuplicatePolicy)
		return second, true, nil
	}
	return second, false, nil
}

// generateFixed writes about the configured topic. Asking again cannot
// change the topic, so a duplicate is only flagged.
func (o *Orchestrator) generateFixed(ctx context.Context, log *zap.SugaredLogger) (generator.Draft, bool, error) {
	draft, err := o.generateWithRetry(ctx, log, generator.Request{Topic: o.cfg.Topic})
	if err != nil {
		return generator.Draft{}, false, err
	}
	dup := o.store.Contains(draft.Topic)
	if dup {
		log.Warnw("requested topic was already published", "topic", draft.Topic, "policy", o.cfg.DuplicatePolicy)
	}
	return draft, dup, nil
}

func (o *Orchestrator) overrideLabels(post *render.Post) {
	if len(o.cfg.Labels) > 0 {
		post.Labels = append([]string(nil), o.cfg.Labels...)
	}
}

func (o *Orchestrator) generateWithRetry(ctx context.Context, log *zap.SugaredLogger, req generator.Request) (generator.Draft, error) {
	return Retry(ctx, o.cfg.Generation, func(ctx context.Context, attempt int) (generator.Draft, error) {
		if attempt > 1 {
			log.Infow("retrying generation", "attempt", attempt)
		}
		return withTimeout(ctx, o.cfg.CallTimeout, func(ctx context.Context) (generator.Draft, error) {
			return o.generator.Generate(ctx, req)
		})
	})
}

func (o *Orchestrator) resolveImage(ctx context.Context, log *zap.SugaredLogger, topic string) *imagery.Asset {
	if o.images == nil {
		return nil
	}
	asset, err := withTimeout(ctx, o.cfg.CallTimeout, func(ctx context.Context) (imagery.Asset, error) {
		return o.images.Resolve(ctx, topic)
	})
	if err != nil || asset.URL == "" {
		log.Warnw("no cover image, publishing text-only", "topic", topic, "error", err)
		return nil
	}
	return &asset
}

// render converts a panic in the renderer into an error; it indicates a bug.
func (o *Orchestrator) render(draft generator.Draft, image *imagery.Asset) (post render.Post, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("renderer panicked: %v", r)
		}
	}()
	return o.renderer.Render(draft, image)
}

func (o *Orchestrator) fail(ctx context.Context, log *zap.SugaredLogger, res Result, reason FailureReason, err error) Result {
	if ctx.Err() != nil {
		reason = ReasonCancelled
	}
	log.Errorw("run failed", "state", res.State.String(), "reason", reason, "error", err)
	res.Reason = reason
	res.Err = err
	res.enter(Failed)
	return res
}

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(callCtx)
}
