// Package flow runs the multi-step publish protocol shared by platforms that
// publish through containers: create items, assemble, wait for the provider
// to finish processing, publish, then look up the permalink.
package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/logger"
)

// Stage is a step of the container publish state machine.
type Stage string

const (
	StageCreatingItems       Stage = "creating_items"
	StageAssemblingContainer Stage = "assembling_container"
	StageAwaitingReady       Stage = "awaiting_ready"
	StagePublishing          Stage = "publishing"
	StageCompleted           Stage = "completed"
	StageFailed              Stage = "failed"
)

// ReadyStatus is a container's processing status as reported by the provider.
type ReadyStatus int

const (
	StatusPending ReadyStatus = iota
	StatusReady
	StatusFailed
)

// Poll defaults.
const (
	DefaultPollInterval = 3 * time.Second
	DefaultPollCeiling  = 2 * time.Minute
)

// PollConfig controls readiness polling.
type PollConfig struct {
	Interval time.Duration
	Ceiling  time.Duration
}

// DefaultPollConfig returns the production polling settings.
func DefaultPollConfig() PollConfig {
	return PollConfig{Interval: DefaultPollInterval, Ceiling: DefaultPollCeiling}
}

func (p PollConfig) withDefaults() PollConfig {
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}
	if p.Ceiling <= 0 {
		p.Ceiling = DefaultPollCeiling
	}
	return p
}

// ContainerAPI is the provider side of the container protocol.
type ContainerAPI interface {
	// CreateItem creates the carousel item at index and returns its id.
	CreateItem(ctx context.Context, index int, media domain.Media) (string, error)
	// CreateContainer assembles item ids into one carousel container.
	CreateContainer(ctx context.Context, itemIDs []string, caption string) (string, error)
	// CreateSingle creates a container for one media item.
	CreateSingle(ctx context.Context, media domain.Media, caption string) (string, error)
	// Status reports whether a container has finished processing. The string
	// is the provider's status message.
	Status(ctx context.Context, containerID string) (ReadyStatus, string, error)
	// Publish publishes a container and returns the post id.
	Publish(ctx context.Context, containerID string) (string, error)
	// Permalink looks up the public URL of a post.
	Permalink(ctx context.Context, postID string) (string, error)
	// CanonicalURL builds a URL for a post without calling the provider.
	CanonicalURL(postID string) string
}

// Runner drives ContainerAPI implementations through the publish stages.
type Runner struct {
	Platform domain.Platform
	Poll     PollConfig
	// Observer, if set, is told about every stage transition.
	Observer func(Stage)
	Now      func() time.Time
}

// NewRunner creates a runner with the given poll settings.
func NewRunner(platform domain.Platform, poll PollConfig) *Runner {
	return &Runner{Platform: platform, Poll: poll}
}

func (r *Runner) enter(s Stage) {
	logger.Debug("%s publish: %s", r.Platform, s)
	if r.Observer != nil {
		r.Observer(s)
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

// Carousel publishes items as one multi-item post. Items are created in
// order; the first failure aborts the run before anything is assembled.
func (r *Runner) Carousel(ctx context.Context, api ContainerAPI, items []domain.Media, caption string) (*domain.PublishResult, error) {
	if len(items) < 2 {
		return nil, domain.NewPlatformError(domain.KindInvalidInput, r.Platform, "carousel",
			"a carousel needs at least two items", nil)
	}

	r.enter(StageCreatingItems)
	ids, err := CreateItems(ctx, r.Platform, items, api.CreateItem)
	if err != nil {
		r.enter(StageFailed)
		return nil, err
	}

	r.enter(StageAssemblingContainer)
	containerID, err := api.CreateContainer(ctx, ids, caption)
	if err != nil {
		r.enter(StageFailed)
		return nil, err
	}

	return r.finish(ctx, api, containerID, hasVideo(items))
}

// Single publishes one media item through a container.
func (r *Runner) Single(ctx context.Context, api ContainerAPI, media domain.Media, caption string) (*domain.PublishResult, error) {
	r.enter(StageAssemblingContainer)
	containerID, err := api.CreateSingle(ctx, media, caption)
	if err != nil {
		r.enter(StageFailed)
		return nil, err
	}
	return r.finish(ctx, api, containerID, media.Kind == domain.MediaVideo)
}

func (r *Runner) finish(ctx context.Context, api ContainerAPI, containerID string, await bool) (*domain.PublishResult, error) {
	if await {
		r.enter(StageAwaitingReady)
		if _, err := AwaitReady(ctx, r.Platform, r.Poll, containerID, api.Status); err != nil {
			r.enter(StageFailed)
			return nil, err
		}
	}

	r.enter(StagePublishing)
	postID, err := api.Publish(ctx, containerID)
	if err != nil {
		r.enter(StageFailed)
		return nil, err
	}

	result := &domain.PublishResult{
		RemotePostID: postID,
		PermalinkURL: ResolvePermalink(ctx, r.Platform, postID, api.Permalink, api.CanonicalURL),
		PublishedAt:  r.now(),
	}
	r.enter(StageCompleted)
	return result, nil
}

// CreateItems calls create for each item in order. The first failure stops
// the loop and is returned as a PartialCarouselFailure naming the item.
func CreateItems(
	ctx context.Context,
	platform domain.Platform,
	items []domain.Media,
	create func(ctx context.Context, index int, media domain.Media) (string, error),
) ([]string, error) {
	ids := make([]string, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, err := create(ctx, i, item)
		if err == nil && id == "" {
			err = errors.New("provider returned no item id")
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			pe := domain.NewPlatformError(domain.KindPartialCarouselFailure, platform, "create carousel item",
				fmt.Sprintf("item %d of %d failed: %s", i+1, len(items), domain.ProviderMessage(err)), err)
			pe.Index = i
			return nil, pe
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// AwaitReady polls status at a fixed interval until the container is ready,
// fails, or the ceiling passes. Reaching the ceiling is not an error: it
// returns false and the caller proceeds to publish.
func AwaitReady(
	ctx context.Context,
	platform domain.Platform,
	cfg PollConfig,
	containerID string,
	status func(ctx context.Context, containerID string) (ReadyStatus, string, error),
) (bool, error) {
	cfg = cfg.withDefaults()

	ceiling := time.NewTimer(cfg.Ceiling)
	defer ceiling.Stop()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		st, msg, err := status(ctx, containerID)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			if !errors.Is(err, domain.ErrProviderUnavailable) {
				return false, err
			}
			logger.Warn("%s: status check for %s failed, retrying: %v", platform, containerID, err)
		case st == StatusReady:
			return true, nil
		case st == StatusFailed:
			if msg == "" {
				msg = "media processing failed"
			}
			return false, domain.NewPlatformError(domain.KindProviderRejected, platform, "await ready", msg, nil)
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ceiling.C:
			logger.Warn("%s: container %s not ready after %s, publishing anyway", platform, containerID, cfg.Ceiling)
			return false, nil
		case <-ticker.C:
		}
	}
}

// ResolvePermalink looks up a post's URL, falling back to the canonical URL
// when the lookup fails or returns nothing.
func ResolvePermalink(
	ctx context.Context,
	platform domain.Platform,
	postID string,
	lookup func(ctx context.Context, postID string) (string, error),
	canonical func(postID string) string,
) string {
	if lookup != nil {
		link, err := lookup(ctx, postID)
		if err == nil && link != "" {
			return link
		}
		if err != nil {
			logger.Warn("%s: permalink lookup for %s failed: %v", platform, postID, err)
		}
	}
	if canonical == nil {
		return ""
	}
	return canonical(postID)
}

func hasVideo(items []domain.Media) bool {
	for _, m := range items {
		if m.Kind == domain.MediaVideo {
			return true
		}
	}
	return false
}
