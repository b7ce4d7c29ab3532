package worker

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"time"

	"github.com/postpilot/postpilot/internal/campaign"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/publisher"
	"github.com/postpilot/postpilot/internal/scheduler"
	"github.com/postpilot/postpilot/internal/storage"
	"golang.org/x/sync/errgroup"
)

const defaultBatchSize = 50

// Worker is the single background process of the engine: a fixed
// interval poll loop that pulls due posts from the scheduler and hands
// them to the publisher under bounded concurrency. Dispatch order
// follows the due query (oldest first) but completion order does not.
type Worker struct {
	sched         scheduler.Scheduler
	pub           publisher.Publisher
	posts         storage.PostStore
	accounts      storage.AccountStore
	campaigns     campaign.Orchestrator
	interval      time.Duration
	batchSize     int
	maxConcurrent int
}

func New(
	sched scheduler.Scheduler,
	pub publisher.Publisher,
	posts storage.PostStore,
	accountStore storage.AccountStore,
	campaigns campaign.Orchestrator,
	interval time.Duration,
	maxConcurrent int) *Worker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	return &Worker{
		sched:         sched,
		pub:           pub,
		posts:         posts,
		accounts:      accountStore,
		campaigns:     campaigns,
		interval:      interval,
		batchSize:     defaultBatchSize,
		maxConcurrent: maxConcurrent,
	}
}

// Run polls until the context is cancelled. The in-flight poll drains
// before Run returns: cancellation propagates into retry sleeps, so a
// shutdown never hangs on a backoff timer.
func (w *Worker) Run(ctx context.Context) {
	log.Printf("worker polling every %s", w.interval)

	if err := w.recoverStranded(ctx); err != nil {
		slog.Error("stranded post sweep failed: " + err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("worker stopped")
			return
		case <-ticker.C:
			if err := w.Poll(ctx); err != nil {
				slog.Error("poll failed: " + err.Error())
			}
		}
	}
}

// recoverStranded fails posts left in the publishing state by a previous
// process. The attempt may have reached the platform before the crash,
// so re-queueing could publish twice; marking them failed leaves the
// user to reschedule after checking the platform.
func (w *Worker) recoverStranded(ctx context.Context) error {
	stranded, err := w.posts.ListPublishingPosts(ctx)
	if err != nil {
		return err
	}
	for _, post := range stranded {
		log.Printf("failing post %s stranded in publishing state", post.ID)
		w.failPost(ctx, post, "publishing interrupted by restart")
		if post.CampaignID != "" {
			w.checkCampaign(ctx, post.CampaignID)
		}
	}
	return nil
}

// Poll runs one dispatch round. Exported so a single round can be
// driven directly, e.g. by tests or a run-once CLI mode.
func (w *Worker) Poll(ctx context.Context) error {
	due, err := w.sched.GetDuePosts(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	g := new(errgroup.Group)
	g.SetLimit(w.maxConcurrent)

	for _, duePost := range due {
		// Claim before dispatch: a post cancelled between the due
		// query and this point is skipped.
		post, err := w.sched.MarkPublishing(ctx, duePost.ID)
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		if post == nil {
			continue
		}

		g.Go(func() error {
			w.dispatch(ctx, post)
			return nil
		})
	}

	return g.Wait()
}

func (w *Worker) dispatch(ctx context.Context, post *models.ScheduledPost) {
	acc, err := w.accounts.GetAccount(ctx, post.AccountID)
	if err == nil && (acc == nil || !acc.IsActive) {
		err = errors.New("account is missing or inactive")
	}
	if err != nil {
		w.failPost(ctx, post, err.Error())
	} else {
		result := w.pub.PublishWithRetry(ctx, post, acc, publisher.DefaultMaxRetries)
		if result.Err != nil {
			slog.Info("publish failed for post " + post.ID + ": " + result.Err.Error())
		}
	}

	if post.CampaignID != "" {
		w.checkCampaign(ctx, post.CampaignID)
	}
}

func (w *Worker) failPost(ctx context.Context, post *models.ScheduledPost, message string) {
	if !models.CanTransition(post.Status, models.PostStatusFailed) {
		return
	}
	post.Status = models.PostStatusFailed
	post.ErrorMessage = message
	if err := w.posts.SavePost(ctx, post); err != nil {
		slog.Error(err.Error())
	}
}

func (w *Worker) checkCampaign(ctx context.Context, campaignID string) {
	done, err := w.campaigns.CheckCampaignCompletion(ctx, campaignID)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if !done {
		return
	}

	if err := w.campaigns.CompleteCampaign(ctx, campaignID); err != nil {
		// Another dispatch may have completed it first.
		var stateErr *scheduler.InvalidStateError
		if !errors.As(err, &stateErr) {
			slog.Info(err.Error())
		}
	}
}
