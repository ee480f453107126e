// Package engine orchestrates one forwarding run: discover the day's
// articles, classify each as new or duplicate against the tracking store,
// deliver the new ones, and persist the updated store.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsfirst-telegram-bot/tracker"
)

const defaultRetention = 7 * 24 * time.Hour

// Candidate is one discovered article, owned by the engine for the duration
// of a single run.
type Candidate struct {
	URL       string
	Title     string
	Excerpt   string
	Published string
}

// Outcome classifies what happened to one candidate.
type Outcome string

const (
	OutcomeSent                    Outcome = "sent"
	OutcomeSkippedDuplicateURL     Outcome = "skipped_duplicate_url"
	OutcomeSkippedDuplicateContent Outcome = "skipped_duplicate_content"
	OutcomeError                   Outcome = "error"
)

// Fetcher produces the day's article candidates. Discover failing is fatal
// to the run; Fetch failing affects only that candidate.
type Fetcher interface {
	Discover(ctx context.Context, date time.Time) ([]string, error)
	Fetch(ctx context.Context, url string) (*Candidate, error)
}

// Notifier delivers one candidate to the chat destination.
type Notifier interface {
	Send(ctx context.Context, c *Candidate) error
}

// Summary is the externally observable result of a run.
type Summary struct {
	Total          int
	Sent           int
	SkippedURL     int
	SkippedContent int
	Errors         int

	// StoreSaveError is set when persisting the store failed at run end.
	// Notifications already delivered stay delivered; the next run may
	// re-send them.
	StoreSaveError error
}

// Skipped is the combined duplicate-skip count.
func (s *Summary) Skipped() int {
	return s.SkippedURL + s.SkippedContent
}

// Runner executes runs against a tracking store.
type Runner struct {
	fetcher   Fetcher
	notifier  Notifier
	store     *tracker.Store
	retention time.Duration
	now       func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithRetention sets how long a tracked entry suppresses resending.
func WithRetention(d time.Duration) Option {
	return func(r *Runner) {
		r.retention = d
	}
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a runner over the given collaborators and store.
func NewRunner(fetcher Fetcher, notifier Notifier, store *tracker.Store, opts ...Option) *Runner {
	r := &Runner{
		fetcher:   fetcher,
		notifier:  notifier,
		store:     store,
		retention: defaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes all candidates for one target date, sequentially and in
// discovery order. It returns an error only when the run could not start at
// all (archive page unreachable); per-candidate failures are absorbed into
// the summary.
func (r *Runner) Run(ctx context.Context, date time.Time) (*Summary, error) {
	now := r.now().UTC()

	r.store.Load()
	if pruned := r.store.Prune(now, r.retention); pruned > 0 {
		slog.Info("pruned expired tracking entries", "count", pruned, "retention", r.retention)
	}
	slog.Info("starting run",
		"date", date.Format("2006-01-02"),
		"tracked", r.store.Len(),
	)

	urls, err := r.fetcher.Discover(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("discover articles: %w", err)
	}

	summary := &Summary{Total: len(urls)}
	if len(urls) == 0 {
		slog.Info("no articles found", "date", date.Format("2006-01-02"))
	} else {
		slog.Info("found articles", "count", len(urls))
	}

	for i, url := range urls {
		outcome, reason := r.process(ctx, url, summary)
		slog.Info("processed candidate",
			"index", i+1,
			"total", len(urls),
			"url", url,
			"outcome", string(outcome),
			"reason", reason,
		)
	}

	if err := r.store.Save(); err != nil {
		summary.StoreSaveError = err
		slog.Error("failed to save tracking store", "error", err)
	}

	slog.Info("run complete",
		"total", summary.Total,
		"sent", summary.Sent,
		"skipped_url", summary.SkippedURL,
		"skipped_content", summary.SkippedContent,
		"errors", summary.Errors,
	)
	return summary, nil
}

func (r *Runner) process(ctx context.Context, url string, summary *Summary) (Outcome, string) {
	cand, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		summary.Errors++
		return OutcomeError, fmt.Sprintf("fetch article: %v", err)
	}

	fp := tracker.Fingerprint(cand.Title, cand.Excerpt)

	if prev, ok := r.store.LookupURL(cand.URL); ok {
		summary.SkippedURL++
		return OutcomeSkippedDuplicateURL,
			fmt.Sprintf("URL already sent on %s", prev.SentAt.Format(time.RFC3339))
	}
	if prev, ok := r.store.LookupFingerprint(fp); ok {
		summary.SkippedContent++
		return OutcomeSkippedDuplicateContent,
			fmt.Sprintf("content already sent on %s as %s", prev.SentAt.Format(time.RFC3339), prev.URL)
	}

	if err := r.notifier.Send(ctx, cand); err != nil {
		// Not recorded: the article stays eligible for the next run.
		summary.Errors++
		return OutcomeError, fmt.Sprintf("send notification: %v", err)
	}

	// Recording immediately makes this URL and fingerprint visible to the
	// remaining candidates of this run, so a story listed twice on the
	// archive page is sent once.
	r.store.Record(tracker.Entry{
		URL:         cand.URL,
		Title:       cand.Title,
		Fingerprint: fp,
		SentAt:      r.now(),
	})
	summary.Sent++
	return OutcomeSent, "new article"
}
