package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"newsfirst-telegram-bot/tracker"
)

// Fakes

type fakeFetcher struct {
	urls        []string
	candidates  map[string]*Candidate
	discoverErr error
	fetchErrs   map[string]error
}

func (f *fakeFetcher) Discover(ctx context.Context, date time.Time) ([]string, error) {
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	return f.urls, nil
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*Candidate, error) {
	if err, ok := f.fetchErrs[url]; ok {
		return nil, err
	}
	if c, ok := f.candidates[url]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("no candidate for %s", url)
}

type fakeNotifier struct {
	sent     []*Candidate
	failURLs map[string]bool
}

func (n *fakeNotifier) Send(ctx context.Context, c *Candidate) error {
	if n.failURLs[c.URL] {
		return errors.New("telegram unavailable")
	}
	n.sent = append(n.sent, c)
	return nil
}

type memoryBackend struct {
	entries []tracker.Entry
	saveErr error
	saves   int
}

func (m *memoryBackend) Load() ([]tracker.Entry, error) {
	return append([]tracker.Entry(nil), m.entries...), nil
}

func (m *memoryBackend) Save(entries []tracker.Entry) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.entries = append([]tracker.Entry(nil), entries...)
	m.saves++
	return nil
}

// Helpers

var runDate = time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func threeCandidates() *fakeFetcher {
	urls := []string{
		"https://example.com/2026/01/13/alpha",
		"https://example.com/2026/01/13/bravo",
		"https://example.com/2026/01/13/charlie",
	}
	candidates := make(map[string]*Candidate)
	for i, u := range urls {
		candidates[u] = &Candidate{
			URL:     u,
			Title:   fmt.Sprintf("Article %d", i+1),
			Excerpt: fmt.Sprintf("Body of article %d", i+1),
		}
	}
	return &fakeFetcher{urls: urls, candidates: candidates}
}

// Tests

func TestRunSendsAllNewArticles(t *testing.T) {
	fetcher := threeCandidates()
	notifier := &fakeNotifier{}
	backend := &memoryBackend{}
	runner := NewRunner(fetcher, notifier, tracker.NewStore(backend),
		WithClock(fixedClock(runDate.Add(10*time.Hour))))

	summary, err := runner.Run(context.Background(), runDate)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Total != 3 || summary.Sent != 3 || summary.Skipped() != 0 || summary.Errors != 0 {
		t.Errorf("summary = %+v, want Total=3 Sent=3 Skipped=0 Errors=0", summary)
	}
	if len(notifier.sent) != 3 {
		t.Errorf("notifier sent %d messages, want 3", len(notifier.sent))
	}
	if len(backend.entries) != 3 {
		t.Errorf("store has %d entries, want 3", len(backend.entries))
	}
	// Notification order matches discovery order.
	if notifier.sent[0].Title != "Article 1" || notifier.sent[2].Title != "Article 3" {
		t.Errorf("articles sent out of order: %v", notifier.sent)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	fetcher := threeCandidates()
	backend := &memoryBackend{}
	clock := fixedClock(runDate.Add(10 * time.Hour))

	first := NewRunner(fetcher, &fakeNotifier{}, tracker.NewStore(backend), WithClock(clock))
	if _, err := first.Run(context.Background(), runDate); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	notifier := &fakeNotifier{}
	second := NewRunner(fetcher, notifier, tracker.NewStore(backend),
		WithClock(fixedClock(runDate.Add(11*time.Hour))))
	summary, err := second.Run(context.Background(), runDate)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if summary.Sent != 0 || summary.SkippedURL != 3 || summary.Errors != 0 {
		t.Errorf("summary = %+v, want Sent=0 SkippedURL=3 Errors=0", summary)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("re-run sent %d messages, want 0", len(notifier.sent))
	}
}

func TestRunSkipsRepublishedContentAcrossRuns(t *testing.T) {
	backend := &memoryBackend{}
	clock := fixedClock(runDate.Add(10 * time.Hour))

	fetcher := threeCandidates()
	first := NewRunner(fetcher, &fakeNotifier{}, tracker.NewStore(backend), WithClock(clock))
	if _, err := first.Run(context.Background(), runDate); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	// Same story as "Article 1" republished under a fresh URL.
	repub := "https://example.com/2026/01/13/alpha-republished"
	fetcher2 := &fakeFetcher{
		urls: []string{repub},
		candidates: map[string]*Candidate{
			repub: {URL: repub, Title: "Article 1", Excerpt: "Body of article 1"},
		},
	}
	notifier := &fakeNotifier{}
	second := NewRunner(fetcher2, notifier, tracker.NewStore(backend), WithClock(clock))
	summary, err := second.Run(context.Background(), runDate)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if summary.SkippedContent != 1 || summary.Sent != 0 {
		t.Errorf("summary = %+v, want SkippedContent=1 Sent=0", summary)
	}
	if len(notifier.sent) != 0 {
		t.Error("republished story should not be sent again")
	}
}

func TestRunSuppressesRepublishedStoryWithinRun(t *testing.T) {
	// The archive page lists the same story under two links. Entries recorded
	// earlier in the run must be visible to later candidates.
	u1 := "https://example.com/2026/01/13/story"
	u2 := "https://example.com/2026/01/13/story-alt"
	fetcher := &fakeFetcher{
		urls: []string{u1, u2},
		candidates: map[string]*Candidate{
			u1: {URL: u1, Title: "Shared Story", Excerpt: "Same opening text"},
			u2: {URL: u2, Title: "Shared Story", Excerpt: "Same opening text"},
		},
	}
	notifier := &fakeNotifier{}
	runner := NewRunner(fetcher, notifier, tracker.NewStore(&memoryBackend{}),
		WithClock(fixedClock(runDate.Add(10*time.Hour))))

	summary, err := runner.Run(context.Background(), runDate)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Sent != 1 || summary.SkippedContent != 1 {
		t.Errorf("summary = %+v, want exactly one Sent and one SkippedContent", summary)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].URL != u1 {
		t.Errorf("the first-listed link should be the one sent, got %v", notifier.sent)
	}
}

func TestRunNotifierFailureLeavesArticleEligible(t *testing.T) {
	fetcher := threeCandidates()
	failing := "https://example.com/2026/01/13/bravo"
	notifier := &fakeNotifier{failURLs: map[string]bool{failing: true}}
	backend := &memoryBackend{}
	runner := NewRunner(fetcher, notifier, tracker.NewStore(backend),
		WithClock(fixedClock(runDate.Add(10*time.Hour))))

	summary, err := runner.Run(context.Background(), runDate)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Sent != 2 || summary.Errors != 1 {
		t.Errorf("summary = %+v, want Sent=2 Errors=1", summary)
	}
	if len(backend.entries) != 2 {
		t.Fatalf("store has %d entries, want 2", len(backend.entries))
	}
	for _, e := range backend.entries {
		if e.URL == failing {
			t.Error("failed notification must not be recorded")
		}
	}
}

func TestRunFetchErrorSkipsOnlyThatCandidate(t *testing.T) {
	fetcher := threeCandidates()
	fetcher.fetchErrs = map[string]error{
		"https://example.com/2026/01/13/alpha": errors.New("connection reset"),
	}
	notifier := &fakeNotifier{}
	runner := NewRunner(fetcher, notifier, tracker.NewStore(&memoryBackend{}),
		WithClock(fixedClock(runDate.Add(10*time.Hour))))

	summary, err := runner.Run(context.Background(), runDate)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Errors != 1 || summary.Sent != 2 {
		t.Errorf("summary = %+v, want Errors=1 Sent=2", summary)
	}
}

func TestRunPrunesExpiredEntries(t *testing.T) {
	now := runDate.Add(10 * time.Hour)
	fetcher := threeCandidates()
	alpha := fetcher.candidates["https://example.com/2026/01/13/alpha"]

	// Alpha was sent 8 days ago with a 7-day window: it must be pruned and
	// re-sent, not treated as a duplicate.
	backend := &memoryBackend{entries: []tracker.Entry{{
		URL:         alpha.URL,
		Title:       alpha.Title,
		Fingerprint: tracker.Fingerprint(alpha.Title, alpha.Excerpt),
		SentAt:      now.Add(-8 * 24 * time.Hour),
	}}}

	notifier := &fakeNotifier{}
	runner := NewRunner(fetcher, notifier, tracker.NewStore(backend), WithClock(fixedClock(now)))

	summary, err := runner.Run(context.Background(), runDate)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Sent != 3 || summary.Skipped() != 0 {
		t.Errorf("summary = %+v, want Sent=3 Skipped=0 after expiry", summary)
	}
	if len(backend.entries) != 3 {
		t.Errorf("store has %d entries, want 3 (expired entry replaced)", len(backend.entries))
	}
}

func TestRunWithinWindowEntrySuppresses(t *testing.T) {
	now := runDate.Add(10 * time.Hour)
	fetcher := threeCandidates()
	alpha := fetcher.candidates["https://example.com/2026/01/13/alpha"]

	backend := &memoryBackend{entries: []tracker.Entry{{
		URL:         alpha.URL,
		Title:       alpha.Title,
		Fingerprint: tracker.Fingerprint(alpha.Title, alpha.Excerpt),
		SentAt:      now.Add(-3 * 24 * time.Hour),
	}}}

	runner := NewRunner(fetcher, &fakeNotifier{}, tracker.NewStore(backend), WithClock(fixedClock(now)))
	summary, err := runner.Run(context.Background(), runDate)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Sent != 2 || summary.SkippedURL != 1 {
		t.Errorf("summary = %+v, want Sent=2 SkippedURL=1", summary)
	}
}

func TestRunSaveFailureReportedOnSummary(t *testing.T) {
	fetcher := threeCandidates()
	notifier := &fakeNotifier{}
	backend := &memoryBackend{saveErr: errors.New("disk full")}
	runner := NewRunner(fetcher, notifier, tracker.NewStore(backend),
		WithClock(fixedClock(runDate.Add(10*time.Hour))))

	summary, err := runner.Run(context.Background(), runDate)
	if err != nil {
		t.Fatalf("Run should not fail on save error: %v", err)
	}

	if summary.StoreSaveError == nil {
		t.Error("StoreSaveError should be set")
	}
	// Delivered notifications are not undone.
	if summary.Sent != 3 || len(notifier.sent) != 3 {
		t.Errorf("summary = %+v with %d sent messages, want 3 sent", summary, len(notifier.sent))
	}
}

func TestRunDiscoveryFailureIsFatal(t *testing.T) {
	fetcher := &fakeFetcher{discoverErr: errors.New("archive unreachable")}
	runner := NewRunner(fetcher, &fakeNotifier{}, tracker.NewStore(&memoryBackend{}))

	if _, err := runner.Run(context.Background(), runDate); err == nil {
		t.Error("Run should fail when the archive page cannot be fetched")
	}
}

func TestRunEmptyDiscoveryIsSuccess(t *testing.T) {
	backend := &memoryBackend{}
	runner := NewRunner(&fakeFetcher{}, &fakeNotifier{}, tracker.NewStore(backend))

	summary, err := runner.Run(context.Background(), runDate)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Total != 0 || summary.Sent != 0 || summary.Errors != 0 {
		t.Errorf("summary = %+v, want all zero", summary)
	}
	if backend.saves != 1 {
		t.Errorf("store saved %d times, want 1 (save still happens after load)", backend.saves)
	}
}
