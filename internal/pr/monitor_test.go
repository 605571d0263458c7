package pr

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPrKeyFormat(t *testing.T) {
	repo := RepoInfo{Provider: GitHub, Owner: "owner", RepoName: "repo"}
	if got := PrKey(repo, 42); got != "owner/repo#42" {
		t.Errorf("expected owner/repo#42, got %s", got)
	}
}

type stubService struct {
	prs   map[string]PullRequestInfo
	ready map[string]bool
}

func newStubService() *stubService {
	return &stubService{prs: make(map[string]PullRequestInfo), ready: make(map[string]bool)}
}

func (s *stubService) set(repo RepoInfo, number int64, info PullRequestInfo) {
	s.prs[PrKey(repo, number)] = info
}

func (s *stubService) ProviderName() string { return "stub" }
func (s *stubService) CheckAvailable(ctx context.Context) (bool, error) {
	return true, nil
}
func (s *stubService) GetAuthenticatedUser(ctx context.Context) (string, error) {
	return "user", nil
}
func (s *stubService) GetPR(ctx context.Context, repo RepoInfo, number int64) (PullRequestInfo, error) {
	return s.prs[PrKey(repo, number)], nil
}
func (s *stubService) IsReadyToMerge(ctx context.Context, repo RepoInfo, number int64) (bool, error) {
	return s.ready[PrKey(repo, number)], nil
}
func (s *stubService) GetReviewState(ctx context.Context, repo RepoInfo, number int64) (PrReviewState, error) {
	return ReviewPending, nil
}
func (s *stubService) CreatePR(ctx context.Context, repo RepoInfo, req CreatePRRequest, cwd string) (PullRequestInfo, error) {
	return PullRequestInfo{}, nil
}
func (s *stubService) ListPRsForBranch(ctx context.Context, repo RepoInfo, branch string) ([]PullRequestInfo, error) {
	return nil, nil
}
func (s *stubService) GetAllComments(ctx context.Context, repo RepoInfo, number int64) ([]UnifiedPrComment, error) {
	return nil, nil
}
func (s *stubService) OpenInBrowser(ctx context.Context, repo RepoInfo, number int64) error {
	return nil
}
func (s *stubService) GetCommentsSince(ctx context.Context, repo RepoInfo, number int64, since time.Time) ([]UnifiedPrComment, error) {
	return nil, nil
}
func (s *stubService) FindPRForBranch(ctx context.Context, repo RepoInfo, branch string) (*PullRequestInfo, error) {
	return nil, nil
}

func TestCreateService(t *testing.T) {
	events := make(chan StatusEvent, 8)
	m := NewMonitor(newStubService(), events, zerolog.Nop())
	if m.TrackedCount() != 0 {
		t.Errorf("expected 0 tracked, got %d", m.TrackedCount())
	}
}

func TestPollIntervalConfig(t *testing.T) {
	events := make(chan StatusEvent, 8)
	m := NewMonitor(newStubService(), events, zerolog.Nop()).WithPollInterval(30 * time.Second)
	if m.pollInterval != 30*time.Second {
		t.Errorf("expected 30s poll interval, got %v", m.pollInterval)
	}
}

func TestTrackPRFetchesInitialState(t *testing.T) {
	svc := newStubService()
	repo := RepoInfo{Provider: GitHub, Owner: "owner", RepoName: "repo"}
	svc.set(repo, 42, PullRequestInfo{Number: 42, State: PrOpen, IsDraft: true})

	events := make(chan StatusEvent, 8)
	m := NewMonitor(svc, events, zerolog.Nop())

	if err := m.TrackPR(context.Background(), repo, 42, "FEAT-1"); err != nil {
		t.Fatal(err)
	}
	if !m.IsTracking(repo, 42) {
		t.Error("expected pr tracked")
	}
	if m.TrackedCount() != 1 {
		t.Errorf("expected 1 tracked, got %d", m.TrackedCount())
	}
}

func TestUntrackPR(t *testing.T) {
	svc := newStubService()
	repo := RepoInfo{Provider: GitHub, Owner: "owner", RepoName: "repo"}
	svc.set(repo, 1, PullRequestInfo{Number: 1, State: PrOpen})

	events := make(chan StatusEvent, 8)
	m := NewMonitor(svc, events, zerolog.Nop())
	_ = m.TrackPR(context.Background(), repo, 1, "FEAT-1")
	m.UntrackPR(repo, 1)
	if m.IsTracking(repo, 1) {
		t.Error("expected pr no longer tracked")
	}
}

func TestPollSinglePREmitsMergedEvent(t *testing.T) {
	svc := newStubService()
	repo := RepoInfo{Provider: GitHub, Owner: "owner", RepoName: "repo"}
	svc.set(repo, 1, PullRequestInfo{Number: 1, State: PrOpen})

	events := make(chan StatusEvent, 8)
	m := NewMonitor(svc, events, zerolog.Nop())
	ctx := context.Background()
	if err := m.TrackPR(ctx, repo, 1, "FEAT-1"); err != nil {
		t.Fatal(err)
	}

	svc.set(repo, 1, PullRequestInfo{Number: 1, State: PrMerged, MergeCommitSHA: "abc123"})
	tracked := TrackedPr{Repo: repo, PrNumber: 1, LastState: PrOpen, TicketID: "FEAT-1"}
	if err := m.PollSinglePR(ctx, tracked); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.Kind != EventMerged || ev.MergeCommitSHA != "abc123" {
			t.Errorf("unexpected event: %+v", ev)
		}
	default:
		t.Error("expected merged event emitted")
	}
}

func TestPollSinglePREmitsClosedEvent(t *testing.T) {
	svc := newStubService()
	repo := RepoInfo{Provider: GitHub, Owner: "owner", RepoName: "repo"}
	svc.set(repo, 2, PullRequestInfo{Number: 2, State: PrClosed})

	events := make(chan StatusEvent, 8)
	m := NewMonitor(svc, events, zerolog.Nop())
	tracked := TrackedPr{Repo: repo, PrNumber: 2, LastState: PrOpen, TicketID: "FEAT-2"}
	if err := m.PollSinglePR(context.Background(), tracked); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.Kind != EventClosed {
			t.Errorf("expected closed event, got %+v", ev)
		}
	default:
		t.Error("expected closed event emitted")
	}
}

func TestPollSinglePREmitsReadyForReview(t *testing.T) {
	svc := newStubService()
	repo := RepoInfo{Provider: GitHub, Owner: "owner", RepoName: "repo"}
	svc.set(repo, 3, PullRequestInfo{Number: 3, State: PrOpen, IsDraft: false})

	events := make(chan StatusEvent, 8)
	m := NewMonitor(svc, events, zerolog.Nop())
	tracked := TrackedPr{Repo: repo, PrNumber: 3, LastState: PrOpen, TicketID: "FEAT-3", IsDraft: true}
	if err := m.PollSinglePR(context.Background(), tracked); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.Kind != EventReadyForReview {
			t.Errorf("expected ready_for_review, got %+v", ev)
		}
	default:
		t.Error("expected ready_for_review event emitted")
	}
}

func TestPollSinglePREmitsReadyToMerge(t *testing.T) {
	svc := newStubService()
	repo := RepoInfo{Provider: GitHub, Owner: "owner", RepoName: "repo"}
	svc.set(repo, 4, PullRequestInfo{Number: 4, State: PrOpen, IsDraft: false})
	svc.ready[PrKey(repo, 4)] = true

	events := make(chan StatusEvent, 8)
	m := NewMonitor(svc, events, zerolog.Nop())
	tracked := TrackedPr{Repo: repo, PrNumber: 4, LastState: PrOpen, TicketID: "FEAT-4", IsDraft: false}
	if err := m.PollSinglePR(context.Background(), tracked); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.Kind != EventReadyToMerge {
			t.Errorf("expected ready_to_merge, got %+v", ev)
		}
	default:
		t.Error("expected ready_to_merge event emitted")
	}
}

func TestPollSinglePRNoEventsWhenUnchanged(t *testing.T) {
	svc := newStubService()
	repo := RepoInfo{Provider: GitHub, Owner: "owner", RepoName: "repo"}
	svc.set(repo, 5, PullRequestInfo{Number: 5, State: PrOpen, IsDraft: true})

	events := make(chan StatusEvent, 8)
	m := NewMonitor(svc, events, zerolog.Nop())
	tracked := TrackedPr{Repo: repo, PrNumber: 5, LastState: PrOpen, TicketID: "FEAT-5", IsDraft: true}
	if err := m.PollSinglePR(context.Background(), tracked); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		t.Errorf("expected no event, got %+v", ev)
	default:
	}
}
