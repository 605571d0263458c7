package retry

import (
	"context"
	"testing"
	"time"

	"github.com/untra/operator-go/internal/apierr"
	"github.com/untra/operator-go/internal/pr"
)

type countingService struct {
	calls     int
	failUntil int
	err       error
}

func (s *countingService) ProviderName() string { return "counting" }
func (s *countingService) CheckAvailable(ctx context.Context) (bool, error) {
	s.calls++
	if s.calls <= s.failUntil {
		return false, s.err
	}
	return true, nil
}
func (s *countingService) GetAuthenticatedUser(ctx context.Context) (string, error) { return "", nil }
func (s *countingService) GetPR(ctx context.Context, repo pr.RepoInfo, number int64) (pr.PullRequestInfo, error) {
	return pr.PullRequestInfo{}, nil
}
func (s *countingService) IsReadyToMerge(ctx context.Context, repo pr.RepoInfo, number int64) (bool, error) {
	return false, nil
}
func (s *countingService) GetReviewState(ctx context.Context, repo pr.RepoInfo, number int64) (pr.PrReviewState, error) {
	return pr.ReviewPending, nil
}
func (s *countingService) CreatePR(ctx context.Context, repo pr.RepoInfo, req pr.CreatePRRequest, cwd string) (pr.PullRequestInfo, error) {
	return pr.PullRequestInfo{}, nil
}
func (s *countingService) ListPRsForBranch(ctx context.Context, repo pr.RepoInfo, branch string) ([]pr.PullRequestInfo, error) {
	return nil, nil
}
func (s *countingService) GetAllComments(ctx context.Context, repo pr.RepoInfo, number int64) ([]pr.UnifiedPrComment, error) {
	return nil, nil
}
func (s *countingService) OpenInBrowser(ctx context.Context, repo pr.RepoInfo, number int64) error {
	return nil
}
func (s *countingService) GetCommentsSince(ctx context.Context, repo pr.RepoInfo, number int64, since time.Time) ([]pr.UnifiedPrComment, error) {
	return nil, nil
}
func (s *countingService) FindPRForBranch(ctx context.Context, repo pr.RepoInfo, branch string) (*pr.PullRequestInfo, error) {
	return nil, nil
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	inner := &countingService{failUntil: 2, err: apierr.Transient("flaky", nil)}
	svc := New(inner, time.Millisecond, 10*time.Millisecond, 5, 3)

	ok, err := svc.CheckAvailable(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected eventual success")
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}

func TestRetryNeverRetriesUnauthorizedPastThreshold(t *testing.T) {
	inner := &countingService{failUntil: 100, err: apierr.Unauthorized("bad token", 3)}
	svc := New(inner, time.Millisecond, 10*time.Millisecond, 10, 3)

	_, err := svc.CheckAvailable(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("expected to stop after first call once threshold already met, got %d calls", inner.calls)
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	inner := &countingService{failUntil: 100, err: apierr.Validation("bad request")}
	svc := New(inner, time.Millisecond, 10*time.Millisecond, 10, 3)

	_, err := svc.CheckAvailable(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("expected no retries for validation error, got %d calls", inner.calls)
	}
}
