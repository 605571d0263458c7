// Package prmock implements pr.Service entirely in memory, for tests and
// the orchestrator's --mock demo mode (mirrors terminal/mock and
// activity/mock's shape).
package prmock

import (
	"context"
	"sync"
	"time"

	"github.com/untra/operator-go/internal/pr"
)

// Service is a pure in-memory pr.Service. Safe for concurrent use.
type Service struct {
	mu    sync.Mutex
	prs   map[string]pr.PullRequestInfo // keyed by pr.PrKey
	ready map[string]bool

	// Available, when false, makes CheckAvailable report unavailable.
	Available bool
}

func New() *Service {
	return &Service{
		prs:       make(map[string]pr.PullRequestInfo),
		ready:     make(map[string]bool),
		Available: true,
	}
}

func (s *Service) ProviderName() string { return "mock" }

func (s *Service) CheckAvailable(ctx context.Context) (bool, error) {
	return s.Available, nil
}

func (s *Service) GetAuthenticatedUser(ctx context.Context) (string, error) {
	return "mock-user", nil
}

// SetPR seeds (or overwrites) the state returned for repo/number.
func (s *Service) SetPR(repo pr.RepoInfo, number int64, info pr.PullRequestInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prs[pr.PrKey(repo, number)] = info
}

// SetReadyToMerge overrides IsReadyToMerge's result for repo/number.
func (s *Service) SetReadyToMerge(repo pr.RepoInfo, number int64, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready[pr.PrKey(repo, number)] = ready
}

func (s *Service) GetPR(ctx context.Context, repo pr.RepoInfo, number int64) (pr.PullRequestInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.prs[pr.PrKey(repo, number)]
	if !ok {
		return pr.PullRequestInfo{}, &notFoundError{repo: repo, number: number}
	}
	return info, nil
}

func (s *Service) IsReadyToMerge(ctx context.Context, repo pr.RepoInfo, number int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready[pr.PrKey(repo, number)], nil
}

func (s *Service) GetReviewState(ctx context.Context, repo pr.RepoInfo, number int64) (pr.PrReviewState, error) {
	ready, err := s.IsReadyToMerge(ctx, repo, number)
	if err != nil {
		return pr.ReviewPending, err
	}
	if ready {
		return pr.ReviewApproved, nil
	}
	return pr.ReviewPending, nil
}

func (s *Service) CreatePR(ctx context.Context, repo pr.RepoInfo, req pr.CreatePRRequest, cwd string) (pr.PullRequestInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	number := int64(len(s.prs) + 1)
	info := pr.PullRequestInfo{
		Number:  number,
		URL:     "https://example.invalid/pr/mock",
		State:   pr.PrOpen,
		Title:   req.Title,
		IsDraft: req.Draft,
	}
	s.prs[pr.PrKey(repo, number)] = info
	return info, nil
}

func (s *Service) ListPRsForBranch(ctx context.Context, repo pr.RepoInfo, branch string) ([]pr.PullRequestInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []pr.PullRequestInfo
	for _, info := range s.prs {
		result = append(result, info)
	}
	return result, nil
}

func (s *Service) FindPRForBranch(ctx context.Context, repo pr.RepoInfo, branch string) (*pr.PullRequestInfo, error) {
	prs, err := s.ListPRsForBranch(ctx, repo, branch)
	if err != nil || len(prs) == 0 {
		return nil, err
	}
	return &prs[0], nil
}

func (s *Service) GetAllComments(ctx context.Context, repo pr.RepoInfo, number int64) ([]pr.UnifiedPrComment, error) {
	return nil, nil
}

func (s *Service) GetCommentsSince(ctx context.Context, repo pr.RepoInfo, number int64, since time.Time) ([]pr.UnifiedPrComment, error) {
	return nil, nil
}

func (s *Service) OpenInBrowser(ctx context.Context, repo pr.RepoInfo, number int64) error {
	return nil
}

type notFoundError struct {
	repo   pr.RepoInfo
	number int64
}

func (e *notFoundError) Error() string {
	return "pr not found: " + pr.PrKey(e.repo, e.number)
}

var _ pr.Service = (*Service)(nil)
