// Package retry wraps any pr.Service with exponential backoff, grounded on
// the orchestrator's broader apierr retry policy rather than any one
// original file (the original implementation relies on gh's own retry
// behavior; this module adds an explicit policy at the orchestrator layer
// instead, matching config.PRConfig's retry fields).
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/untra/operator-go/internal/apierr"
	"github.com/untra/operator-go/internal/pr"
)

// Service wraps a pr.Service, retrying transient/rate-limited failures with
// exponential backoff and never retrying Unauthorized/Forbidden once the
// caller's threshold has been crossed (apierr.NeedsTokenRefresh).
type Service struct {
	inner     pr.Service
	minDelay  time.Duration
	maxDelay  time.Duration
	maxTries  uint64
	threshold int
}

// New wraps inner with the given retry parameters. maxTries is the total
// number of calls, including the first. maxTries <= 0 sets no limit on
// tries; retries then end when the backoff's default 15-minute elapsed-time
// limit is reached or ctx is done (maxDelay caps each wait, not the total).
func New(inner pr.Service, minDelay, maxDelay time.Duration, maxTries int, unauthorizedThreshold int) *Service {
	return &Service{
		inner:     inner,
		minDelay:  minDelay,
		maxDelay:  maxDelay,
		maxTries:  uint64(maxTries),
		threshold: unauthorizedThreshold,
	}
}

func (s *Service) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.minDelay
	b.MaxInterval = s.maxDelay
	b.Reset()

	var bo backoff.BackOff = b
	if s.maxTries > 0 {
		// WithMaxRetries counts retries after the first call.
		bo = backoff.WithMaxRetries(bo, s.maxTries-1)
	}
	return backoff.WithContext(bo, ctx)
}

// run retries op as long as apierr.Classify(err) is retryable and the
// consecutive-failure count hasn't crossed threshold for auth errors.
func run[T any](ctx context.Context, s *Service, op func() (T, error)) (T, error) {
	var result T
	bo := s.newBackOff(ctx)

	err := backoff.Retry(func() error {
		var err error
		result, err = op()
		if err == nil {
			return nil
		}

		if apierr.NeedsTokenRefresh(err, s.threshold) {
			return backoff.Permanent(err)
		}
		if !apierr.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)

	return result, err
}

func (s *Service) ProviderName() string { return s.inner.ProviderName() }

func (s *Service) CheckAvailable(ctx context.Context) (bool, error) {
	return run(ctx, s, func() (bool, error) { return s.inner.CheckAvailable(ctx) })
}

func (s *Service) GetAuthenticatedUser(ctx context.Context) (string, error) {
	return run(ctx, s, func() (string, error) { return s.inner.GetAuthenticatedUser(ctx) })
}

func (s *Service) GetPR(ctx context.Context, repo pr.RepoInfo, number int64) (pr.PullRequestInfo, error) {
	return run(ctx, s, func() (pr.PullRequestInfo, error) { return s.inner.GetPR(ctx, repo, number) })
}

func (s *Service) IsReadyToMerge(ctx context.Context, repo pr.RepoInfo, number int64) (bool, error) {
	return run(ctx, s, func() (bool, error) { return s.inner.IsReadyToMerge(ctx, repo, number) })
}

func (s *Service) GetReviewState(ctx context.Context, repo pr.RepoInfo, number int64) (pr.PrReviewState, error) {
	return run(ctx, s, func() (pr.PrReviewState, error) { return s.inner.GetReviewState(ctx, repo, number) })
}

func (s *Service) CreatePR(ctx context.Context, repo pr.RepoInfo, req pr.CreatePRRequest, cwd string) (pr.PullRequestInfo, error) {
	return run(ctx, s, func() (pr.PullRequestInfo, error) { return s.inner.CreatePR(ctx, repo, req, cwd) })
}

func (s *Service) ListPRsForBranch(ctx context.Context, repo pr.RepoInfo, branch string) ([]pr.PullRequestInfo, error) {
	return run(ctx, s, func() ([]pr.PullRequestInfo, error) { return s.inner.ListPRsForBranch(ctx, repo, branch) })
}

func (s *Service) GetAllComments(ctx context.Context, repo pr.RepoInfo, number int64) ([]pr.UnifiedPrComment, error) {
	return run(ctx, s, func() ([]pr.UnifiedPrComment, error) { return s.inner.GetAllComments(ctx, repo, number) })
}

func (s *Service) OpenInBrowser(ctx context.Context, repo pr.RepoInfo, number int64) error {
	_, err := run(ctx, s, func() (struct{}, error) { return struct{}{}, s.inner.OpenInBrowser(ctx, repo, number) })
	return err
}

func (s *Service) GetCommentsSince(ctx context.Context, repo pr.RepoInfo, number int64, since time.Time) ([]pr.UnifiedPrComment, error) {
	return run(ctx, s, func() ([]pr.UnifiedPrComment, error) { return s.inner.GetCommentsSince(ctx, repo, number, since) })
}

func (s *Service) FindPRForBranch(ctx context.Context, repo pr.RepoInfo, branch string) (*pr.PullRequestInfo, error) {
	return run(ctx, s, func() (*pr.PullRequestInfo, error) { return s.inner.FindPRForBranch(ctx, repo, branch) })
}

var _ pr.Service = (*Service)(nil)
