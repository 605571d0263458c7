// Package pr defines the provider-agnostic interface for pull-request
// operations (spec §4.7). Orchestrator components depend only on Service;
// internal/pr/ghcli supplies the one concrete backend, and internal/pr/retry
// wraps any Service with a backoff-based retry policy.
package pr

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// GitProvider identifies a Git hosting provider. FromRemoteURL
// recognizes all four even though ghcli only implements GitHub today, since
// the detection logic is cheap and provider-agnostic.
type GitProvider int

const (
	GitHub GitProvider = iota
	GitLab
	Bitbucket
	AzureDevOps
)

func (p GitProvider) String() string {
	switch p {
	case GitLab:
		return "gitlab"
	case Bitbucket:
		return "bitbucket"
	case AzureDevOps:
		return "azure"
	default:
		return "github"
	}
}

// providerFromRemoteURL detects the provider from a remote URL by substring,
// matching the original implementation's detection order exactly (GitHub,
// then GitLab, then Bitbucket, then Azure DevOps).
func providerFromRemoteURL(remoteURL string) (GitProvider, bool) {
	lower := strings.ToLower(remoteURL)
	switch {
	case strings.Contains(lower, "github.com"):
		return GitHub, true
	case strings.Contains(lower, "gitlab.com") || strings.Contains(lower, "gitlab."):
		return GitLab, true
	case strings.Contains(lower, "bitbucket.org"):
		return Bitbucket, true
	case strings.Contains(lower, "dev.azure.com") || strings.Contains(lower, "visualstudio.com"):
		return AzureDevOps, true
	default:
		return 0, false
	}
}

var ownerRepoPatterns = map[GitProvider]*regexp.Regexp{
	GitHub:      regexp.MustCompile(`github\.com[:/]([^/]+)/([^/]+?)(?:\.git)?(?:/|$)`),
	GitLab:      regexp.MustCompile(`gitlab[^/]*[:/]([^/]+)/([^/]+?)(?:\.git)?(?:/|$)`),
	Bitbucket:   regexp.MustCompile(`bitbucket\.org[:/]([^/]+)/([^/]+?)(?:\.git)?(?:/|$)`),
	AzureDevOps: regexp.MustCompile(`(?:dev\.azure\.com|visualstudio\.com)[:/]([^/]+)/([^/]+?)(?:\.git)?(?:/|$)`),
}

// RepoInfo is the provider-agnostic repository identity parsed from a git
// remote URL.
type RepoInfo struct {
	Provider GitProvider
	Owner    string
	RepoName string
}

// NewRepoInfo builds a RepoInfo with an explicit provider.
func NewRepoInfo(provider GitProvider, owner, repoName string) RepoInfo {
	return RepoInfo{Provider: provider, Owner: owner, RepoName: repoName}
}

// FromRemoteURL parses owner/repo out of an SSH or HTTPS remote URL,
// supporting github.com, gitlab(.com or self-hosted), bitbucket.org, and
// dev.azure.com/visualstudio.com.
func FromRemoteURL(remoteURL string) (RepoInfo, error) {
	provider, ok := providerFromRemoteURL(remoteURL)
	if !ok {
		return RepoInfo{}, fmt.Errorf("unknown git provider for url: %s", remoteURL)
	}

	re := ownerRepoPatterns[provider]
	caps := re.FindStringSubmatch(remoteURL)
	if caps == nil {
		return RepoInfo{}, fmt.Errorf("invalid %s url format: %s", provider, remoteURL)
	}

	return RepoInfo{Provider: provider, Owner: caps[1], RepoName: caps[2]}, nil
}

// FullName returns "owner/repo".
func (r RepoInfo) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.RepoName)
}

// PrState is the lifecycle state of a pull request.
type PrState int

const (
	PrOpen PrState = iota
	PrMerged
	PrClosed
)

func (s PrState) String() string {
	switch s {
	case PrMerged:
		return "MERGED"
	case PrClosed:
		return "CLOSED"
	default:
		return "OPEN"
	}
}

// PrReviewState is the most recent decision-bearing review on a PR.
type PrReviewState int

const (
	ReviewPending PrReviewState = iota
	ReviewApproved
	ReviewChangesRequested
	ReviewCommented
	ReviewDismissed
)

func (s PrReviewState) String() string {
	switch s {
	case ReviewApproved:
		return "approved"
	case ReviewChangesRequested:
		return "changes_requested"
	case ReviewCommented:
		return "commented"
	case ReviewDismissed:
		return "dismissed"
	default:
		return "pending"
	}
}

// CreatePRRequest describes a PR to open.
type CreatePRRequest struct {
	Title      string
	Body       string
	HeadBranch string
	BaseBranch string
	Draft      bool
}

// PullRequestInfo is the shape every Service method returns for a PR.
type PullRequestInfo struct {
	Number         int64
	URL            string
	State          PrState
	MergeCommitSHA string
	Title          string
	IsDraft        bool
}

// UnifiedPrComment is either a general conversation comment or an inline
// review comment on a diff, distinguished by Kind.
type UnifiedPrComment struct {
	Kind              CommentKind
	ID                string
	Author            string
	AuthorAssociation string
	Body              string
	CreatedAt         time.Time
	URL               string
	Path              string
	Line              int64
	HasLine           bool
	DiffHunk          string
}

// CommentKind distinguishes UnifiedPrComment variants.
type CommentKind int

const (
	CommentGeneral CommentKind = iota
	CommentReview
)

// Service is the provider-agnostic interface for PR/MR operations (spec
// §4.7), grounded on the original implementation's PrService trait.
// Convenience helpers like poll-until-merged are deliberately not part of
// this interface; they can be built on top of GetPR by any caller.
type Service interface {
	ProviderName() string
	CheckAvailable(ctx context.Context) (bool, error)
	GetAuthenticatedUser(ctx context.Context) (string, error)
	GetPR(ctx context.Context, repo RepoInfo, number int64) (PullRequestInfo, error)
	IsReadyToMerge(ctx context.Context, repo RepoInfo, number int64) (bool, error)
	GetReviewState(ctx context.Context, repo RepoInfo, number int64) (PrReviewState, error)
	CreatePR(ctx context.Context, repo RepoInfo, req CreatePRRequest, cwd string) (PullRequestInfo, error)
	ListPRsForBranch(ctx context.Context, repo RepoInfo, branch string) ([]PullRequestInfo, error)
	GetAllComments(ctx context.Context, repo RepoInfo, number int64) ([]UnifiedPrComment, error)
	OpenInBrowser(ctx context.Context, repo RepoInfo, number int64) error
	GetCommentsSince(ctx context.Context, repo RepoInfo, number int64, since time.Time) ([]UnifiedPrComment, error)
	FindPRForBranch(ctx context.Context, repo RepoInfo, branch string) (*PullRequestInfo, error)
}
