// Package ghcli implements pr.Service by shelling out to the gh CLI
// (https://cli.github.com), grounded on the original implementation's
// gh_cli.rs. gh handles GitHub authentication itself (gh auth login) and
// stores credentials securely, so this backend never touches a token
// directly.
package ghcli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/untra/operator-go/internal/pr"
)

// Backend shells out to the gh CLI for every Service method.
type Backend struct {
	bin string
}

// New locates the gh binary via PATH. Callers should call CheckAvailable
// before relying on the backend.
func New() *Backend {
	bin, _ := exec.LookPath("gh")
	if bin == "" {
		bin = "gh"
	}
	return &Backend{bin: bin}
}

func (b *Backend) ProviderName() string { return "github" }

func (b *Backend) run(ctx context.Context, cwd string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, b.bin, args...)
	if cwd != "" {
		cmd.Dir = cwd
	}
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		verb := ""
		if len(args) > 0 {
			verb = args[0]
		}
		return "", fmt.Errorf("gh %s failed: %w: %s", verb, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(out.String()), nil
}

// isInstalled reports whether the gh binary is on PATH and runnable.
func (b *Backend) isInstalled(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, b.bin, "--version")
	return cmd.Run() == nil
}

// checkAuth reports whether gh has valid stored credentials.
func (b *Backend) checkAuth(ctx context.Context) bool {
	_, err := b.run(ctx, "", "auth", "status")
	return err == nil
}

func (b *Backend) CheckAvailable(ctx context.Context) (bool, error) {
	if !b.isInstalled(ctx) {
		return false, nil
	}
	return b.checkAuth(ctx), nil
}

func (b *Backend) GetAuthenticatedUser(ctx context.Context) (string, error) {
	return b.run(ctx, "", "api", "user", "--jq", ".login")
}

type ghPrCreateResponse struct {
	Number  int64  `json:"number"`
	URL     string `json:"url"`
	State   string `json:"state"`
	IsDraft bool   `json:"isDraft"`
	Title   string `json:"title"`
}

type ghMergeCommit struct {
	OID string `json:"oid"`
}

type ghPrViewResponse struct {
	Number      int64          `json:"number"`
	URL         string         `json:"url"`
	State       string         `json:"state"`
	IsDraft     bool           `json:"isDraft"`
	Title       string         `json:"title"`
	MergeCommit *ghMergeCommit `json:"mergeCommit"`
}

func parseState(s string) pr.PrState {
	switch strings.ToUpper(s) {
	case "OPEN":
		return pr.PrOpen
	case "MERGED":
		return pr.PrMerged
	default:
		return pr.PrClosed
	}
}

// prAlreadyExistsURLPattern and prAlreadyExistsHashPattern extract a PR
// number (and URL, if present) from gh's "already exists" error text.
var (
	prAlreadyExistsURLPattern  = regexp.MustCompile(`https://github\.com/[^/]+/[^/]+/pull/(\d+)`)
	prAlreadyExistsHashPattern = regexp.MustCompile(`#(\d+)`)
)

func extractExistingPR(errText string) (int64, string, bool) {
	if caps := prAlreadyExistsURLPattern.FindStringSubmatch(errText); caps != nil {
		n, err := strconv.ParseInt(caps[1], 10, 64)
		if err == nil {
			return n, caps[0], true
		}
	}
	if caps := prAlreadyExistsHashPattern.FindStringSubmatch(errText); caps != nil {
		n, err := strconv.ParseInt(caps[1], 10, 64)
		if err == nil {
			return n, fmt.Sprintf("(PR #%d)", n), true
		}
	}
	return 0, "", false
}

func (b *Backend) CreatePR(ctx context.Context, repo pr.RepoInfo, req pr.CreatePRRequest, cwd string) (pr.PullRequestInfo, error) {
	if !b.isInstalled(ctx) {
		return pr.PullRequestInfo{}, pr.ErrGithubCliNotInstalled
	}
	if !b.checkAuth(ctx) {
		return pr.PullRequestInfo{}, pr.ErrGithubCliNotLoggedIn
	}

	args := []string{
		"pr", "create",
		"--repo", repo.FullName(),
		"--head", req.HeadBranch,
		"--base", req.BaseBranch,
		"--title", req.Title,
	}
	if req.Body != "" {
		args = append(args, "--body", req.Body)
	}
	if req.Draft {
		args = append(args, "--draft")
	}
	args = append(args, "--json", "number,url,state,isDraft,title")

	out, err := b.run(ctx, cwd, args...)
	if err != nil {
		errText := err.Error()
		if strings.Contains(errText, "already exists") {
			if number, url, ok := extractExistingPR(errText); ok {
				return pr.PullRequestInfo{}, &pr.PrAlreadyExistsError{PrNumber: number, URL: url}
			}
		}
		if strings.Contains(errText, "not pushed") || strings.Contains(errText, "has no commits") {
			return pr.PullRequestInfo{}, &pr.BranchNotPushedError{Branch: req.HeadBranch}
		}
		if strings.Contains(errText, "not found") && strings.Contains(errText, req.BaseBranch) {
			return pr.PullRequestInfo{}, &pr.TargetBranchNotFoundError{Branch: req.BaseBranch}
		}
		return pr.PullRequestInfo{}, fmt.Errorf("github api error: %w", err)
	}

	var resp ghPrCreateResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		return pr.PullRequestInfo{}, fmt.Errorf("failed to parse pr response: %w", err)
	}

	return pr.PullRequestInfo{
		Number:  resp.Number,
		URL:     resp.URL,
		State:   parseState(resp.State),
		Title:   resp.Title,
		IsDraft: resp.IsDraft,
	}, nil
}

func (b *Backend) GetPR(ctx context.Context, repo pr.RepoInfo, number int64) (pr.PullRequestInfo, error) {
	out, err := b.run(ctx, "", "pr", "view", strconv.FormatInt(number, 10),
		"--repo", repo.FullName(),
		"--json", "number,url,state,isDraft,title,mergeCommit")
	if err != nil {
		return pr.PullRequestInfo{}, err
	}

	var resp ghPrViewResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		return pr.PullRequestInfo{}, fmt.Errorf("failed to parse pr view response: %w", err)
	}

	info := pr.PullRequestInfo{
		Number:  resp.Number,
		URL:     resp.URL,
		State:   parseState(resp.State),
		Title:   resp.Title,
		IsDraft: resp.IsDraft,
	}
	if resp.MergeCommit != nil {
		info.MergeCommitSHA = resp.MergeCommit.OID
	}
	return info, nil
}

func (b *Backend) ListPRsForBranch(ctx context.Context, repo pr.RepoInfo, branch string) ([]pr.PullRequestInfo, error) {
	out, err := b.run(ctx, "", "pr", "list",
		"--repo", repo.FullName(),
		"--head", branch,
		"--json", "number,url,state,isDraft,title",
		"--state", "all")
	if err != nil {
		return nil, err
	}

	var resps []ghPrCreateResponse
	if err := json.Unmarshal([]byte(out), &resps); err != nil {
		return nil, fmt.Errorf("failed to parse pr list response: %w", err)
	}

	prs := make([]pr.PullRequestInfo, 0, len(resps))
	for _, r := range resps {
		prs = append(prs, pr.PullRequestInfo{
			Number:  r.Number,
			URL:     r.URL,
			State:   parseState(r.State),
			Title:   r.Title,
			IsDraft: r.IsDraft,
		})
	}
	return prs, nil
}

func (b *Backend) FindPRForBranch(ctx context.Context, repo pr.RepoInfo, branch string) (*pr.PullRequestInfo, error) {
	prs, err := b.ListPRsForBranch(ctx, repo, branch)
	if err != nil {
		return nil, err
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return &prs[0], nil
}

type ghUser struct {
	Login string `json:"login"`
}

type ghIssueComment struct {
	ID                int64     `json:"id"`
	Body              string    `json:"body"`
	HTMLURL           string    `json:"html_url"`
	User              ghUser    `json:"user"`
	AuthorAssociation string    `json:"author_association"`
	CreatedAt         time.Time `json:"created_at"`
}

type ghReviewComment struct {
	ID                int64     `json:"id"`
	Body              string    `json:"body"`
	HTMLURL           string    `json:"html_url"`
	User              ghUser    `json:"user"`
	AuthorAssociation string    `json:"author_association"`
	CreatedAt         time.Time `json:"created_at"`
	Path              string    `json:"path"`
	Line              *int64    `json:"line"`
	DiffHunk          string    `json:"diff_hunk"`
}

func (b *Backend) getPRComments(ctx context.Context, repo pr.RepoInfo, number int64) ([]pr.UnifiedPrComment, error) {
	endpoint := fmt.Sprintf("repos/%s/%s/issues/%d/comments", repo.Owner, repo.RepoName, number)
	out, err := b.run(ctx, "", "api", endpoint)
	if err != nil {
		return nil, err
	}
	var comments []ghIssueComment
	if err := json.Unmarshal([]byte(out), &comments); err != nil {
		return nil, fmt.Errorf("failed to parse issue comments: %w", err)
	}
	result := make([]pr.UnifiedPrComment, 0, len(comments))
	for _, c := range comments {
		result = append(result, pr.UnifiedPrComment{
			Kind:              pr.CommentGeneral,
			ID:                strconv.FormatInt(c.ID, 10),
			Author:            c.User.Login,
			AuthorAssociation: c.AuthorAssociation,
			Body:              c.Body,
			CreatedAt:         c.CreatedAt,
			URL:               c.HTMLURL,
		})
	}
	return result, nil
}

func (b *Backend) getPRReviewComments(ctx context.Context, repo pr.RepoInfo, number int64) ([]pr.UnifiedPrComment, error) {
	endpoint := fmt.Sprintf("repos/%s/%s/pulls/%d/comments", repo.Owner, repo.RepoName, number)
	out, err := b.run(ctx, "", "api", endpoint)
	if err != nil {
		return nil, err
	}
	var comments []ghReviewComment
	if err := json.Unmarshal([]byte(out), &comments); err != nil {
		return nil, fmt.Errorf("failed to parse review comments: %w", err)
	}
	result := make([]pr.UnifiedPrComment, 0, len(comments))
	for _, c := range comments {
		comment := pr.UnifiedPrComment{
			Kind:              pr.CommentReview,
			ID:                strconv.FormatInt(c.ID, 10),
			Author:            c.User.Login,
			AuthorAssociation: c.AuthorAssociation,
			Body:              c.Body,
			CreatedAt:         c.CreatedAt,
			URL:               c.HTMLURL,
			Path:              c.Path,
			DiffHunk:          c.DiffHunk,
		}
		if c.Line != nil {
			comment.Line = *c.Line
			comment.HasLine = true
		}
		result = append(result, comment)
	}
	return result, nil
}

func (b *Backend) GetAllComments(ctx context.Context, repo pr.RepoInfo, number int64) ([]pr.UnifiedPrComment, error) {
	general, err := b.getPRComments(ctx, repo, number)
	if err != nil {
		return nil, err
	}
	review, err := b.getPRReviewComments(ctx, repo, number)
	if err != nil {
		return nil, err
	}

	all := append(general, review...)
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}

func (b *Backend) GetCommentsSince(ctx context.Context, repo pr.RepoInfo, number int64, since time.Time) ([]pr.UnifiedPrComment, error) {
	all, err := b.GetAllComments(ctx, repo, number)
	if err != nil {
		return nil, err
	}
	filtered := all[:0]
	for _, c := range all {
		if c.CreatedAt.After(since) {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

type ghReview struct {
	ID    int64  `json:"id"`
	State string `json:"state"`
	User  ghUser `json:"user"`
}

func (b *Backend) GetReviewState(ctx context.Context, repo pr.RepoInfo, number int64) (pr.PrReviewState, error) {
	endpoint := fmt.Sprintf("repos/%s/%s/pulls/%d/reviews", repo.Owner, repo.RepoName, number)
	out, err := b.run(ctx, "", "api", endpoint)
	if err != nil {
		return pr.ReviewPending, err
	}
	var reviews []ghReview
	if err := json.Unmarshal([]byte(out), &reviews); err != nil {
		return pr.ReviewPending, fmt.Errorf("failed to parse reviews: %w", err)
	}

	// Find the most recent non-COMMENTED, non-PENDING review.
	var latest string
	for i := len(reviews) - 1; i >= 0; i-- {
		if reviews[i].State != "COMMENTED" && reviews[i].State != "PENDING" {
			latest = reviews[i].State
			break
		}
	}

	switch latest {
	case "APPROVED":
		return pr.ReviewApproved, nil
	case "CHANGES_REQUESTED":
		return pr.ReviewChangesRequested, nil
	case "DISMISSED":
		return pr.ReviewDismissed, nil
	default:
		return pr.ReviewPending, nil
	}
}

func (b *Backend) IsReadyToMerge(ctx context.Context, repo pr.RepoInfo, number int64) (bool, error) {
	info, err := b.GetPR(ctx, repo, number)
	if err != nil {
		return false, err
	}
	if info.State != pr.PrOpen || info.IsDraft {
		return false, nil
	}

	reviewState, err := b.GetReviewState(ctx, repo, number)
	if err != nil {
		return false, err
	}
	return reviewState == pr.ReviewApproved, nil
}

func (b *Backend) OpenInBrowser(ctx context.Context, repo pr.RepoInfo, number int64) error {
	_, err := b.run(ctx, "", "pr", "view", strconv.FormatInt(number, 10),
		"--repo", repo.FullName(), "--web")
	return err
}

var _ pr.Service = (*Backend)(nil)
