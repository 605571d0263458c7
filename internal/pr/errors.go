package pr

import "fmt"

// Sentinel errors for CreatePR failures that callers branch on, mirroring
// the original implementation's CreatePrError variants that carry no data.
var (
	ErrGithubCliNotInstalled  = fmt.Errorf("gh CLI is not installed")
	ErrGithubCliNotLoggedIn   = fmt.Errorf("gh CLI is not authenticated")
	ErrGitCliNotInstalled     = fmt.Errorf("git CLI is not installed")
	ErrGitRemoteNotConfigured = fmt.Errorf("git remote is not configured")
)

// TargetBranchNotFoundError reports that CreatePR's base branch does not
// exist on the remote.
type TargetBranchNotFoundError struct {
	Branch string
}

func (e *TargetBranchNotFoundError) Error() string {
	return fmt.Sprintf("target branch not found: %s", e.Branch)
}

// BranchNotPushedError reports that the head branch has no commits on the
// remote yet.
type BranchNotPushedError struct {
	Branch string
}

func (e *BranchNotPushedError) Error() string {
	return fmt.Sprintf("branch not pushed to remote: %s", e.Branch)
}

// PrAlreadyExistsError reports that gh refused to create a duplicate PR for
// the branch pair, and (when recoverable from gh's error text) the existing
// PR's number and URL.
type PrAlreadyExistsError struct {
	PrNumber int64
	URL      string
}

func (e *PrAlreadyExistsError) Error() string {
	return fmt.Sprintf("pull request already exists: #%d %s", e.PrNumber, e.URL)
}
