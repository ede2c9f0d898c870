package model

import (
	"fmt"
	"time"
)

// Check run status values reported by the GitHub Checks API.
const (
	CheckStatusQueued     = "queued"
	CheckStatusInProgress = "in_progress"
	CheckStatusCompleted  = "completed"
)

// CheckConclusionSuccess is the only conclusion counted as a passing run.
const CheckConclusionSuccess = "success"

// CheckRun represents an individual CI/CD check run from the GitHub Checks API.
// Check runs are transient and never persisted.
type CheckRun struct {
	ID          int64     // GitHub check run ID.
	Name        string    // Check run name (e.g., "build", "lint").
	Status      string    // queued, in_progress, completed.
	Conclusion  string    // success, failure, neutral, ... Empty until completed.
	DetailsURL  string    // URL to the check run details page.
	StartedAt   time.Time // When the check run started.
	CompletedAt time.Time // Zero if not yet completed.
}

// Commit is the subset of a commit needed to look up its check runs.
type Commit struct {
	SHA     string
	Message string
	Author  string
	Date    time.Time
}

// WorkflowRun is a GitHub Actions workflow run, used for bulk deletion.
type WorkflowRun struct {
	ID         int64
	Name       string
	Status     string
	Conclusion string
	CreatedAt  time.Time
}

// String identifies the run in logs and errors.
func (r WorkflowRun) String() string {
	return fmt.Sprintf("run %d", r.ID)
}
