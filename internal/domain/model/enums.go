package model

import "fmt"

// BuildStatus is the summarized CI state of a repository's latest commit.
// Values are ordered by severity so the worst status compares greatest:
// BuildStatusNone < BuildStatusSuccess < BuildStatusInProgress < BuildStatusFailure.
type BuildStatus int

const (
	// BuildStatusNone means no status is known yet. It is the zero value and
	// the identity element when reducing with Max.
	BuildStatusNone BuildStatus = iota
	BuildStatusSuccess
	BuildStatusInProgress
	BuildStatusFailure
)

// String returns the canonical lowercase form stored in the cache.
// BuildStatusNone renders as the empty string.
func (s BuildStatus) String() string {
	switch s {
	case BuildStatusSuccess:
		return "success"
	case BuildStatusInProgress:
		return "in_progress"
	case BuildStatusFailure:
		return "failure"
	default:
		return ""
	}
}

// Known reports whether the status carries a value.
func (s BuildStatus) Known() bool {
	return s != BuildStatusNone
}

// ParseBuildStatus parses a canonical status string.
func ParseBuildStatus(s string) (BuildStatus, error) {
	switch s {
	case "success":
		return BuildStatusSuccess, nil
	case "in_progress":
		return BuildStatusInProgress, nil
	case "failure":
		return BuildStatusFailure, nil
	default:
		return BuildStatusNone, fmt.Errorf("unexpected build status %q", s)
	}
}

// MaxBuildStatus returns the more severe of a and b.
func MaxBuildStatus(a, b BuildStatus) BuildStatus {
	if b > a {
		return b
	}
	return a
}
