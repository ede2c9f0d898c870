package application

import "github.com/ericfisherdev/shub/internal/domain/model"

// RunBuildStatus maps a single check run to its contribution to the build
// status. Queued runs contribute nothing. Unrecognized statuses are treated
// as failures.
func RunBuildStatus(run model.CheckRun) model.BuildStatus {
	switch run.Status {
	case model.CheckStatusQueued:
		return model.BuildStatusNone
	case model.CheckStatusInProgress:
		return model.BuildStatusInProgress
	case model.CheckStatusCompleted:
		if run.Conclusion == model.CheckConclusionSuccess {
			return model.BuildStatusSuccess
		}
		return model.BuildStatusFailure
	default:
		return model.BuildStatusFailure
	}
}

// ReduceBuildStatus combines check runs into the worst observed status.
// Priority: failure > in progress > success. Returns BuildStatusNone when
// runs is empty or every run is still queued.
func ReduceBuildStatus(runs []model.CheckRun) model.BuildStatus {
	status := model.BuildStatusNone
	for _, run := range runs {
		status = model.MaxBuildStatus(status, RunBuildStatus(run))
	}
	return status
}
