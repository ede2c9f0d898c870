package driven

import (
	"context"

	"github.com/ericfisherdev/shub/internal/domain/model"
)

// DashboardPrinter renders the dashboard, one line per repository.
type DashboardPrinter interface {
	PrintDashboard(repos []model.Repository) error
}

// Cloner clones a remote repository into a local directory.
type Cloner interface {
	Clone(ctx context.Context, url, dir string) error
}

// Browser opens a URL for the user.
type Browser interface {
	Browse(url string) error
}
