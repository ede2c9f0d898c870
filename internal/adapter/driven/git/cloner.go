// Package git implements the Cloner port by running the git binary.
package git

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ericfisherdev/shub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Cloner = (*Cloner)(nil)

// Cloner clones repositories with `git clone`.
type Cloner struct {
	binary string
}

// NewCloner creates a Cloner that runs the git binary found on PATH.
func NewCloner() *Cloner {
	return &Cloner{binary: "git"}
}

// Clone clones url into dir. The parent directory is created when missing.
// Cloning into an existing non-empty directory fails in git itself.
func (c *Cloner) Clone(ctx context.Context, url, dir string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", dir, err)
	}

	slog.Debug("git clone", "url", url, "dir", dir)

	if err := c.run(ctx, "", "clone", url, dir); err != nil {
		return fmt.Errorf("clone %s: %w", url, err)
	}
	return nil
}

func (c *Cloner) run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
