// Package browser implements the Browser port with the GitHub CLI's browser
// launcher, which honors GH_BROWSER and BROWSER.
package browser

import (
	"io"

	ghbrowser "github.com/cli/go-gh/v2/pkg/browser"

	"github.com/ericfisherdev/shub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Browser = (*Browser)(nil)

// Browser opens URLs in the user's web browser.
type Browser struct {
	launcher *ghbrowser.Browser
}

// New creates a Browser. launcher overrides the configured browser command
// when non-empty. Launcher output goes to stdout and stderr.
func New(launcher string, stdout, stderr io.Writer) *Browser {
	return &Browser{launcher: ghbrowser.New(launcher, stdout, stderr)}
}

// Browse opens url.
func (b *Browser) Browse(url string) error {
	return b.launcher.Browse(url)
}
