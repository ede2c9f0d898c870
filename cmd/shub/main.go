package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/cli/go-gh/v2/pkg/term"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for minimal containers

	browseradapter "github.com/ericfisherdev/shub/internal/adapter/driven/browser"
	gitadapter "github.com/ericfisherdev/shub/internal/adapter/driven/git"
	githubadapter "github.com/ericfisherdev/shub/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/shub/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/shub/internal/adapter/driven/terminal"
	"github.com/ericfisherdev/shub/internal/adapter/driving/cli"
	"github.com/ericfisherdev/shub/internal/application"
	"github.com/ericfisherdev/shub/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// defaultWidth is used for tables when the terminal size is unknown.
const defaultWidth = 80

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// 2. Logging goes to stderr so stdout stays scriptable.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	slog.Debug("config loaded",
		"db_path", cfg.DBPath,
		"workspace", cfg.WorkspaceHome,
		"concurrency", cfg.Concurrency,
		"github_username", cfg.GitHubUsername,
		"token_source", cfg.TokenSource,
	)

	// 3. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Terminal output.
	t := term.FromEnv()
	isTTY := t.IsTerminalOutput()
	width := defaultWidth
	if isTTY {
		if w, _, err := t.Size(); err == nil && w > 0 {
			width = w
		}
	}
	printer := terminal.NewPrinter(t.Out(), isTTY, width)

	w := &wiring{cfg: cfg, printer: printer, out: t.Out(), errOut: t.ErrOut(), isTTY: isTTY}
	defer w.close()

	// 5. Services are built on first use so usage errors and purely local
	// commands never open the cache or call the API.
	services := sync.OnceValues(func() (*cli.Services, error) {
		return w.build(ctx)
	})

	root := cli.NewRootCmd(func(context.Context) (*cli.Services, error) {
		return services()
	}, version)

	return root.ExecuteContext(ctx)
}

// wiring owns the adapters built for a command run.
type wiring struct {
	cfg     *config.Config
	printer *terminal.Printer
	out     io.Writer
	errOut  io.Writer
	isTTY   bool

	db *sqliteadapter.DB
}

func (w *wiring) build(ctx context.Context) (*cli.Services, error) {
	// Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, w.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	w.db = db
	slog.Debug("database opened", "path", w.cfg.DBPath)

	// Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return nil, err
	}

	// Create GitHub client.
	if !w.cfg.HasGitHubToken() {
		slog.Warn("no GitHub token found, requests are anonymous; set SHUB_TOKEN or run gh auth login")
	}
	ghClient := githubadapter.NewClient(w.cfg.GitHubToken)

	username := w.cfg.GitHubUsername
	if username == "" && w.cfg.HasGitHubToken() {
		username, err = ghClient.AuthenticatedUser(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving username (set SHUB_USERNAME to skip): %w", err)
		}
		slog.Debug("username resolved", "username", username)
	}

	repoStore := sqliteadapter.NewRepoRepo(db)
	cloner := gitadapter.NewCloner()
	browser := browseradapter.New("", w.out, w.errOut)

	svc := &cli.Services{
		Dashboard: application.NewDashboardService(ghClient, repoStore, w.printer, username, w.cfg.Concurrency),
		Repos:     application.NewRepositoryService(ghClient, cloner, browser, username, w.cfg.WorkspaceHome, w.cfg.Concurrency),
		Activity:  application.NewActivityService(ghClient, w.cfg.Concurrency),
		Printer:   w.printer,
	}
	if w.isTTY {
		svc.Clear = func() { fmt.Fprint(w.out, "\x1b[H\x1b[2J") }
	}

	return svc, nil
}

func (w *wiring) close() {
	if w.db == nil {
		return
	}
	if err := w.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
