package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/quotekeeper/internal/client/auth"
	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/client/repair"
	"github.com/dmitrijs2005/quotekeeper/internal/client/services"
	"github.com/dmitrijs2005/quotekeeper/internal/client/syncer"
	"github.com/dmitrijs2005/quotekeeper/internal/logging"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

// SessionManager stores and resolves the session token.
type SessionManager interface {
	auth.SessionSource
	Login(ctx context.Context, token string) (*auth.Session, error)
	Logout(ctx context.Context) error
}

// SyncRunner is the part of the sync engine the CLI drives.
type SyncRunner interface {
	SyncAll(ctx context.Context) ([]syncer.Result, error)
	Migrate(ctx context.Context, entity models.EntityType) (int, error)
}

// RepairRunner runs the post-sync repair pass.
type RepairRunner interface {
	Run(ctx context.Context) (repair.Summary, error)
	NeedsRepair(ctx context.Context) (bool, error)
}

// Pinger checks whether the remote store is reachable.
type Pinger func(ctx context.Context) error

// Deps are the components an App drives.
type Deps struct {
	Sessions  SessionManager
	Syncer    SyncRunner
	Repairer  RepairRunner
	Records   *services.RecordService
	Quotes    *services.QuoteService
	Templates *services.TemplateService
	Ping      Pinger
	Logger    logging.Logger
}

type App struct {
	Deps

	mu   sync.Mutex
	mode Mode

	// syncMu keeps a manual sync and a scheduled one from interleaving
	// their migrate/sync/repair sequence.
	syncMu sync.Mutex

	scanner *bufio.Scanner
	out     io.Writer
}

func NewApp(d Deps) *App {
	if d.Logger == nil {
		d.Logger = logging.NewNop()
	}
	d.Logger = logging.Module(d.Logger, "cli")
	return &App{
		Deps:    d,
		mode:    ModeOffline,
		scanner: bufio.NewScanner(os.Stdin),
		out:     os.Stdout,
	}
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()
	if changed {
		a.Logger.Info(ctx, "connectivity changed", "mode", mode)
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) session(ctx context.Context) *auth.Session {
	s, err := a.Sessions.Session(ctx)
	if err != nil {
		a.Logger.Warn(ctx, "session unavailable", "error", err)
		return nil
	}
	return s
}

func (a *App) isLoggedIn() bool {
	return a.session(context.Background()) != nil
}

func (a *App) getStatus() string {
	s := ""
	if sess := a.session(context.Background()); sess != nil {
		s = sess.OwnerID + " "
	}
	s += string(a.Mode())
	return fmt.Sprintf("(%s)", s)
}

// checkOnline pings the remote once and updates the mode.
func (a *App) checkOnline(ctx context.Context) {
	if a.Ping == nil {
		a.setMode(ctx, ModeDisabled)
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.Ping(pctx); err != nil {
		a.setMode(ctx, ModeOffline)
		return
	}
	a.setMode(ctx, ModeOnline)
}

// StartOnlineStatusWatcher pings the remote every interval until ctx ends.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	a.checkOnline(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Run starts the REPL on stdin and blocks until the user exits or ctx ends.
func (a *App) Run(ctx context.Context) {
	a.printf("Welcome to QuoteKeeper CLI (type 'help' for commands)\n")
	if a.Repairer != nil {
		if need, err := a.Repairer.NeedsRepair(ctx); err == nil && need {
			a.printf("Some assemblies reference missing items; run 'repair'\n")
		}
	}
	runREPL(ctx, a, a.getStatus, a.scanner)
}
