package cli

import (
	"bufio"
	"context"
	"os"

	"github.com/inkwellapp/inkwell/internal/config"
	"github.com/inkwellapp/inkwell/internal/cryptox"
	"github.com/inkwellapp/inkwell/internal/logging"
	"github.com/inkwellapp/inkwell/internal/repositories"
	"github.com/inkwellapp/inkwell/internal/services"
	"github.com/inkwellapp/inkwell/internal/webauthn"
)

// App wires the journal services to the terminal REPL. It owns the database
// handle and the session lifecycle for the lifetime of the process.
type App struct {
	config  *config.Config
	session *services.SessionService
	entries *services.EntryService
	repos   *repositories.Repositories
	log     logging.Logger
	reader  *bufio.Reader
	out     *os.File
}

// NewApp opens (and migrates) the journal database and assembles the service
// graph. The terminal has no platform authenticator bridge, so biometric
// commands report unavailable.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	repos, err := repositories.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "path", cfg.DatabasePath)
		return nil, err
	}

	keySession := cryptox.NewSession()
	es := services.NewEntryService(repos.Entries, repos.Photos, keySession, log)
	es.UseAtomicPurge(repos.PurgeEntry)
	adapter := webauthn.NewAdapter(ctx, webauthn.Unsupported(), log)
	ss := services.NewSessionService(repos.Settings, es, adapter, keySession, log)

	if err := ss.Initialize(ctx); err != nil {
		return nil, err
	}

	return &App{
		config:  cfg,
		session: ss,
		entries: es,
		repos:   repos,
		log:     log,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

// Run purges expired trash and enters the REPL until EOF or exit.
func (a *App) Run(ctx context.Context) {
	defer a.repos.DB.Close()

	if a.isUnlocked() {
		if n, err := a.entries.CleanupTrash(ctx, a.config.TrashRetentionDays()); err == nil && n > 0 {
			a.log.Info(ctx, "purged expired trash", "count", n)
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)

	a.session.Lock()
}

func (a *App) isUnlocked() bool {
	return a.session.State() == services.StateUnlocked
}

func (a *App) status() string {
	st := a.session.Status()
	switch {
	case st.RequiresSetup:
		return "setup required"
	case st.IsLocked:
		return "locked"
	default:
		return "unlocked"
	}
}
