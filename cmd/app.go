package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/browser"
	"github.com/xkilldash9x/feedpilot/internal/config"
	"github.com/xkilldash9x/feedpilot/internal/humanoid"
	"github.com/xkilldash9x/feedpilot/internal/ledger"
	"github.com/xkilldash9x/feedpilot/internal/llmclient"
	"github.com/xkilldash9x/feedpilot/internal/store"
)

const shutdownTimeout = 20 * time.Second

// auditStore is the part of the store the commands use.
type auditStore interface {
	schemas.AuditSink
	RecentRuns(ctx context.Context, limit int) ([]schemas.CampaignReport, error)
	Close()
}

// browserOpener starts Chrome and returns one tab plus the function that tears it down.
type browserOpener func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (browser.AuthPage, func(context.Context) error, error)

// app holds the loaded configuration and the factories commands build
// components from. Tests replace the factories.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger

	openBrowser browserOpener
	openLLM     func(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error)
	openStore   func(ctx context.Context, url string, logger *zap.Logger) (auditStore, error)
	newPacer    func(cfg config.HumanoidConfig, logger *zap.Logger) *humanoid.Humanoid
}

func newApp() *app {
	return &app{
		openBrowser: openChrome,
		openLLM: func(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
			return llmclient.NewClient(ctx, cfg, logger)
		},
		openStore: func(ctx context.Context, url string, logger *zap.Logger) (auditStore, error) {
			return store.Connect(ctx, url, logger)
		},
		newPacer: func(cfg config.HumanoidConfig, logger *zap.Logger) *humanoid.Humanoid {
			return humanoid.New(cfg, logger)
		},
	}
}

// openChrome is the production browserOpener.
func openChrome(ctx context.Context, cfg *config.Config, logger *zap.Logger) (browser.AuthPage, func(context.Context) error, error) {
	mgr := browser.NewManager(cfg.Browser(), logger)
	sess, err := mgr.NewSession(ctx)
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(browser.Detach(ctx), shutdownTimeout)
		defer cancel()
		return nil, nil, errors.Join(fmt.Errorf("failed to start browser: %w", err), mgr.Shutdown(shutdownCtx))
	}
	return sess, mgr.Shutdown, nil
}

// workspace is everything a browser-driven command shares.
type workspace struct {
	cfg    *config.Config
	logger *zap.Logger
	pacer  *humanoid.Humanoid
	ledger *ledger.Ledger
	audit  auditStore
	page   browser.AuthPage

	closers []func(context.Context) error
}

// openWorkspace wires the audit mirror, the ledger and a logged-in browser tab.
// The returned workspace must be closed even when err is non-nil.
func (a *app) openWorkspace(ctx context.Context) (*workspace, error) {
	ws := &workspace{
		cfg:    a.cfg,
		logger: a.logger,
		pacer:  a.newPacer(a.cfg.Humanoid(), a.logger),
	}

	var ledgerOpts []ledger.Option
	if url := a.cfg.Database().URL; url != "" {
		s, err := a.openStore(ctx, url, a.logger)
		if err != nil {
			a.logger.Warn("Audit database unavailable; continuing with the local ledger only.", zap.Error(err))
		} else {
			ws.audit = s
			ledgerOpts = append(ledgerOpts, ledger.WithMirror(s))
			ws.closers = append(ws.closers, func(context.Context) error { s.Close(); return nil })
		}
	}

	historyPath, err := a.cfg.Paths().Resolve(a.cfg.Paths().HistoryFile)
	if err != nil {
		return ws, err
	}
	ws.ledger = ledger.Open(historyPath, a.logger, ledgerOpts...)

	page, shutdown, err := a.openBrowser(ctx, a.cfg, a.logger)
	if err != nil {
		return ws, err
	}
	ws.page = page
	ws.closers = append(ws.closers, shutdown)

	auth, err := browser.NewAuthenticator(a.cfg, a.logger)
	if err != nil {
		return ws, err
	}
	if err := auth.EnsureLoggedIn(ctx, page); err != nil {
		return ws, fmt.Errorf("login failed: %w", err)
	}
	return ws, nil
}

// Close releases resources in reverse order of acquisition.
func (ws *workspace) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(browser.Detach(ctx), shutdownTimeout)
	defer cancel()
	for i := len(ws.closers) - 1; i >= 0; i-- {
		if err := ws.closers[i](shutdownCtx); err != nil {
			ws.logger.Warn("Error during shutdown", zap.Error(err))
		}
	}
	ws.closers = nil
}

// auditSink returns the mirror as a sink, or nil when there is none.
func (ws *workspace) auditSink() schemas.AuditSink {
	if ws.audit == nil {
		return nil
	}
	return ws.audit
}

// offlineLLM stands in for the model when it cannot be reached.
type offlineLLM struct{ cause error }

var _ schemas.LLMClient = offlineLLM{}

func (o offlineLLM) Generate(context.Context, schemas.GenerationRequest) (string, error) {
	return "", fmt.Errorf("language model unavailable: %w", o.cause)
}

func (offlineLLM) Close() error { return nil }
