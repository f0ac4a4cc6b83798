// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tomtom215/gatehouse/internal/api"
	"github.com/tomtom215/gatehouse/internal/auth"
	"github.com/tomtom215/gatehouse/internal/authz"
	"github.com/tomtom215/gatehouse/internal/config"
	"github.com/tomtom215/gatehouse/internal/logging"
	"github.com/tomtom215/gatehouse/internal/routes"
	"github.com/tomtom215/gatehouse/internal/supervisor"
	"github.com/tomtom215/gatehouse/internal/supervisor/services"
	"github.com/tomtom215/gatehouse/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Service:   "gatehouse",
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Gatehouse stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

//nolint:gocyclo // sequential setup steps
func run(cfg *config.Config) error {
	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("session_store", cfg.Session.Store).
		Str("account_store", cfg.Database.Driver).
		Str("audit_store", cfg.Audit.Store).
		Bool("audit_enabled", cfg.Audit.Enabled).
		Msg("Starting Gatehouse")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Session store
	sessionFactory, err := auth.NewSessionStoreFactory(ctx, cfg.Session, cfg.Redis)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer func() {
		if err := sessionFactory.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()
	sessions := sessionFactory.CreateStore()
	logging.Info().Str("type", string(sessionFactory.Type())).Msg("Session store ready")

	// Account store
	accountStore, closeAccounts, err := openAccountStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("account store: %w", err)
	}
	defer closeAccounts()

	// Role permissions
	enforcer, err := authz.NewEnforcer(ctx, &authz.EnforcerConfig{
		ModelPath:    cfg.Casbin.ModelPath,
		PolicyPath:   cfg.Casbin.PolicyPath,
		CacheEnabled: cfg.Casbin.CacheEnabled,
		CacheTTL:     cfg.Casbin.CacheTTL,
	})
	if err != nil {
		return fmt.Errorf("authorization policy: %w", err)
	}
	defer enforcer.Close()

	secret := cfg.Security.SessionSecret
	if secret == "" {
		// Validation only lets this through in development.
		secret = rand.Text() + rand.Text()
		logging.Warn().Msg("SESSION_SECRET not set, using an ephemeral secret; sessions end on restart")
	}
	tokens, err := auth.NewTokenSigner(secret, cfg.Session.MaxLifetime)
	if err != nil {
		return fmt.Errorf("token signer: %w", err)
	}

	authorizer := auth.NewAuthorizer(
		tokens,
		sessions,
		accountStore,
		enforcer,
		auth.NewCredentialReader(auth.CredentialConfigFromSession(cfg.Session)),
		auth.AuthorizerConfig{
			SessionTTL:      cfg.Session.TTL,
			RefreshFraction: cfg.Session.RefreshFraction,
			Timeout:         cfg.Security.AuthorizeTimeout,
		},
	)

	// Action log
	auditLogger, closeAudit, err := openAuditLogger(ctx, cfg)
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	defer closeAudit()

	runner := tasks.NewRunner(tasks.Config{
		Workers:      cfg.Tasks.Workers,
		QueueSize:    cfg.Tasks.QueueSize,
		TaskTimeout:  cfg.Tasks.TaskTimeout,
		DrainTimeout: cfg.Tasks.DrainTimeout,
	})

	table, err := routes.Load(cfg.Routes.Path, routes.Options{Locales: cfg.Routes.Locales})
	if err != nil {
		return fmt.Errorf("route table: %w", err)
	}
	logging.Info().Int("routes", table.Len()).Msg("Route table loaded")

	modules := &api.Modules{
		Authorizer: authorizer,
		Accounts:   accountStore,
		Sessions:   sessions,
		Audit:      auditLogger,
		Tasks:      runner,
		Security:   logging.NewSecurityLogger(),
		Config:     cfg,
	}
	pipeline := api.NewPipeline(table, modules)
	router := api.NewRouter(
		pipeline,
		api.NewHandler(modules),
		api.NewChiMiddleware(api.ChiMiddlewareConfigFromConfig(cfg)),
		nil,
	)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: cfg.Server.Timeout,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}
	if auditLogger != nil {
		tree.AddBackgroundService(services.NewAuditWriterService(auditLogger))
	}
	tree.AddBackgroundService(services.NewTaskRunnerService(runner))
	tree.AddBackgroundService(services.NewSessionCleanupService(sessions, cfg.Session.CleanupInterval))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for services to stop")
		serveErr = <-errCh
	case serveErr = <-errCh:
	}
	stop()

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	return nil
}
