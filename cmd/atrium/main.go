package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/canopysoft/atrium/pkg/api"
	"github.com/canopysoft/atrium/pkg/audit"
	"github.com/canopysoft/atrium/pkg/config"
	"github.com/canopysoft/atrium/pkg/observability"
	"github.com/canopysoft/atrium/pkg/permissions"
	"github.com/canopysoft/atrium/pkg/principal"
	"github.com/canopysoft/atrium/pkg/roles"
	"github.com/canopysoft/atrium/pkg/routes"
	"github.com/canopysoft/atrium/pkg/session"
	"github.com/canopysoft/atrium/pkg/sso"
	"github.com/canopysoft/atrium/pkg/tenants"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := context.Background()

	// Database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Migrations
	roleStore := roles.NewStore(db)
	tenantStore := tenants.NewStore(db)
	userDirectory := principal.NewDirectory(db)
	for name, migrate := range map[string]func(context.Context) error{
		"roles":   roleStore.Migrate,
		"tenants": tenantStore.Migrate,
		"users":   userDirectory.Migrate,
	} {
		if err := migrate(ctx); err != nil {
			return fmt.Errorf("migration %s failed: %w", name, err)
		}
	}

	// Metrics and tracing
	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	// Sessions
	sessions, err := session.NewStore(session.Config{
		RedisURL:      cfg.Session.RedisURL,
		RedisPassword: cfg.Session.RedisPassword,
		TTL:           cfg.Session.TTL,
	}, metrics)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	// Permission model
	catalog := permissions.DefaultCatalog()
	if cfg.Authz.CatalogPath != "" {
		if catalog, err = permissions.LoadCatalog(cfg.Authz.CatalogPath); err != nil {
			return fmt.Errorf("failed to load permission catalog: %w", err)
		}
	}
	resolver := permissions.NewResolver(catalog, permissions.DefaultRules())

	managerOpts := []roles.ManagerOption{
		roles.WithTenantValidator(tenantStore.ValidateRef(ctx)),
	}
	if metrics != nil {
		managerOpts = append(managerOpts, roles.WithMetrics(metrics))
	}
	roleManager := roles.NewManager(roleStore, resolver, logger, managerOpts...)

	aggregator := principal.NewAggregator(roleStore, cfg.Authz.CacheSize, cfg.Authz.SnapshotTTL)

	// Route table and engine
	var table *routes.Table
	if cfg.Authz.RouteTablePath != "" {
		table, err = routes.LoadTable(cfg.Authz.RouteTablePath, catalog)
	} else {
		table, err = routes.DefaultTable()
	}
	if err != nil {
		return fmt.Errorf("failed to build route table: %w", err)
	}
	logger.WithField("routes", table.Len()).Info("route table built")

	engineOpts := []routes.EngineOption{routes.WithDenialPath(cfg.Authz.DenialPath)}
	if metrics != nil {
		engineOpts = append(engineOpts, routes.WithMetrics(metrics))
	}
	engine := routes.NewEngine(table, aggregator, logger, engineOpts...)

	// Audit sinks
	var auditors []audit.Logger
	if cfg.Audit.ToDatabase {
		dbAudit, err := audit.NewDBLogger(db)
		if err != nil {
			return fmt.Errorf("failed to initialize audit log: %w", err)
		}
		auditors = append(auditors, dbAudit)
	}
	if cfg.Audit.FilePath != "" {
		fileCfg := audit.DefaultFileLoggerConfig()
		fileCfg.BasePath = cfg.Audit.FilePath
		fileAudit, err := audit.NewFileLogger(fileCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize file audit log: %w", err)
		}
		auditors = append(auditors, fileAudit)
	}
	var auditor audit.Logger = audit.NopLogger{}
	if len(auditors) == 1 {
		auditor = auditors[0]
	} else if len(auditors) > 1 {
		auditor = audit.NewMultiLogger(auditors...)
	}
	if len(auditors) > 0 {
		// keep audit writes off the request path
		auditor = audit.NewAsyncLogger(auditor, 2, logger)
	}

	// SSO
	var identity api.IdentityExchanger = disabledSSO{}
	if cfg.SSO.Enabled {
		provider, err := sso.NewProvider(ctx, sso.Config{
			IssuerURL:    cfg.SSO.IssuerURL,
			ClientID:     cfg.SSO.ClientID,
			ClientSecret: cfg.SSO.ClientSecret,
			RedirectURL:  cfg.SSO.RedirectURL,
			Scopes:       cfg.SSO.Scopes,
			TenantClaim:  cfg.SSO.TenantClaim,
			RolesClaim:   cfg.SSO.RolesClaim,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize SSO provider: %w", err)
		}
		identity = provider
	} else {
		logger.Warn("SSO is disabled; login endpoints will reject all attempts")
	}

	server := api.NewServer(api.Dependencies{
		Roles:      roleManager,
		RoleFinder: roleStore,
		Catalog:    catalog,
		Resolver:   resolver,
		Engine:     engine,
		Tenants:    tenantStore,
		Sessions:   sessions,
		SSO:        identity,
		Users:      userDirectory,
		Cache:      aggregator,
		Auditor:    auditor,
		Logger:     logger,

		EditSessionTTL: cfg.Authz.EditSessionTTL,
	})

	// Portal pages sit behind the route guard on the same router
	server.Router().PathPrefix("/").Handler(
		routes.Guard(engine)(http.HandlerFunc(servePortalShell)))

	var appHandler http.Handler = server
	if metrics != nil {
		appHandler = metrics.HTTPMiddleware(appHandler)
	}
	if cfg.Observability.OTelEnabled {
		appHandler = otelhttp.NewHandler(appHandler, "atrium")
	}

	appServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      appHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux,
		observability.NewHealthChecker(db, sessions.Client()))
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, appServer, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return sessions.Close()
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return auditor.Close()
	})
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("portal server listening on %s", appServer.Addr)
		if err := appServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return shutdown.WaitForShutdown()
	})

	return g.Wait()
}

// disabledSSO rejects the login flow when no identity provider is configured
type disabledSSO struct{}

func (disabledSSO) InitiateLogin(w http.ResponseWriter, r *http.Request, state string) {
	http.Error(w, "single sign-on is not configured", http.StatusServiceUnavailable)
}

func (disabledSSO) HandleCallback(ctx context.Context, code string) (*sso.Identity, error) {
	return nil, fmt.Errorf("single sign-on is not configured")
}

// servePortalShell answers guarded page routes. The SPA bundle is served by
// the CDN in production; this shell only backs direct navigation in
// single-binary deployments.
func servePortalShell(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!DOCTYPE html><html><head><title>Atrium</title></head><body><div id="root"></div></body></html>`)
}
