package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/adminguard"
	adminguardPostgres "github.com/frahmantamala/access-management/internal/adminguard/postgres"
	"github.com/frahmantamala/access-management/internal/auth"
	"github.com/frahmantamala/access-management/internal/core/db"
	"github.com/frahmantamala/access-management/internal/core/events"
	"github.com/frahmantamala/access-management/internal/permission"
	permissionPostgres "github.com/frahmantamala/access-management/internal/permission/postgres"
	"github.com/frahmantamala/access-management/internal/session"
	sessionPostgres "github.com/frahmantamala/access-management/internal/session/postgres"
	"github.com/frahmantamala/access-management/internal/session/redisstore"
	"github.com/frahmantamala/access-management/internal/transport"
	"github.com/frahmantamala/access-management/internal/transport/rest"
	"github.com/frahmantamala/access-management/internal/user"
	userPostgres "github.com/frahmantamala/access-management/internal/user/postgres"
	"github.com/frahmantamala/access-management/pkg/logger"
	"github.com/frahmantamala/access-management/pkg/metrics"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var runCleanup bool

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func init() {
	httpServerCmd.Flags().BoolVar(&runCleanup, "cleanup", true, "run the session cleanup scheduler inside the server")
}

// Dependencies holds every long-lived collaborator of the process.
type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Redis    *redis.Client
	EventBus *events.EventBus
	Logger   *slog.Logger

	Registry   *permission.Registry
	Permission *permission.Service
	Session    *session.Service
	AllowList  *adminguard.Service
	User       *user.Service
	Auth       *auth.Service
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	router := chi.NewRouter()
	setupRoutes(router, deps)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runCleanup {
		cfg := deps.Config.Sessions
		scheduler := session.NewScheduler(deps.Session, cfg.CleanupInterval, cfg.InactivityTimeout, deps.Logger)
		go scheduler.Run(ctx)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		deps.Logger.Info("Received signal, shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(router *chi.Mux, deps *Dependencies) {
	cfg := deps.Config
	base := transport.NewBaseHandler(deps.Logger)

	if cfg.Observability.Metrics.Enabled {
		metrics.Init()
	}

	authHandler := auth.NewHandler(base, deps.Auth)
	rest.RegisterAllRoutes(router, rest.Handlers{
		Health:     rest.NewHealthHandler(deps.DB, deps.Redis),
		Auth:       authHandler,
		Authz:      auth.NewAuthorization(base, deps.Permission),
		User:       user.NewHandler(base, deps.User),
		Permission: permission.NewHandler(base, deps.Permission, deps.Registry),
		Session:    session.NewHandler(base, deps.Session),
		AllowList:  adminguard.NewHandler(base, deps.AllowList),
		Guard:      adminguard.NewGuard(base, deps.AllowList, cfg.Security.AdminURLPrefix, cfg.Security.AdminIPRestriction),
	}, rest.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Headers:        cfg.Security.Headers,
		MetricsEnabled: cfg.Observability.Metrics.Enabled,
		MetricsPath:    cfg.Observability.Metrics.Path,
	}, deps.Logger)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	sqlDB, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	redisClient, err := initRedis(config.Redis)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	eventBus := events.NewEventBus(lg)
	eventBus.SubscribeAll(events.AuditLogHandler(lg), events.SecurityEventTypes...)

	tx := db.NewTransactionManager(gormDB)
	registry := newRegistry(gormDB, config.Permissions)

	permissionService := permission.NewService(permissionPostgres.NewPermissionRepository(gormDB), tx, eventBus, lg)
	webSessions := redisstore.New(redisClient, config.Sessions.KeyPrefix, config.Sessions.TTL)
	sessionService := session.NewService(sessionPostgres.NewSessionRepository(gormDB), tx, webSessions, eventBus, lg)
	allowListService := adminguard.NewService(adminguardPostgres.NewAllowListRepository(gormDB), tx, eventBus, lg)
	userService := user.NewService(userPostgres.NewUserRepository(gormDB), tx, permissionService, sessionService, eventBus, lg, config.Security.BCryptCost)

	tokens := auth.NewJWTTokenGenerator(
		config.Security.AccessTokenSecret,
		config.Security.RefreshTokenSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(userService, sessionService, tokens, lg)

	return &Dependencies{
		Config:     config,
		DB:         sqlDB,
		Gorm:       gormDB,
		Redis:      redisClient,
		EventBus:   eventBus,
		Logger:     lg,
		Registry:   registry,
		Permission: permissionService,
		Session:    sessionService,
		AllowList:  allowListService,
		User:       userService,
		Auth:       authService,
	}, nil
}

func (d *Dependencies) Close() {
	if err := d.Redis.Close(); err != nil {
		d.Logger.Error("Redis close error", "error", err)
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

// newRegistry registers users, roles and every configured object type.
func newRegistry(gormDB *gorm.DB, cfg internal.PermissionsConfig) *permission.Registry {
	registry := permission.NewRegistry()
	registry.Register(permission.UserTargetType, permission.TableResolver(gormDB, "users", "id"))
	registry.Register(permission.RoleTargetType, permission.TableResolver(gormDB, "roles", "id"))
	for label, table := range cfg.ObjectTypes {
		registry.Register(label, permission.TableResolver(gormDB, table, "id"))
	}
	return registry
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbConn, nil
}

// initGorm shares the sqlx connection pool with gorm.
func initGorm(sqlDB *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB.DB}), &gorm.Config{
		TranslateError: true,
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}

func initRedis(cfg internal.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}
