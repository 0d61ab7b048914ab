package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/rickspace/authgate/internal/auth"
	"github.com/rickspace/authgate/internal/clock"
	"github.com/rickspace/authgate/internal/config"
	"github.com/rickspace/authgate/internal/database"
	"github.com/rickspace/authgate/internal/handler"
	"github.com/rickspace/authgate/internal/logger"
	"github.com/rickspace/authgate/internal/metrics"
	"github.com/rickspace/authgate/internal/middleware"
	"github.com/rickspace/authgate/internal/repository"
	"github.com/rickspace/authgate/internal/security"
	"github.com/rickspace/authgate/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "3631"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("store_backend", cfg.StoreBackend),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// storeConn はバックエンドごとのストア接続。
type storeConn struct {
	store repository.DocumentStore
	db    *sql.DB // postgres以外ではnil
	close func() error
}

// openStore はSTORE_BACKENDに応じたDocumentStoreを開き、疎通を確認する。
func openStore(ctx context.Context, cfg *config.Config) (*storeConn, error) {
	var conn *storeConn

	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		conn = &storeConn{store: repository.NewPostgresDocumentStore(db), db: db, close: db.Close}

	case config.StoreBackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		conn = &storeConn{store: repository.NewRedisDocumentStore(client), close: client.Close}

	case config.StoreBackendMemory:
		slog.Warn("using in-memory store, sessions will not survive a restart")
		conn = &storeConn{store: repository.NewMemoryDocumentStore(), close: func() error { return nil }}

	default:
		return nil, fmt.Errorf("unsupported store backend: %q", cfg.StoreBackend)
	}

	conn.store = repository.WithTimeout(conn.store, cfg.StoreTimeout)

	if err := conn.store.Ping(ctx); err != nil {
		conn.close()
		return nil, fmt.Errorf("failed to connect to %s store: %w", cfg.StoreBackend, err)
	}

	slog.Info("store connection established", slog.String("backend", cfg.StoreBackend))
	return conn, nil
}

// newRegistry はプロセス・Goランタイムのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// buildRouter は全依存関係をワイヤリングしてルーターを構築する。
// 返されるRateLimiterはサーバー停止時にStopすること。
func buildRouter(cfg *config.Config, store repository.DocumentStore, reg *prometheus.Registry) (http.Handler, *middleware.RateLimiter, error) {
	collector := metrics.NewCollector(reg)

	// 1. リポジトリの初期化
	userRepo := repository.NewDocumentUserRepo(store)
	sessionRepo := repository.NewDocumentSessionRepo(store)

	// 2. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	if err := ssrfGuard.ValidateEndpoint(cfg.DiscordAPIBaseURL); err != nil {
		return nil, nil, fmt.Errorf("invalid DISCORD_API_BASE_URL: %w", err)
	}

	// 3. ドメインサービスの初期化
	oauthProvider := auth.NewDiscordOAuthProvider(auth.DiscordOAuthConfig{
		ClientID:     cfg.DiscordClientID,
		ClientSecret: cfg.DiscordClientSecret,
		RedirectURL:  cfg.DiscordRedirectURI,
		APIBaseURL:   cfg.DiscordAPIBaseURL,
		HTTPClient:   ssrfGuard.NewSafeClient(cfg.ProviderTimeout),
		Metrics:      collector,
	})
	sessions := auth.NewSessionManager(
		sessionRepo, userRepo, clock.Real{},
		time.Duration(cfg.SessionMaxAge)*time.Second,
	)
	authService := auth.NewService(oauthProvider, userRepo, sessions, security.NewProfileSanitizer(), collector)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:            rate.Limit(cfg.RateLimitPerSecond),
		Burst:           cfg.RateLimitBurst,
		CleanupInterval: cfg.RateLimitCleanupInterval,
	})

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Metrics:           collector,

		AuthService: authService,
		Sessions:    sessions,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
			LoginPath:    cfg.LoginPath,
		},

		HealthChecker:   store,
		MetricsGatherer: reg,
	})

	return router, rateLimiter, nil
}

// runServe はAPIサーバーモードで起動する。
// ストアに接続し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ストア接続
	conn, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer conn.close()

	// 2. ルーターの構築
	router, rateLimiter, err := buildRouter(cfg, conn.store, newRegistry())
	if err != nil {
		return err
	}
	defer rateLimiter.Stop()

	// 3. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.ProviderTimeout*2 + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除ジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.StoreBackend != config.StoreBackendPostgres {
		return fmt.Errorf("worker requires the postgres store backend, got %q", cfg.StoreBackend)
	}

	// 1. DB接続
	conn, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer conn.close()

	// 2. ジョブの初期化
	reg := newRegistry()
	reaper := cleanup.NewSessionReaper(conn.db, slog.Default(), clock.Real{}, metrics.NewCollector(reg))

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting", slog.Duration("reap_interval", cfg.SessionReapInterval))

	// 削除ジョブをメインgoroutineで実行（ブロッキング）
	reaper.Start(ctx, cfg.SessionReapInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StoreBackend != config.StoreBackendPostgres {
		slog.Info("store backend has no schema, skipping migrations",
			slog.String("backend", cfg.StoreBackend),
		)
		return nil
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
