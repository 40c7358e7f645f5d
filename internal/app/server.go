package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/config"
	"github.com/hitoshi/storefront/internal/database"
	"github.com/hitoshi/storefront/internal/diagnosis"
	"github.com/hitoshi/storefront/internal/envelope"
	"github.com/hitoshi/storefront/internal/handler"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/repository"
	"github.com/hitoshi/storefront/internal/security"
	"github.com/hitoshi/storefront/internal/session"
)

// healthCheckTimeout はヘルスチェック時のDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// Server は依存関係を組み立て済みのゲートウェイ。
type Server struct {
	Handler http.Handler

	registry *session.Registry
	limiter  *middleware.RateLimiter
	db       *sql.DB

	closeOnce sync.Once
}

// NewServer は設定から全依存関係をワイヤリングする。
// DATABASE_URLが設定されている場合はトークンをPostgreSQLに保存し、未設定の場合はメモリに保存する。
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{}

	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. トークンストア
	var kv repository.KVRepository
	if cfg.DatabaseURL != "" {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.Ping(ctx, db, 5*time.Second); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("database connection established")
		s.db = db
		kv = repository.NewPostgresKVRepo(db)
	} else {
		logger.Warn("DATABASE_URL is not set; tokens are kept in memory")
		kv = repository.NewMemoryKVRepo()
	}

	// 3. バックエンドAPIクライアント
	var limiter *rate.Limiter
	if cfg.APIRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.APIRateLimit), cfg.APIRateBurst)
	}
	client, err := apiclient.New(apiclient.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
		Limiter: limiter,
		Metrics: collector,
		Logger:  logger,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	// 4. セッション
	s.registry = session.NewRegistry(session.Config{
		TTL:             cfg.SessionTTL,
		UnusedTTL:       cfg.SessionUnusedTTL,
		CleanupInterval: cfg.SessionCleanupInterval,
	}, kv, client, logger, collector)

	// 5. ドメインサービス
	images := security.NewImageFetcher(security.NewSSRFGuard(), cfg.ImageFetchTimeout, cfg.ImageFetchMaxSize, logger)
	services := handler.NewServiceFactory(handler.ServiceFactoryConfig{
		Normalizer:       envelope.NewNormalizer(logger, collector),
		Sanitizer:        security.NewContentSanitizer(),
		Images:           images,
		PendingAsFailure: cfg.PendingAsFailure,
		Diagnosis: diagnosis.Options{
			Language:  cfg.DiagnosisLanguage,
			PlantType: cfg.DiagnosisPlantType,
		},
		Logger: logger,
	})

	// 6. ルーター
	s.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral), logger)
	s.Handler = handler.NewRouter(&handler.RouterDeps{
		Sessions: s.registry,
		Cookie: middleware.CookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
			MaxAge: cfg.SessionTTL,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		RateLimiter:       s.limiter,
		Services:          services,
		Coordinator:       session.NewCoordinator(logger),
		HealthCheck:       s.health,
		MetricsHandler:    metrics.Handler(reg),
		Logger:            logger,
	})

	return s, nil
}

// health はGET /health を処理する。PostgreSQLを使う構成では疎通も確認する。
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status, body := http.StatusOK, map[string]string{"status": "ok"}
	if s.db != nil {
		if err := database.Ping(r.Context(), s.db, healthCheckTimeout); err != nil {
			slog.Warn("health check failed", slog.String("error", err.Error()))
			status, body = http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"}
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Close はバックグラウンド処理を停止し、DB接続を閉じる。複数回呼んでもよい。
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.registry != nil {
			s.registry.Stop()
		}
		if s.limiter != nil {
			s.limiter.Stop()
		}
		if s.db != nil {
			s.db.Close()
		}
	})
}
