package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/session"
)

// SessionStore はセッションの解決・切り替え・破棄を行う。session.Registryが実装する。
type SessionStore interface {
	middleware.SessionResolver
	SessionLifecycle
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Sessions          SessionStore
	Cookie            middleware.CookieConfig
	CORSAllowedOrigin string
	// TrustProxyHeaders が真の場合、X-Forwarded-For等からクライアントIPを決める。
	TrustProxyHeaders bool
	RateLimiter       *middleware.RateLimiter

	// ドメイン
	Services    *ServiceFactory
	Coordinator *session.Coordinator

	// 運用
	HealthCheck    http.HandlerFunc
	MetricsHandler http.Handler

	Logger *slog.Logger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	[RealIP] → Recovery → Logging → SecurityHeaders → CORS → Session → CSRF → RateLimit(General)
//
// ヘルスチェックとメトリクスはセッションの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// --- セッション不要のルート ---
	if deps.HealthCheck != nil {
		r.Get("/health", deps.HealthCheck)
	}
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.Services, deps.Coordinator, deps.Sessions, deps.Cookie, logger)
	cartHandler := NewCartHandler(deps.Services, deps.Coordinator, logger)
	searchHandler := NewSearchHandler(deps.Coordinator, logger)
	catalogHandler := NewCatalogHandler(deps.Services, deps.Coordinator, logger)
	orderHandler := NewOrderHandler(deps.Services, deps.Coordinator, logger)
	addressHandler := NewAddressHandler(deps.Services, deps.Coordinator, logger)
	diagnosisHandler := NewDiagnosisHandler(deps.Services, deps.Coordinator, logger)
	requireLogin := RequireLogin(logger)

	// --- セッションを持つルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Sessions, deps.Cookie))
		r.Use(middleware.NewCSRFMiddleware(deps.Cookie, logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.Cookie, logger))

		r.Route("/auth", func(r chi.Router) {
			// ログインは総当たり対策として厳しいレート制限を追加
			r.With(deps.RateLimiter.StrictMiddleware()).Post("/login", authHandler.Login)
			r.With(deps.RateLimiter.StrictMiddleware()).Post("/register", authHandler.Register)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
			r.With(requireLogin).Put("/me", authHandler.UpdateMe)
		})

		// カート・検索はログイン不要
		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", cartHandler.Get)
			r.Delete("/", cartHandler.Clear)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{id}", cartHandler.UpdateItem)
			r.Delete("/items/{id}", cartHandler.RemoveItem)
		})

		r.Route("/api/search", func(r chi.Router) {
			r.Get("/", searchHandler.Get)
			r.Put("/", searchHandler.Set)
			r.Delete("/", searchHandler.Clear)
		})

		// カタログ
		r.Route("/api/products", func(r chi.Router) {
			r.Get("/", catalogHandler.ListProducts)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", catalogHandler.GetProduct)
				r.Get("/ratings", catalogHandler.ListRatings)
				r.With(requireLogin).Post("/ratings", catalogHandler.CreateRating)
			})
		})
		r.Get("/api/categories", catalogHandler.ListCategories)
		r.Get("/api/categories/{id}", catalogHandler.GetCategory)
		r.Get("/api/promotions", catalogHandler.ListPromotions)

		// --- ログインが必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(requireLogin)

			r.Post("/api/checkout", orderHandler.Checkout)
			r.Get("/api/payment-result", orderHandler.PaymentResult)

			r.Route("/api/orders", func(r chi.Router) {
				r.Get("/", orderHandler.List)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", orderHandler.Get)
					r.Post("/cancel", orderHandler.Cancel)
					r.Put("/status", orderHandler.UpdateStatus)
					r.Get("/payment", orderHandler.GetPayment)
					r.Post("/payment", orderHandler.CreatePayment)
				})
			})

			r.Route("/api/addresses", func(r chi.Router) {
				r.Get("/", addressHandler.List)
				r.Post("/", addressHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Put("/", addressHandler.Update)
					r.Delete("/", addressHandler.Delete)
					r.Put("/default", addressHandler.SetDefault)
				})
			})

			// 診断はバックエンドの処理が重いため厳しいレート制限を追加
			r.With(deps.RateLimiter.StrictMiddleware()).Post("/api/diagnosis", diagnosisHandler.Diagnose)
		})
	})

	return r
}
