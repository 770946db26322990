package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jonathan/fastcapital/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     *middleware.Authenticator
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	CORSAllowedOrigin string
	StatusRecorder    middleware.HTTPStatusRecorder
	Logger            *slog.Logger

	// 認証
	AuthService   AuthServiceInterface
	SignupService SignupServiceInterface
	BearerCodec   BearerCodec
	LoginRecorder LoginRecorder
	AuthConfig    AuthHandlerConfig

	// ドメインサービス
	BusinessService BusinessServiceInterface
	OfferingService OfferingServiceInterface
	LedgerService   LedgerServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → StatusMetrics → Recovery → CSRF
//
// CSRF検証は認証の手前、全状態変更ルートに適用する。
// 認証必須ルートはグループ内でAuthenticator.Required()とレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewStatusMetricsMiddleware(deps.StatusRecorder))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.SignupService, deps.BearerCodec, deps.LoginRecorder, deps.AuthConfig)
	businessHandler := NewBusinessHandler(deps.BusinessService)
	offeringHandler := NewOfferingHandler(deps.OfferingService)
	purchaseHandler := NewPurchaseHandler(deps.LedgerService)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// 認証ブートストラップ
	r.Post("/api/signup", authHandler.Signup)
	r.Post("/api/login", authHandler.Login)
	r.Post("/api/logout", authHandler.Logout)
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// 現在のユーザー（匿名アクセス可、未認証はnull）
	r.With(deps.Authenticator.Optional()).Get("/api/me", authHandler.Me)

	// 公開の一覧・参照
	r.Get("/api/businesses", businessHandler.ListBusinesses)
	r.Get("/api/businesses/{id}", businessHandler.GetBusiness)
	r.Get("/api/businesses/{id}/financials", businessHandler.ListFinancials)
	r.Get("/api/offerings", offeringHandler.ListOfferings)
	r.Get("/api/offerings/{id}", offeringHandler.GetOffering)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Required → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(deps.Authenticator.Required())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/secret", authHandler.Secret)
		r.Post("/api/token", authHandler.Token)

		// 事業者管理
		r.Post("/api/businesses", businessHandler.CreateBusiness)
		r.Patch("/api/businesses/{id}", businessHandler.PatchBusiness)
		r.Post("/api/businesses/{id}/financials", businessHandler.AddFinancial)

		// 募集管理
		r.Post("/api/offerings", offeringHandler.CreateOffering)

		// 株式購入
		r.Get("/api/purchases", purchaseHandler.ListPurchases)
		// POST /api/purchases - 購入専用レート制限を追加
		r.With(deps.RateLimiter.PurchaseMiddleware()).Post("/api/purchases", purchaseHandler.CreatePurchase)
	})

	return r
}
