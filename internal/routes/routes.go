package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kwanza-pay/kwanza_wallet/internal/config"
	"github.com/kwanza-pay/kwanza_wallet/internal/ledger"
	"github.com/kwanza-pay/kwanza_wallet/internal/metrics"
	"github.com/kwanza-pay/kwanza_wallet/internal/middleware"
	"github.com/kwanza-pay/kwanza_wallet/internal/transaction"
	"github.com/kwanza-pay/kwanza_wallet/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. Without a
// database the store falls back to the in-memory implementation, which is
// only permitted in development.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(metrics.HTTPRequests())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	if d.Cache != nil {
		app.Use(middleware.RateLimit(d.Cache, d.Cfg.RateLimitPerMin))
	}

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", metrics.Handler())

	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
	} else {
		store = ledger.NewMemory()
	}

	walletHandler := wallet.NewHandler(wallet.NewService(store, d.Logger))
	transactionHandler := transaction.NewHandler(transaction.NewService(store, d.Logger))

	api := app.Group("/api/v1")
	RegisterWalletRoutes(api, walletHandler)
	RegisterTransactionRoutes(api, transactionHandler)

	return nil
}
