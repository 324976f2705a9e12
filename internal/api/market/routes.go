package market

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/JhonesBR/go-fxmatch/internal/engine"
)

func InitializeRoutes(app *fiber.App, eng *engine.Engine, logger *zap.Logger) {
	logger = logger.Named("market")
	app.Get("/v1/markets/:base/:quote/depth", DepthHandler(eng, logger))
	app.Get("/v1/markets/:base/:quote/best", BestPricesHandler(eng, logger))
	app.Get("/v1/markets/:base/:quote/trades", RecentTradesHandler(context.Background(), eng, logger))
	app.Get("/v1/markets/:base/:quote/stats", StatsHandler(context.Background(), eng, logger))
	app.Get("/v1/markets/:base/:quote/liquidity", LiquidityHandler(eng, logger))
}
