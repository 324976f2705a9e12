package orderbook

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/JhonesBR/go-fxmatch/internal/engine"
)

func InitializeRoutes(app *fiber.App, eng *engine.Engine, logger *zap.Logger) {
	logger = logger.Named("orderbook")
	app.Get("/v1/order_book", GetOrderBookHandler(context.Background(), eng, logger))
	app.Post("/v1/order_book", PlaceOrderHandler(context.Background(), eng, logger))
	app.Get("/v1/order_book/:id", GetOrderHandler(context.Background(), eng, logger))
	app.Post("/v1/order_book/:id/cancel", CancelOrderHandler(context.Background(), eng, logger))
}
