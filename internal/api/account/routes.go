package account

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/JhonesBR/go-fxmatch/internal/ledger"
)

func InitializeRoutes(app *fiber.App, svc *ledger.Service, logger *zap.Logger) {
	logger = logger.Named("account")
	app.Get("/v1/accounts/:id", GetAccountByID(context.Background(), svc, logger))
	app.Get("/v1/accounts/:id/balances/:currency", GetAccountBalance(context.Background(), svc, logger))
	app.Post("/v1/accounts/:id/charge", UpdateAccountBalance(context.Background(), svc, logger, "charge"))
	app.Post("/v1/accounts/:id/remove", UpdateAccountBalance(context.Background(), svc, logger, "remove"))
}
