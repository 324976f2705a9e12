package api

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/JhonesBR/go-fxmatch/internal/api/account"
	"github.com/JhonesBR/go-fxmatch/internal/api/market"
	"github.com/JhonesBR/go-fxmatch/internal/api/orderbook"
	"github.com/JhonesBR/go-fxmatch/internal/engine"
	"github.com/JhonesBR/go-fxmatch/internal/ledger"
)

type Dependencies struct {
	Engine *engine.Engine
	Ledger *ledger.Service
	Logger *zap.Logger
}

func InitializeRoutes(app *fiber.App, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")

	account.InitializeRoutes(app, deps.Ledger, logger)
	orderbook.InitializeRoutes(app, deps.Engine, logger)
	market.InitializeRoutes(app, deps.Engine, logger)
}
