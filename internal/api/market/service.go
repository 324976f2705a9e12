package market

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
	"github.com/JhonesBR/go-fxmatch/internal/engine"
	"github.com/JhonesBR/go-fxmatch/internal/helper"
)

func pair(c fiber.Ctx) domain.Pair {
	return domain.NewPair(c.Params("base"), c.Params("quote"))
}

func limit(c fiber.Ctx, fallback int) int {
	n, err := strconv.Atoi(c.Query("limit", strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	if n > 500 {
		return 500
	}
	return n
}

func DepthHandler(eng *engine.Engine, logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		depth, err := eng.Depth(pair(c), limit(c, 20))
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}
		return c.JSON(depth)
	}
}

func BestPricesHandler(eng *engine.Engine, logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		best, err := eng.BestPrices(pair(c))
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}
		return c.JSON(best)
	}
}

func RecentTradesHandler(ctx context.Context, eng *engine.Engine, logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		trades, err := eng.RecentTrades(ctx, pair(c), limit(c, 50))
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}

		items := make([]TradeSchema, 0, len(trades))
		for _, t := range trades {
			items = append(items, newTradeSchema(t))
		}
		return c.JSON(items)
	}
}

// StatsHandler summarizes the trades of ?window= (a Go duration, default 24h).
func StatsHandler(ctx context.Context, eng *engine.Engine, logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		window, err := time.ParseDuration(c.Query("window", "24h"))
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "invalid window",
			})
		}

		stats, err := eng.Stats(ctx, pair(c), window)
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}
		return c.JSON(stats)
	}
}

// LiquidityHandler answers whether a market order of ?side= and ?quantity=
// would find enough counter-orders right now. The caller's own orders are
// left out when the session header is present.
func LiquidityHandler(eng *engine.Engine, logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		var query LiquidityQuerySchema
		if err := c.Bind().Query(&query); err != nil {
			return fiber.ErrBadRequest
		}
		if err := helper.ValidateInput(&query); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		qty, err := decimal.NewFromString(query.Quantity)
		if err != nil {
			return fiber.ErrBadRequest
		}

		userId := uuid.Nil
		if c.Get(helper.UserHeader) != "" {
			if userId, err = helper.UserID(c); err != nil {
				return helper.ErrorResponse(c, logger, err)
			}
		}

		liq, err := eng.AvailableLiquidity(pair(c), domain.Side(query.Side), qty, userId)
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}
		return c.JSON(liq)
	}
}
