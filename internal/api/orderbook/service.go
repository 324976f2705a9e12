package orderbook

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
	"github.com/JhonesBR/go-fxmatch/internal/engine"
	"github.com/JhonesBR/go-fxmatch/internal/helper"
)

func PlaceOrderHandler(ctx context.Context, eng *engine.Engine, logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		userId, err := helper.UserID(c)
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}

		// Parse place order schema
		var order PlaceOrderSchema
		if err := c.Bind().Body(&order); err != nil {
			return fiber.ErrBadRequest
		}
		if err := helper.ValidateInput(&order); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		quantity, err := order.Quantity.Parse("quantity")
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}
		var price *decimal.Decimal
		if order.Price != nil {
			p, err := order.Price.Parse("price")
			if err != nil {
				return helper.ErrorResponse(c, logger, err)
			}
			price = &p
		}

		result, err := eng.PlaceOrder(ctx, engine.OrderRequest{
			UserId:        userId,
			Type:          domain.OrderType(order.Type),
			Side:          domain.Side(order.Side),
			BaseCurrency:  order.BaseCurrency,
			QuoteCurrency: order.QuoteCurrency,
			Quantity:      quantity,
			Price:         price,
		})
		if err != nil && result != nil {
			// Admitted but the scan failed: the order id is still the caller's
			// handle on what was filled.
			logger.Error("matching failed", zap.String("order_id", result.OrderId.String()), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":    "Matching failed",
				"order_id": result.OrderId,
				"status":   result.Status,
			})
		}
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}

		return c.Status(fiber.StatusCreated).JSON(newPlaceOrderResponse(result))
	}
}

// GetOrderBookHandler lists the caller's orders, newest first, optionally
// filtered by ?status=.
func GetOrderBookHandler(ctx context.Context, eng *engine.Engine, logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		userId, err := helper.UserID(c)
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}

		pagination := helper.GetPagination[OrderBook](c)

		var status *domain.OrderStatus
		if raw := c.Query("status"); raw != "" {
			s := domain.OrderStatus(raw)
			switch s {
			case domain.Pending, domain.PartiallyFilled, domain.Filled, domain.Cancelled:
				status = &s
			default:
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
					"error": "unknown status " + raw,
				})
			}
		}

		orders, err := eng.ListOrders(ctx, userId, status, 0)
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}

		items := make([]OrderBook, 0, len(orders))
		for _, o := range orders {
			items = append(items, newOrderBook(o))
		}
		pagination.Fill(items)

		return c.JSON(pagination)
	}
}

func GetOrderHandler(ctx context.Context, eng *engine.Engine, logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		details, err := ownedOrder(ctx, c, eng)
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}

		return c.JSON(OrderShowSchema{
			Order:       newOrderBook(details.Order),
			Reservation: details.Reservation,
			Trades:      details.Trades,
		})
	}
}

func CancelOrderHandler(ctx context.Context, eng *engine.Engine, logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		details, err := ownedOrder(ctx, c, eng)
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}

		result, err := eng.CancelOrder(ctx, details.Order.Id)
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}

		return c.JSON(CancelOrderResponseSchema{
			OrderId:        result.OrderId,
			Currency:       result.Currency,
			ReleasedAmount: result.ReleasedAmount,
		})
	}
}

// ownedOrder loads the :id order. Orders of other users read as not found.
func ownedOrder(ctx context.Context, c fiber.Ctx, eng *engine.Engine) (*engine.OrderDetails, error) {
	userId, err := helper.UserID(c)
	if err != nil {
		return nil, err
	}
	id, err := helper.ParamID(c)
	if err != nil {
		return nil, err
	}

	details, err := eng.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if details.Order.UserId != userId {
		return nil, domain.ErrNotFound
	}
	return details, nil
}
