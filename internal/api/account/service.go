package account

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
	"github.com/JhonesBR/go-fxmatch/internal/helper"
	"github.com/JhonesBR/go-fxmatch/internal/ledger"
)

func GetAccountByID(ctx context.Context, svc *ledger.Service, logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := ownAccount(c)
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}

		wallets, err := svc.Balances(ctx, id)
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}

		account := Account{Id: id, Balances: make([]AccountBalance, 0, len(wallets))}
		for _, w := range wallets {
			account.Balances = append(account.Balances, newAccountBalance(w))
		}
		return c.JSON(account)
	}
}

func GetAccountBalance(ctx context.Context, svc *ledger.Service, logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := ownAccount(c)
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}

		wallet, err := svc.Balance(ctx, id, c.Params("currency"))
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}
		return c.JSON(newAccountBalance(wallet))
	}
}

// UpdateAccountBalance charges (deposits) or removes (withdraws) funds from
// the available balance. Reserved funds are never touched.
func UpdateAccountBalance(ctx context.Context, svc *ledger.Service, logger *zap.Logger, operation string) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := ownAccount(c)
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}

		var charge UpdateBalanceSchema
		if err := c.Bind().Body(&charge); err != nil {
			return fiber.ErrBadRequest
		}
		if err := helper.ValidateInput(&charge); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		amount, err := charge.Amount.Parse("amount")
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}

		var wallet domain.Wallet
		switch operation {
		case "charge":
			wallet, err = svc.Deposit(ctx, id, *charge.Currency, amount)
		case "remove":
			wallet, err = svc.Withdraw(ctx, id, *charge.Currency, amount)
		}
		if err != nil {
			return helper.ErrorResponse(c, logger, err)
		}

		return c.JSON(newAccountBalance(wallet))
	}
}

// ownAccount returns the :id account when it belongs to the caller. Other
// accounts read as not found.
func ownAccount(c fiber.Ctx) (uuid.UUID, error) {
	userId, err := helper.UserID(c)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := helper.ParamID(c)
	if err != nil {
		return uuid.Nil, err
	}
	if id != userId {
		return uuid.Nil, domain.ErrNotFound
	}
	return id, nil
}
