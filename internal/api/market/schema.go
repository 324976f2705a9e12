package market

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
)

type LiquidityQuerySchema struct {
	Side     string `query:"side" validate:"required,oneof=buy sell"`
	Quantity string `query:"quantity" validate:"required,numeric"`
}

type TradeSchema struct {
	Id          string          `json:"id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	QuoteAmount decimal.Decimal `json:"quote_amount"`
	ExecutedAt  time.Time       `json:"executed_at"`
}

func newTradeSchema(t domain.Trade) TradeSchema {
	return TradeSchema{
		Id:          t.Id.String(),
		Quantity:    t.Quantity,
		Price:       t.Price,
		QuoteAmount: t.QuoteAmount,
		ExecutedAt:  t.ExecutedAt,
	}
}
