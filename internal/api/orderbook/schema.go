package orderbook

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
	"github.com/JhonesBR/go-fxmatch/internal/helper"
)

type PlaceOrderSchema struct {
	Type          string               `json:"type" validate:"required,oneof=limit market"`
	Side          string               `json:"side" validate:"required,oneof=buy sell"`
	BaseCurrency  string               `json:"base_currency" validate:"required,len=3"`
	QuoteCurrency string               `json:"quote_currency" validate:"required,len=3"`
	Quantity      helper.DecimalField  `json:"quantity" validate:"required"`
	Price         *helper.DecimalField `json:"price"`
}

type MatchSummarySchema struct {
	Trades           []domain.Trade  `json:"trades"`
	FilledQuantity   decimal.Decimal `json:"filled_quantity"`
	AverageFillPrice decimal.Decimal `json:"average_fill_price"`
}

type PlaceOrderResponseSchema struct {
	OrderId      uuid.UUID          `json:"order_id"`
	Status       domain.OrderStatus `json:"status"`
	MatchSummary MatchSummarySchema `json:"match_summary"`
}

type OrderShowSchema struct {
	Order       OrderBook              `json:"order"`
	Reservation domain.FundReservation `json:"reservation"`
	Trades      []domain.Trade         `json:"trades"`
}

type CancelOrderResponseSchema struct {
	OrderId        uuid.UUID       `json:"order_id"`
	Currency       string          `json:"currency"`
	ReleasedAmount decimal.Decimal `json:"released_amount"`
}
