package orderbook

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
	"github.com/JhonesBR/go-fxmatch/internal/engine"
)

type OrderBook struct {
	Id                uuid.UUID          `json:"id"`
	UserId            uuid.UUID          `json:"user_id"`
	Type              domain.OrderType   `json:"type"`
	Side              domain.Side        `json:"side"`
	BaseCurrency      string             `json:"base_currency"`
	QuoteCurrency     string             `json:"quote_currency"`
	Status            domain.OrderStatus `json:"status"`
	Price             *decimal.Decimal   `json:"price"`
	Quantity          decimal.Decimal    `json:"quantity"`
	FilledQuantity    decimal.Decimal    `json:"filled_quantity"`
	FilledValue       decimal.Decimal    `json:"filled_value"`
	RemainingQuantity decimal.Decimal    `json:"remaining_quantity"`
	AverageFillPrice  decimal.Decimal    `json:"average_fill_price"`
	ReservedAmount    decimal.Decimal    `json:"reserved_amount"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	FilledAt          *time.Time         `json:"filled_at,omitempty"`
	CancelledAt       *time.Time         `json:"cancelled_at,omitempty"`
}

func newOrderBook(o domain.Order) OrderBook {
	return OrderBook{
		Id:                o.Id,
		UserId:            o.UserId,
		Type:              o.Type,
		Side:              o.Side,
		BaseCurrency:      o.BaseCurrency,
		QuoteCurrency:     o.QuoteCurrency,
		Status:            o.Status,
		Price:             o.Price,
		Quantity:          o.Quantity,
		FilledQuantity:    o.FilledQuantity,
		FilledValue:       o.FilledValue,
		RemainingQuantity: o.RemainingQuantity,
		AverageFillPrice:  o.AverageFillPrice,
		ReservedAmount:    o.ReservedAmount,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		FilledAt:          o.FilledAt,
		CancelledAt:       o.CancelledAt,
	}
}

func newPlaceOrderResponse(r *engine.PlaceResult) PlaceOrderResponseSchema {
	return PlaceOrderResponseSchema{
		OrderId: r.OrderId,
		Status:  r.Status,
		MatchSummary: MatchSummarySchema{
			Trades:           r.Summary.Trades,
			FilledQuantity:   r.Summary.FilledQuantity,
			AverageFillPrice: r.Summary.AverageFillPrice,
		},
	}
}
