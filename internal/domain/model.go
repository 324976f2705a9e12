package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderType string

const (
	Limit  OrderType = "limit"
	Market OrderType = "market"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the side a resting counter-order sits on.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderStatus string

const (
	Pending         OrderStatus = "pending"
	PartiallyFilled OrderStatus = "partially_filled"
	Filled          OrderStatus = "filled"
	Cancelled       OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == Filled || s == Cancelled
}

type ReservationStatus string

const (
	ReservationActive            ReservationStatus = "active"
	ReservationPartiallyReleased ReservationStatus = "partially_released"
	ReservationFullyReleased     ReservationStatus = "fully_released"
)

// Pair identifies one order book. Codes are upper case.
type Pair struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

func NewPair(base, quote string) Pair {
	return Pair{Base: NormalizeCurrency(base), Quote: NormalizeCurrency(quote)}
}

func (p Pair) String() string { return p.Base + "/" + p.Quote }

func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type Order struct {
	Id                uuid.UUID        `json:"id"`
	UserId            uuid.UUID        `json:"user_id"`
	Type              OrderType        `json:"type"`
	Side              Side             `json:"side"`
	BaseCurrency      string           `json:"base_currency"`
	QuoteCurrency     string           `json:"quote_currency"`
	Quantity          decimal.Decimal  `json:"quantity"`
	RemainingQuantity decimal.Decimal  `json:"remaining_quantity"`
	FilledQuantity    decimal.Decimal  `json:"filled_quantity"`
	FilledValue       decimal.Decimal  `json:"filled_value"`
	Price             *decimal.Decimal `json:"price,omitempty"`
	AverageFillPrice  decimal.Decimal  `json:"average_fill_price"`
	Status            OrderStatus      `json:"status"`
	ReservedAmount    decimal.Decimal  `json:"reserved_amount"`
	Seq               uint64           `json:"seq"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	FilledAt          *time.Time       `json:"filled_at,omitempty"`
	CancelledAt       *time.Time       `json:"cancelled_at,omitempty"`
}

func (o Order) Pair() Pair { return Pair{Base: o.BaseCurrency, Quote: o.QuoteCurrency} }

// ReservationCurrency is the currency withheld to back the order.
func (o Order) ReservationCurrency() string {
	if o.Side == Buy {
		return o.QuoteCurrency
	}
	return o.BaseCurrency
}

// ApplyFill records qty executed at price and moves the status forward.
// FilledValue is the exact quote amount executed; the average is always
// derived from it so rounding never compounds across fills.
func (o *Order) ApplyFill(qty, price decimal.Decimal, at time.Time) {
	o.FilledValue = o.FilledValue.Add(price.Mul(qty))
	o.FilledQuantity = o.FilledQuantity.Add(qty)
	o.RemainingQuantity = o.RemainingQuantity.Sub(qty)
	o.AverageFillPrice = o.FilledValue.Div(o.FilledQuantity)
	o.UpdatedAt = at
	if o.RemainingQuantity.IsZero() {
		o.Status = Filled
		o.FilledAt = &at
	} else {
		o.Status = PartiallyFilled
	}
}

type FundReservation struct {
	Id             uuid.UUID         `json:"id"`
	UserId         uuid.UUID         `json:"user_id"`
	OrderId        uuid.UUID         `json:"order_id"`
	Currency       string            `json:"currency"`
	ReservedAmount decimal.Decimal   `json:"reserved_amount"`
	ReleasedAmount decimal.Decimal   `json:"released_amount"`
	Status         ReservationStatus `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Outstanding is the part of the reservation still withheld.
func (r FundReservation) Outstanding() decimal.Decimal {
	return r.ReservedAmount.Sub(r.ReleasedAmount)
}

// MarkReleased adds amount to the released total and updates the status.
func (r *FundReservation) MarkReleased(amount decimal.Decimal, at time.Time) {
	r.ReleasedAmount = r.ReleasedAmount.Add(amount)
	r.UpdatedAt = at
	switch {
	case r.ReleasedAmount.GreaterThanOrEqual(r.ReservedAmount):
		r.Status = ReservationFullyReleased
	case r.ReleasedAmount.IsPositive():
		r.Status = ReservationPartiallyReleased
	}
}

type Trade struct {
	Id            uuid.UUID       `json:"id"`
	BuyOrderId    uuid.UUID       `json:"buy_order_id"`
	SellOrderId   uuid.UUID       `json:"sell_order_id"`
	BuyerId       uuid.UUID       `json:"buyer_id"`
	SellerId      uuid.UUID       `json:"seller_id"`
	BaseCurrency  string          `json:"base_currency"`
	QuoteCurrency string          `json:"quote_currency"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	BuyerFee      decimal.Decimal `json:"buyer_fee"`
	SellerFee     decimal.Decimal `json:"seller_fee"`
	BaseAmount    decimal.Decimal `json:"base_amount"`
	QuoteAmount   decimal.Decimal `json:"quote_amount"`
	ExecutedAt    time.Time       `json:"executed_at"`
}

func (t Trade) Pair() Pair { return Pair{Base: t.BaseCurrency, Quote: t.QuoteCurrency} }

// Wallet is one user's balance in one currency.
type Wallet struct {
	UserId    uuid.UUID       `json:"user_id"`
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available_balance"`
	Reserved  decimal.Decimal `json:"reserved_balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (w Wallet) Total() decimal.Decimal { return w.Available.Add(w.Reserved) }

type WalletKey struct {
	UserId   uuid.UUID
	Currency string
}

func (w Wallet) Key() WalletKey { return WalletKey{UserId: w.UserId, Currency: w.Currency} }

// Less orders wallet keys so that locks are always taken in the same order.
func (k WalletKey) Less(other WalletKey) bool {
	if c := strings.Compare(k.UserId.String(), other.UserId.String()); c != 0 {
		return c < 0
	}
	return k.Currency < other.Currency
}
