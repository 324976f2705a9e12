package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
)

// Tx is one all-or-nothing unit of work. Nothing written through a Tx is
// visible to other callers until the function passed to InTx returns nil.
type Tx interface {
	// Wallet returns the wallet locked for the rest of the transaction.
	// A missing wallet reads as zero balances.
	Wallet(ctx context.Context, key domain.WalletKey) (domain.Wallet, error)
	PutWallet(ctx context.Context, w domain.Wallet) error

	Order(ctx context.Context, id uuid.UUID) (domain.Order, error)
	InsertOrder(ctx context.Context, o domain.Order) error
	UpdateOrder(ctx context.Context, o domain.Order) error

	Reservation(ctx context.Context, orderId uuid.UUID) (domain.FundReservation, error)
	InsertReservation(ctx context.Context, r domain.FundReservation) error
	UpdateReservation(ctx context.Context, r domain.FundReservation) error

	InsertTrade(ctx context.Context, t domain.Trade) error
}

type OrderFilter struct {
	UserId uuid.UUID
	Status *domain.OrderStatus
	Limit  int
}

// Store is the persisted state: wallets, orders, reservations and the trade log.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Wallet(ctx context.Context, key domain.WalletKey) (domain.Wallet, error)
	Wallets(ctx context.Context, userId uuid.UUID) ([]domain.Wallet, error)
	AllWallets(ctx context.Context) ([]domain.Wallet, error)

	Order(ctx context.Context, id uuid.UUID) (domain.Order, error)
	Orders(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
	// ActiveOrders returns pending and partially filled orders by admission sequence.
	ActiveOrders(ctx context.Context) ([]domain.Order, error)
	Reservation(ctx context.Context, orderId uuid.UUID) (domain.FundReservation, error)

	TradesByOrder(ctx context.Context, orderId uuid.UUID) ([]domain.Trade, error)
	// RecentTrades returns the newest trades of a pair first. A limit of zero
	// or less returns every trade.
	RecentTrades(ctx context.Context, pair domain.Pair, limit int) ([]domain.Trade, error)
	// TradesSince returns the trades of a pair executed at or after since, oldest first.
	TradesSince(ctx context.Context, pair domain.Pair, since time.Time) ([]domain.Trade, error)

	Close()
}
