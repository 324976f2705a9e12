package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
)

var ErrDuplicate = errors.New("duplicate record")

// MemoryStore keeps everything in process. Transactions stage their writes
// and apply them under the store lock only when the callback succeeds.
type MemoryStore struct {
	mu           sync.RWMutex
	wallets      map[domain.WalletKey]domain.Wallet
	orders       map[uuid.UUID]domain.Order
	reservations map[uuid.UUID]domain.FundReservation
	trades       []domain.Trade
	byOrder      map[uuid.UUID][]int
	byPair       map[domain.Pair][]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets:      make(map[domain.WalletKey]domain.Wallet),
		orders:       make(map[uuid.UUID]domain.Order),
		reservations: make(map[uuid.UUID]domain.FundReservation),
		byOrder:      make(map[uuid.UUID][]int),
		byPair:       make(map[domain.Pair][]int),
	}
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		s:            s,
		wallets:      make(map[domain.WalletKey]domain.Wallet),
		orders:       make(map[uuid.UUID]domain.Order),
		reservations: make(map[uuid.UUID]domain.FundReservation),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) Wallet(_ context.Context, key domain.WalletKey) (domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.walletLocked(key), nil
}

func (s *MemoryStore) walletLocked(key domain.WalletKey) domain.Wallet {
	if w, ok := s.wallets[key]; ok {
		return w
	}
	return domain.Wallet{UserId: key.UserId, Currency: key.Currency, Available: decimal.Zero, Reserved: decimal.Zero}
}

func (s *MemoryStore) Wallets(_ context.Context, userId uuid.UUID) ([]domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Wallet, 0)
	for key, w := range s.wallets {
		if key.UserId == userId {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (s *MemoryStore) AllWallets(_ context.Context) ([]domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out, nil
}

func (s *MemoryStore) Order(_ context.Context, id uuid.UUID) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, errors.Wrapf(domain.ErrNotFound, "order %s", id)
	}
	return o, nil
}

func (s *MemoryStore) Orders(_ context.Context, filter OrderFilter) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Order, 0)
	for _, o := range s.orders {
		if o.UserId != filter.UserId {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) ActiveOrders(_ context.Context) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Order, 0)
	for _, o := range s.orders {
		if !o.Status.Terminal() {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *MemoryStore) Reservation(_ context.Context, orderId uuid.UUID) (domain.FundReservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reservations[orderId]
	if !ok {
		return domain.FundReservation{}, errors.Wrapf(domain.ErrNotFound, "reservation for order %s", orderId)
	}
	return r, nil
}

func (s *MemoryStore) TradesByOrder(_ context.Context, orderId uuid.UUID) ([]domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.byOrder[orderId]
	out := make([]domain.Trade, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.trades[i])
	}
	return out, nil
}

func (s *MemoryStore) RecentTrades(_ context.Context, pair domain.Pair, limit int) ([]domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.byPair[pair]
	out := make([]domain.Trade, 0)
	for i := len(idx) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, s.trades[idx[i]])
	}
	return out, nil
}

func (s *MemoryStore) TradesSince(_ context.Context, pair domain.Pair, since time.Time) ([]domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.byPair[pair]
	// Trades are appended in execution order, so the window is a suffix.
	start := sort.Search(len(idx), func(i int) bool {
		return !s.trades[idx[i]].ExecutedAt.Before(since)
	})
	out := make([]domain.Trade, 0, len(idx)-start)
	for _, i := range idx[start:] {
		out = append(out, s.trades[i])
	}
	return out, nil
}

func (s *MemoryStore) Close() {}

type memTx struct {
	s            *MemoryStore
	wallets      map[domain.WalletKey]domain.Wallet
	orders       map[uuid.UUID]domain.Order
	reservations map[uuid.UUID]domain.FundReservation
	trades       []domain.Trade
}

func (tx *memTx) Wallet(_ context.Context, key domain.WalletKey) (domain.Wallet, error) {
	if w, ok := tx.wallets[key]; ok {
		return w, nil
	}
	return tx.s.walletLocked(key), nil
}

func (tx *memTx) PutWallet(_ context.Context, w domain.Wallet) error {
	if w.Available.IsNegative() || w.Reserved.IsNegative() {
		return errors.Errorf("wallet %s/%s would go negative", w.UserId, w.Currency)
	}
	tx.wallets[w.Key()] = w
	return nil
}

func (tx *memTx) Order(_ context.Context, id uuid.UUID) (domain.Order, error) {
	if o, ok := tx.orders[id]; ok {
		return o, nil
	}
	if o, ok := tx.s.orders[id]; ok {
		return o, nil
	}
	return domain.Order{}, errors.Wrapf(domain.ErrNotFound, "order %s", id)
}

func (tx *memTx) InsertOrder(ctx context.Context, o domain.Order) error {
	if _, err := tx.Order(ctx, o.Id); err == nil {
		return errors.Wrapf(ErrDuplicate, "order %s", o.Id)
	}
	tx.orders[o.Id] = o
	return nil
}

func (tx *memTx) UpdateOrder(ctx context.Context, o domain.Order) error {
	if _, err := tx.Order(ctx, o.Id); err != nil {
		return err
	}
	tx.orders[o.Id] = o
	return nil
}

func (tx *memTx) Reservation(_ context.Context, orderId uuid.UUID) (domain.FundReservation, error) {
	if r, ok := tx.reservations[orderId]; ok {
		return r, nil
	}
	if r, ok := tx.s.reservations[orderId]; ok {
		return r, nil
	}
	return domain.FundReservation{}, errors.Wrapf(domain.ErrNotFound, "reservation for order %s", orderId)
}

func (tx *memTx) InsertReservation(ctx context.Context, r domain.FundReservation) error {
	if _, err := tx.Reservation(ctx, r.OrderId); err == nil {
		return errors.Wrapf(ErrDuplicate, "reservation for order %s", r.OrderId)
	}
	tx.reservations[r.OrderId] = r
	return nil
}

func (tx *memTx) UpdateReservation(ctx context.Context, r domain.FundReservation) error {
	if _, err := tx.Reservation(ctx, r.OrderId); err != nil {
		return err
	}
	tx.reservations[r.OrderId] = r
	return nil
}

func (tx *memTx) InsertTrade(_ context.Context, t domain.Trade) error {
	tx.trades = append(tx.trades, t)
	return nil
}

func (tx *memTx) commit() {
	s := tx.s
	for k, w := range tx.wallets {
		s.wallets[k] = w
	}
	for id, o := range tx.orders {
		s.orders[id] = o
	}
	for id, r := range tx.reservations {
		s.reservations[id] = r
	}
	for _, t := range tx.trades {
		i := len(s.trades)
		s.trades = append(s.trades, t)
		s.byOrder[t.BuyOrderId] = append(s.byOrder[t.BuyOrderId], i)
		s.byOrder[t.SellOrderId] = append(s.byOrder[t.SellOrderId], i)
		s.byPair[t.Pair()] = append(s.byPair[t.Pair()], i)
	}
}
