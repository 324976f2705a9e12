package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore persists the engine state with pgx. Every InTx call is one
// database transaction; wallet rows are locked with SELECT ... FOR UPDATE.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	// Transaction to ensure correct update on race conditions
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

func (s *PostgresStore) Close() { s.pool.Close() }

const walletColumns = `user_id, currency, available_balance::text, reserved_balance::text, updated_at`

func scanWallet(row pgx.Row) (domain.Wallet, error) {
	var w domain.Wallet
	var available, reserved string
	if err := row.Scan(&w.UserId, &w.Currency, &available, &reserved, &w.UpdatedAt); err != nil {
		return domain.Wallet{}, err
	}
	var err error
	if w.Available, err = decimal.NewFromString(available); err != nil {
		return domain.Wallet{}, errors.Wrap(err, "parse available balance")
	}
	if w.Reserved, err = decimal.NewFromString(reserved); err != nil {
		return domain.Wallet{}, errors.Wrap(err, "parse reserved balance")
	}
	return w, nil
}

func emptyWallet(key domain.WalletKey) domain.Wallet {
	return domain.Wallet{UserId: key.UserId, Currency: key.Currency, Available: decimal.Zero, Reserved: decimal.Zero}
}

func (s *PostgresStore) Wallet(ctx context.Context, key domain.WalletKey) (domain.Wallet, error) {
	w, err := scanWallet(s.pool.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 AND currency = $2`,
		key.UserId, key.Currency))
	if errors.Is(err, pgx.ErrNoRows) {
		return emptyWallet(key), nil
	}
	return w, errors.Wrap(err, "get wallet")
}

func (s *PostgresStore) Wallets(ctx context.Context, userId uuid.UUID) ([]domain.Wallet, error) {
	return queryWallets(ctx, s.pool, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 ORDER BY currency`, userId)
}

func (s *PostgresStore) AllWallets(ctx context.Context) ([]domain.Wallet, error) {
	return queryWallets(ctx, s.pool, `SELECT `+walletColumns+` FROM wallets ORDER BY user_id, currency`)
}

func queryWallets(ctx context.Context, q querier, sql string, args ...any) ([]domain.Wallet, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query wallets")
	}
	defer rows.Close()

	out := make([]domain.Wallet, 0)
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, errors.Wrap(rows.Err(), "iterate wallets")
}

const orderColumns = `id, user_id, type, side, base_currency, quote_currency,
	quantity::text, remaining_quantity::text, filled_quantity::text, filled_value::text, price::text,
	average_fill_price::text, status, reserved_amount::text, seq,
	created_at, updated_at, filled_at, cancelled_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var quantity, remaining, filled, value, average, reserved string
	var price *string
	err := row.Scan(&o.Id, &o.UserId, &o.Type, &o.Side, &o.BaseCurrency, &o.QuoteCurrency,
		&quantity, &remaining, &filled, &value, &price, &average, &o.Status, &reserved, &o.Seq,
		&o.CreatedAt, &o.UpdatedAt, &o.FilledAt, &o.CancelledAt)
	if err != nil {
		return domain.Order{}, err
	}

	fields := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{quantity, &o.Quantity},
		{remaining, &o.RemainingQuantity},
		{filled, &o.FilledQuantity},
		{value, &o.FilledValue},
		{average, &o.AverageFillPrice},
		{reserved, &o.ReservedAmount},
	}
	for _, f := range fields {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return domain.Order{}, errors.Wrapf(err, "parse order %s amount", o.Id)
		}
	}
	if price != nil {
		p, err := decimal.NewFromString(*price)
		if err != nil {
			return domain.Order{}, errors.Wrapf(err, "parse order %s price", o.Id)
		}
		o.Price = &p
	}
	return o, nil
}

func priceParam(p *decimal.Decimal) *string {
	if p == nil {
		return nil
	}
	s := p.String()
	return &s
}

func getOrder(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (domain.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, errors.Wrapf(domain.ErrNotFound, "order %s", id)
	}
	return o, errors.Wrap(err, "get order")
}

func (s *PostgresStore) Order(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	return getOrder(ctx, s.pool, id, false)
}

func (s *PostgresStore) Orders(ctx context.Context, filter OrderFilter) ([]domain.Order, error) {
	// LIMIT NULL returns every row.
	var limit *int
	if filter.Limit > 0 {
		limit = &filter.Limit
	}
	var status *string
	if filter.Status != nil {
		v := string(*filter.Status)
		status = &v
	}
	return queryOrders(ctx, s.pool, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY seq DESC
		LIMIT $3
	`, filter.UserId, status, limit)
}

func (s *PostgresStore) ActiveOrders(ctx context.Context) ([]domain.Order, error) {
	return queryOrders(ctx, s.pool, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status IN ('pending', 'partially_filled')
		ORDER BY seq
	`)
}

func queryOrders(ctx context.Context, q querier, sql string, args ...any) ([]domain.Order, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, errors.Wrap(rows.Err(), "iterate orders")
}

const reservationColumns = `id, user_id, order_id, currency, reserved_amount::text, released_amount::text,
	status, created_at, updated_at`

func scanReservation(row pgx.Row) (domain.FundReservation, error) {
	var r domain.FundReservation
	var reserved, released string
	if err := row.Scan(&r.Id, &r.UserId, &r.OrderId, &r.Currency, &reserved, &released,
		&r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return domain.FundReservation{}, err
	}
	var err error
	if r.ReservedAmount, err = decimal.NewFromString(reserved); err != nil {
		return domain.FundReservation{}, errors.Wrap(err, "parse reserved amount")
	}
	if r.ReleasedAmount, err = decimal.NewFromString(released); err != nil {
		return domain.FundReservation{}, errors.Wrap(err, "parse released amount")
	}
	return r, nil
}

func getReservation(ctx context.Context, q querier, orderId uuid.UUID, forUpdate bool) (domain.FundReservation, error) {
	sql := `SELECT ` + reservationColumns + ` FROM fund_reservations WHERE order_id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	r, err := scanReservation(q.QueryRow(ctx, sql, orderId))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.FundReservation{}, errors.Wrapf(domain.ErrNotFound, "reservation for order %s", orderId)
	}
	return r, errors.Wrap(err, "get reservation")
}

func (s *PostgresStore) Reservation(ctx context.Context, orderId uuid.UUID) (domain.FundReservation, error) {
	return getReservation(ctx, s.pool, orderId, false)
}

const tradeColumns = `id, buy_order_id, sell_order_id, buyer_id, seller_id, base_currency, quote_currency,
	quantity::text, price::text, buyer_fee::text, seller_fee::text, base_amount::text, quote_amount::text,
	executed_at`

func scanTrade(row pgx.Row) (domain.Trade, error) {
	var t domain.Trade
	var quantity, price, buyerFee, sellerFee, baseAmount, quoteAmount string
	err := row.Scan(&t.Id, &t.BuyOrderId, &t.SellOrderId, &t.BuyerId, &t.SellerId, &t.BaseCurrency,
		&t.QuoteCurrency, &quantity, &price, &buyerFee, &sellerFee, &baseAmount, &quoteAmount, &t.ExecutedAt)
	if err != nil {
		return domain.Trade{}, err
	}

	fields := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{quantity, &t.Quantity},
		{price, &t.Price},
		{buyerFee, &t.BuyerFee},
		{sellerFee, &t.SellerFee},
		{baseAmount, &t.BaseAmount},
		{quoteAmount, &t.QuoteAmount},
	}
	for _, f := range fields {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return domain.Trade{}, errors.Wrapf(err, "parse trade %s amount", t.Id)
		}
	}
	return t, nil
}

func queryTrades(ctx context.Context, q querier, sql string, args ...any) ([]domain.Trade, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query trades")
	}
	defer rows.Close()

	out := make([]domain.Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, errors.Wrap(rows.Err(), "iterate trades")
}

func (s *PostgresStore) TradesByOrder(ctx context.Context, orderId uuid.UUID) ([]domain.Trade, error) {
	return queryTrades(ctx, s.pool, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE buy_order_id = $1 OR sell_order_id = $1
		ORDER BY executed_at
	`, orderId)
}

// RecentTrades returns the newest trades first. A limit of zero or less
// returns all of them.
func (s *PostgresStore) RecentTrades(ctx context.Context, pair domain.Pair, limit int) ([]domain.Trade, error) {
	var n *int
	if limit > 0 {
		n = &limit
	}
	return queryTrades(ctx, s.pool, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE base_currency = $1 AND quote_currency = $2
		ORDER BY executed_at DESC
		LIMIT $3
	`, pair.Base, pair.Quote, n)
}

func (s *PostgresStore) TradesSince(ctx context.Context, pair domain.Pair, since time.Time) ([]domain.Trade, error) {
	return queryTrades(ctx, s.pool, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE base_currency = $1 AND quote_currency = $2 AND executed_at >= $3
		ORDER BY executed_at
	`, pair.Base, pair.Quote, since)
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Wallet(ctx context.Context, key domain.WalletKey) (domain.Wallet, error) {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO wallets (user_id, currency) VALUES ($1, $2)
		ON CONFLICT (user_id, currency) DO NOTHING
	`, key.UserId, key.Currency); err != nil {
		return domain.Wallet{}, errors.Wrap(err, "ensure wallet")
	}

	w, err := scanWallet(t.tx.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 AND currency = $2 FOR UPDATE`,
		key.UserId, key.Currency))
	return w, errors.Wrap(err, "lock wallet")
}

func (t *pgTx) PutWallet(ctx context.Context, w domain.Wallet) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE wallets SET available_balance = $1, reserved_balance = $2, updated_at = $3
		WHERE user_id = $4 AND currency = $5
	`, w.Available.String(), w.Reserved.String(), w.UpdatedAt, w.UserId, w.Currency)
	return errors.Wrap(err, "update wallet")
}

func (t *pgTx) Order(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

func (t *pgTx) InsertOrder(ctx context.Context, o domain.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, type, side, base_currency, quote_currency, quantity,
			remaining_quantity, filled_quantity, filled_value, price, average_fill_price, status,
			reserved_amount, seq, created_at, updated_at, filled_at, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, o.Id, o.UserId, string(o.Type), string(o.Side), o.BaseCurrency, o.QuoteCurrency, o.Quantity.String(),
		o.RemainingQuantity.String(), o.FilledQuantity.String(), o.FilledValue.String(), priceParam(o.Price),
		o.AverageFillPrice.String(), string(o.Status), o.ReservedAmount.String(), int64(o.Seq),
		o.CreatedAt, o.UpdatedAt, o.FilledAt, o.CancelledAt)
	return errors.Wrap(err, "insert order")
}

func (t *pgTx) UpdateOrder(ctx context.Context, o domain.Order) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET remaining_quantity = $1, filled_quantity = $2, filled_value = $3, average_fill_price = $4,
			status = $5, reserved_amount = $6, updated_at = $7, filled_at = $8, cancelled_at = $9
		WHERE id = $10
	`, o.RemainingQuantity.String(), o.FilledQuantity.String(), o.FilledValue.String(), o.AverageFillPrice.String(),
		string(o.Status), o.ReservedAmount.String(), o.UpdatedAt, o.FilledAt, o.CancelledAt, o.Id)
	if err != nil {
		return errors.Wrap(err, "update order")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrNotFound, "order %s", o.Id)
	}
	return nil
}

func (t *pgTx) Reservation(ctx context.Context, orderId uuid.UUID) (domain.FundReservation, error) {
	return getReservation(ctx, t.tx, orderId, true)
}

func (t *pgTx) InsertReservation(ctx context.Context, r domain.FundReservation) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO fund_reservations (id, user_id, order_id, currency, reserved_amount, released_amount,
			status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.Id, r.UserId, r.OrderId, r.Currency, r.ReservedAmount.String(), r.ReleasedAmount.String(),
		string(r.Status), r.CreatedAt, r.UpdatedAt)
	return errors.Wrap(err, "insert reservation")
}

func (t *pgTx) UpdateReservation(ctx context.Context, r domain.FundReservation) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE fund_reservations SET released_amount = $1, status = $2, updated_at = $3
		WHERE order_id = $4
	`, r.ReleasedAmount.String(), string(r.Status), r.UpdatedAt, r.OrderId)
	return errors.Wrap(err, "update reservation")
}

func (t *pgTx) InsertTrade(ctx context.Context, tr domain.Trade) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO trades (id, buy_order_id, sell_order_id, buyer_id, seller_id, base_currency,
			quote_currency, quantity, price, buyer_fee, seller_fee, base_amount, quote_amount, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, tr.Id, tr.BuyOrderId, tr.SellOrderId, tr.BuyerId, tr.SellerId, tr.BaseCurrency, tr.QuoteCurrency,
		tr.Quantity.String(), tr.Price.String(), tr.BuyerFee.String(), tr.SellerFee.String(),
		tr.BaseAmount.String(), tr.QuoteAmount.String(), tr.ExecutedAt)
	return errors.Wrap(err, "insert trade")
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
