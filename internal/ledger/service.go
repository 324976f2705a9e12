package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
	"github.com/JhonesBR/go-fxmatch/internal/store"
)

// Service runs single ledger operations in their own transaction. It backs
// the account endpoints (charge, remove, balances).
type Service struct {
	store      store.Store
	currencies map[string]struct{}
	logger     *zap.Logger
}

func NewService(s store.Store, currencies []string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	set := make(map[string]struct{}, len(currencies))
	for _, c := range currencies {
		set[domain.NormalizeCurrency(c)] = struct{}{}
	}
	return &Service{store: s, currencies: set, logger: logger.Named("ledger")}
}

func (s *Service) key(userId uuid.UUID, currency string) (domain.WalletKey, error) {
	currency = domain.NormalizeCurrency(currency)
	if _, ok := s.currencies[currency]; !ok {
		return domain.WalletKey{}, &domain.ValidationError{Field: "currency", Reason: "unsupported currency " + currency}
	}
	return domain.WalletKey{UserId: userId, Currency: currency}, nil
}

func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &domain.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return nil
}

func (s *Service) Deposit(ctx context.Context, userId uuid.UUID, currency string, amount decimal.Decimal) (domain.Wallet, error) {
	return s.apply(ctx, "deposit", userId, currency, amount, CreditAvailable)
}

func (s *Service) Withdraw(ctx context.Context, userId uuid.UUID, currency string, amount decimal.Decimal) (domain.Wallet, error) {
	return s.apply(ctx, "withdraw", userId, currency, amount, DebitAvailable)
}

func (s *Service) apply(
	ctx context.Context,
	op string,
	userId uuid.UUID,
	currency string,
	amount decimal.Decimal,
	fn func(context.Context, store.Tx, domain.WalletKey, decimal.Decimal) error,
) (domain.Wallet, error) {
	key, err := s.key(userId, currency)
	if err != nil {
		return domain.Wallet{}, err
	}
	if err := checkAmount(amount); err != nil {
		return domain.Wallet{}, err
	}

	var wallet domain.Wallet
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if err := fn(ctx, tx, key, amount); err != nil {
			return err
		}
		wallet, err = GetBalance(ctx, tx, key)
		return err
	})
	if err != nil {
		return domain.Wallet{}, err
	}

	s.logger.Debug(op,
		zap.String("user_id", userId.String()),
		zap.String("currency", key.Currency),
		zap.String("amount", amount.String()),
	)
	return wallet, nil
}

func (s *Service) Balance(ctx context.Context, userId uuid.UUID, currency string) (domain.Wallet, error) {
	key, err := s.key(userId, currency)
	if err != nil {
		return domain.Wallet{}, err
	}
	return s.store.Wallet(ctx, key)
}

func (s *Service) Balances(ctx context.Context, userId uuid.UUID) ([]domain.Wallet, error) {
	return s.store.Wallets(ctx, userId)
}
