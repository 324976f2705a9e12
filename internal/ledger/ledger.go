package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
	"github.com/JhonesBR/go-fxmatch/internal/store"
)

// The functions below are the only way balances change. Each one reads the
// wallet through the transaction (which locks it) and writes it back in the
// same transaction, so there is never an unguarded read-then-write.

// Lock takes the wallet locks for keys in a fixed order. Call it before the
// first mutation when a transaction touches more than one wallet.
func Lock(ctx context.Context, tx store.Tx, keys ...domain.WalletKey) error {
	sorted := make([]domain.WalletKey, 0, len(keys))
	seen := make(map[domain.WalletKey]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	for _, k := range sorted {
		if _, err := tx.Wallet(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func GetBalance(ctx context.Context, tx store.Tx, key domain.WalletKey) (domain.Wallet, error) {
	return tx.Wallet(ctx, key)
}

func CreditAvailable(ctx context.Context, tx store.Tx, key domain.WalletKey, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	if amount.IsNegative() {
		return errors.Errorf("credit amount must not be negative: %s", amount)
	}
	return update(ctx, tx, key, func(w *domain.Wallet) error {
		w.Available = w.Available.Add(amount)
		return nil
	})
}

func DebitAvailable(ctx context.Context, tx store.Tx, key domain.WalletKey, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.Errorf("debit amount must not be negative: %s", amount)
	}
	return update(ctx, tx, key, func(w *domain.Wallet) error {
		if w.Available.LessThan(amount) {
			return &domain.InsufficientBalanceError{Currency: key.Currency, Required: amount, Available: w.Available}
		}
		w.Available = w.Available.Sub(amount)
		return nil
	})
}

// Reserve moves amount from available to reserved.
func Reserve(ctx context.Context, tx store.Tx, key domain.WalletKey, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.Errorf("reserve amount must not be negative: %s", amount)
	}
	return update(ctx, tx, key, func(w *domain.Wallet) error {
		if w.Available.LessThan(amount) {
			return &domain.InsufficientBalanceError{Currency: key.Currency, Required: amount, Available: w.Available}
		}
		w.Available = w.Available.Sub(amount)
		w.Reserved = w.Reserved.Add(amount)
		return nil
	})
}

// Release moves amount from reserved back to available.
func Release(ctx context.Context, tx store.Tx, key domain.WalletKey, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	if amount.IsNegative() {
		return errors.Errorf("release amount must not be negative: %s", amount)
	}
	return update(ctx, tx, key, func(w *domain.Wallet) error {
		if w.Reserved.LessThan(amount) {
			return errors.Errorf("cannot release %s %s: only %s reserved", amount, key.Currency, w.Reserved)
		}
		w.Reserved = w.Reserved.Sub(amount)
		w.Available = w.Available.Add(amount)
		return nil
	})
}

// ConsumeReserved removes amount from the reserved balance; the funds leave
// the wallet and are credited elsewhere in the same transaction.
func ConsumeReserved(ctx context.Context, tx store.Tx, key domain.WalletKey, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.Errorf("consume amount must not be negative: %s", amount)
	}
	return update(ctx, tx, key, func(w *domain.Wallet) error {
		if w.Reserved.LessThan(amount) {
			return errors.Errorf("cannot consume %s %s: only %s reserved", amount, key.Currency, w.Reserved)
		}
		w.Reserved = w.Reserved.Sub(amount)
		return nil
	})
}

func update(ctx context.Context, tx store.Tx, key domain.WalletKey, fn func(w *domain.Wallet) error) error {
	w, err := tx.Wallet(ctx, key)
	if err != nil {
		return err
	}
	if err := fn(&w); err != nil {
		return err
	}
	w.UpdatedAt = time.Now().UTC()
	return tx.PutWallet(ctx, w)
}
