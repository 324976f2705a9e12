package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/JhonesBR/go-fxmatch/internal/domain"
	"github.com/JhonesBR/go-fxmatch/internal/store"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	key := domain.WalletKey{UserId: uuid.New(), Currency: "NGN"}

	err := s.InTx(ctx, func(tx store.Tx) error {
		if err := CreditAvailable(ctx, tx, key, d("100")); err != nil {
			return err
		}
		if err := Reserve(ctx, tx, key, d("60")); err != nil {
			return err
		}
		return Release(ctx, tx, key, d("25"))
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w, _ := s.Wallet(ctx, key)
	if !w.Available.Equal(d("65")) || !w.Reserved.Equal(d("35")) {
		t.Errorf("expected 65 available 35 reserved, got %s / %s", w.Available, w.Reserved)
	}
}

func TestReserveInsufficient(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	key := domain.WalletKey{UserId: uuid.New(), Currency: "NGN"}
	_ = s.InTx(ctx, func(tx store.Tx) error { return CreditAvailable(ctx, tx, key, d("50")) })

	err := s.InTx(ctx, func(tx store.Tx) error { return Reserve(ctx, tx, key, d("60")) })
	var insufficient *domain.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if !insufficient.Required.Equal(d("60")) || !insufficient.Available.Equal(d("50")) {
		t.Errorf("unexpected amounts %s / %s", insufficient.Required, insufficient.Available)
	}

	w, _ := s.Wallet(ctx, key)
	if !w.Available.Equal(d("50")) || !w.Reserved.IsZero() {
		t.Errorf("expected wallet unchanged, got %s / %s", w.Available, w.Reserved)
	}
}

func TestConsumeReservedFailureRollsBackTransaction(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	buyer := domain.WalletKey{UserId: uuid.New(), Currency: "NGN"}
	seller := domain.WalletKey{UserId: uuid.New(), Currency: "NGN"}
	_ = s.InTx(ctx, func(tx store.Tx) error {
		if err := CreditAvailable(ctx, tx, buyer, d("10")); err != nil {
			return err
		}
		return Reserve(ctx, tx, buyer, d("10"))
	})

	err := s.InTx(ctx, func(tx store.Tx) error {
		if err := Lock(ctx, tx, seller, buyer); err != nil {
			return err
		}
		if err := CreditAvailable(ctx, tx, seller, d("20")); err != nil {
			return err
		}
		return ConsumeReserved(ctx, tx, buyer, d("20"))
	})
	if err == nil {
		t.Fatalf("expected consume beyond reserved to fail")
	}

	w, _ := s.Wallet(ctx, seller)
	if !w.Available.IsZero() {
		t.Errorf("expected the seller credit to be rolled back, got %s", w.Available)
	}
}

func TestNegativeAmountsRejected(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	key := domain.WalletKey{UserId: uuid.New(), Currency: "USD"}

	ops := map[string]func(context.Context, store.Tx, domain.WalletKey, decimal.Decimal) error{
		"credit":  CreditAvailable,
		"debit":   DebitAvailable,
		"reserve": Reserve,
		"release": Release,
		"consume": ConsumeReserved,
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := s.InTx(ctx, func(tx store.Tx) error { return op(ctx, tx, key, d("-1")) })
			if err == nil {
				t.Errorf("expected %s of a negative amount to fail", name)
			}
		})
	}
}

func TestServiceDepositWithdraw(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryStore(), []string{"USD", "NGN"}, zaptest.NewLogger(t))
	user := uuid.New()

	w, err := svc.Deposit(ctx, user, "ngn", d("1000"))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if w.Currency != "NGN" || !w.Available.Equal(d("1000")) {
		t.Errorf("unexpected wallet after deposit %+v", w)
	}

	if _, err := svc.Withdraw(ctx, user, "NGN", d("1500")); err == nil {
		t.Errorf("expected overdraw to fail")
	}
	w, err = svc.Withdraw(ctx, user, "NGN", d("400"))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !w.Available.Equal(d("600")) {
		t.Errorf("expected 600 left, got %s", w.Available)
	}

	tests := []struct {
		name     string
		currency string
		amount   string
		field    string
	}{
		{name: "unsupported currency", currency: "XYZ", amount: "1", field: "currency"},
		{name: "zero amount", currency: "USD", amount: "0", field: "amount"},
		{name: "negative amount", currency: "USD", amount: "-5", field: "amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Deposit(ctx, user, tt.currency, d(tt.amount))
			var verr *domain.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}

	balances, err := svc.Balances(ctx, user)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if len(balances) != 1 || balances[0].Currency != "NGN" {
		t.Errorf("expected one NGN wallet, got %+v", balances)
	}
}
