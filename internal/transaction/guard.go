package transaction

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/kwanza-pay/kwanza_wallet/internal/ledger"
)

// Guard enforces the balance invariant: a transaction commits only when the
// wallet balance stays non-negative, and the balance update and transaction
// row land in the same atomic unit.
type Guard struct {
	store ledger.Store
}

// NewGuard builds a guard on top of the store's atomic unit of work.
func NewGuard(store ledger.Store) *Guard {
	return &Guard{store: store}
}

// Apply reads the wallet's current balance under lock, adds amount, rejects
// with ErrInsufficientBalance if the candidate is negative, and otherwise
// persists the new balance together with the transaction row. A rejection
// leaves no state change.
func (g *Guard) Apply(ctx context.Context, walletID int64, txid string, amount decimal.Decimal) (ledger.Transaction, error) {
	if amount.IsZero() {
		return ledger.Transaction{}, ledger.ErrZeroAmount
	}

	var created ledger.Transaction
	err := g.store.RunAtomic(ctx, func(u ledger.UnitOfWork) error {
		balance, err := u.WalletBalanceForUpdate(ctx, walletID)
		if err != nil {
			return err
		}
		candidate := balance.Add(amount)
		if candidate.IsNegative() {
			return ledger.ErrInsufficientBalance
		}
		if err := u.SetWalletBalance(ctx, walletID, candidate); err != nil {
			return err
		}
		created, err = u.InsertTransaction(ctx, walletID, txid, amount)
		return err
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	return created, nil
}
