package transaction

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/kwanza-pay/kwanza_wallet/internal/ledger"
	"github.com/kwanza-pay/kwanza_wallet/internal/metrics"
)

const (
	maxTxidLength = 64

	// amount is numeric(18,8): up to 10 integer digits, 8 fractional.
	amountScale = 8
)

var amountCeiling = decimal.New(1, 10)

var (
	// ErrInvalidTxid indicates a missing or oversized txid.
	ErrInvalidTxid = errors.New("txid must be non-empty and at most 64 characters")

	// ErrInvalidAmount indicates an amount outside the supported precision.
	ErrInvalidAmount = errors.New("amount exceeds supported precision")
)

// Service orchestrates validation and the guarded balance update for
// transaction creation, plus reads.
type Service struct {
	store  ledger.Store
	guard  *Guard
	logger *slog.Logger
}

// NewService builds a transaction service.
func NewService(store ledger.Store, logger *slog.Logger) *Service {
	return &Service{store: store, guard: NewGuard(store), logger: logger}
}

// Create validates the request and applies it through the balance guard.
// Validation order: amount, txid shape, wallet existence, txid uniqueness,
// then the atomic guarded update. Constraint races inside the atomic unit
// surface as the same sentinel errors with no partial writes.
func (s *Service) Create(ctx context.Context, walletID int64, txid string, amount decimal.Decimal) (ledger.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		metrics.TransactionRejected(rejectionReason(err))
		return ledger.Transaction{}, err
	}
	if err := validateTxid(txid); err != nil {
		metrics.TransactionRejected(rejectionReason(err))
		return ledger.Transaction{}, err
	}

	if _, err := s.store.GetWallet(ctx, walletID); err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			metrics.TransactionRejected(rejectionReason(err))
		}
		return ledger.Transaction{}, err
	}

	exists, err := s.store.TxidExists(ctx, txid)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if exists {
		metrics.TransactionRejected(rejectionReason(ledger.ErrDuplicateTxid))
		return ledger.Transaction{}, ledger.ErrDuplicateTxid
	}

	created, err := s.guard.Apply(ctx, walletID, txid, amount)
	if err != nil {
		if reason := rejectionReason(err); reason != "" {
			metrics.TransactionRejected(reason)
		}
		return ledger.Transaction{}, err
	}

	metrics.TransactionAccepted()
	s.logger.Info("transaction committed",
		slog.Int64("transaction_id", created.ID),
		slog.Int64("wallet_id", created.WalletID),
		slog.String("txid", created.Txid),
		slog.String("amount", created.Amount.StringFixed(amountScale)),
	)
	return created, nil
}

// Get retrieves a transaction by id.
func (s *Service) Get(ctx context.Context, id int64) (ledger.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// List returns one page of transactions matching the query.
func (s *Service) List(ctx context.Context, q ledger.TransactionQuery) (ledger.TransactionPage, error) {
	return s.store.ListTransactions(ctx, q)
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsZero() {
		return ledger.ErrZeroAmount
	}
	if amount.Exponent() < -amountScale {
		return ErrInvalidAmount
	}
	if amount.Abs().GreaterThanOrEqual(amountCeiling) {
		return ErrInvalidAmount
	}
	return nil
}

func validateTxid(txid string) error {
	if txid == "" || len(txid) > maxTxidLength {
		return ErrInvalidTxid
	}
	return nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ledger.ErrDuplicateTxid):
		return "duplicate_txid"
	case errors.Is(err, ledger.ErrWalletNotFound):
		return "wallet_not_found"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidTxid):
		return "invalid_txid"
	}
	return ""
}
