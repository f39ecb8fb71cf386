package wallet

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kwanza-pay/kwanza_wallet/internal/ledger"
)

const maxLabelLength = 128

// ErrInvalidLabel indicates a missing or oversized wallet label.
var ErrInvalidLabel = errors.New("label must be non-empty and at most 128 characters")

// Service exposes wallet CRUD on top of the ledger store. Balance is never
// written here: wallets are created at zero and only the transaction guard
// moves the balance afterwards.
type Service struct {
	store  ledger.Store
	logger *slog.Logger
}

// NewService builds a wallet service.
func NewService(store ledger.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Create provisions a wallet with a zero balance. Any client-supplied
// balance has already been discarded by the handler.
func (s *Service) Create(ctx context.Context, label string) (ledger.Wallet, error) {
	if err := validateLabel(label); err != nil {
		return ledger.Wallet{}, err
	}
	w, err := s.store.CreateWallet(ctx, label)
	if err != nil {
		return ledger.Wallet{}, err
	}
	s.logger.Info("wallet created", slog.Int64("wallet_id", w.ID), slog.String("label", w.Label))
	return w, nil
}

// Get retrieves a wallet by id.
func (s *Service) Get(ctx context.Context, id int64) (ledger.Wallet, error) {
	return s.store.GetWallet(ctx, id)
}

// Update rewrites the wallet label. Balance updates are not accepted on this
// path under any circumstances.
func (s *Service) Update(ctx context.Context, id int64, label string) (ledger.Wallet, error) {
	if err := validateLabel(label); err != nil {
		return ledger.Wallet{}, err
	}
	return s.store.UpdateWalletLabel(ctx, id, label)
}

// Delete removes a wallet and all of its transactions.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteWallet(ctx, id); err != nil {
		return err
	}
	s.logger.Info("wallet deleted", slog.Int64("wallet_id", id))
	return nil
}

// List returns one page of wallets matching the query.
func (s *Service) List(ctx context.Context, q ledger.WalletQuery) (ledger.WalletPage, error) {
	return s.store.ListWallets(ctx, q)
}

func validateLabel(label string) error {
	if label == "" || len(label) > maxLabelLength {
		return ErrInvalidLabel
	}
	return nil
}
