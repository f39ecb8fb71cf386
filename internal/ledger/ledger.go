package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrWalletNotFound indicates the referenced wallet does not exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrTransactionNotFound indicates a transaction lookup by id missed.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInsufficientBalance occurs when applying an amount would drive the
	// wallet balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateTxid indicates the client-supplied transaction identifier
	// is already in use.
	ErrDuplicateTxid = errors.New("duplicate txid")

	// ErrZeroAmount indicates a transaction amount of exactly zero.
	ErrZeroAmount = errors.New("amount must not be zero")
)

// Wallet is a stored value account with a non-negative decimal balance.
type Wallet struct {
	ID      int64
	Label   string
	Balance decimal.Decimal
}

// Transaction is an immutable signed balance adjustment applied to one wallet.
type Transaction struct {
	ID        int64
	WalletID  int64
	Txid      string
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// WalletQuery describes filtering, ordering and paging for wallet listings.
// Range bounds are inclusive; Label is a case-insensitive substring match.
type WalletQuery struct {
	MinBalance *decimal.Decimal
	MaxBalance *decimal.Decimal
	Label      string
	OrderBy    string
	Desc       bool
	Page       int
	PageSize   int
}

// TransactionQuery describes filtering, ordering and paging for transaction
// listings. Range bounds are inclusive; Txid is a case-insensitive substring.
type TransactionQuery struct {
	MinAmount     *decimal.Decimal
	MaxAmount     *decimal.Decimal
	Txid          string
	WalletID      *int64
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	OrderBy       string
	Desc          bool
	Page          int
	PageSize      int
}

// WalletPage is one page of wallet results plus the total match count.
type WalletPage struct {
	Wallets []Wallet
	Total   int64
}

// TransactionPage is one page of transaction results plus the total match count.
type TransactionPage struct {
	Transactions []Transaction
	Total        int64
}

// UnitOfWork exposes the reads and writes available inside one atomic unit.
// All mutations made through it commit or roll back together.
type UnitOfWork interface {
	// WalletBalanceForUpdate returns the latest committed balance for the
	// wallet, holding an exclusive lock on it until the unit finishes so a
	// concurrent writer cannot read a stale balance.
	WalletBalanceForUpdate(ctx context.Context, walletID int64) (decimal.Decimal, error)

	// SetWalletBalance overwrites the wallet balance within the unit.
	SetWalletBalance(ctx context.Context, walletID int64, balance decimal.Decimal) error

	// InsertTransaction persists a transaction row within the unit and
	// returns it with the store-assigned id and creation timestamp.
	InsertTransaction(ctx context.Context, walletID int64, txid string, amount decimal.Decimal) (Transaction, error)
}

// Store is durable storage for wallets and transactions with atomic
// read-modify-write support.
type Store interface {
	CreateWallet(ctx context.Context, label string) (Wallet, error)
	GetWallet(ctx context.Context, id int64) (Wallet, error)
	UpdateWalletLabel(ctx context.Context, id int64, label string) (Wallet, error)
	DeleteWallet(ctx context.Context, id int64) error
	ListWallets(ctx context.Context, q WalletQuery) (WalletPage, error)

	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	ListTransactions(ctx context.Context, q TransactionQuery) (TransactionPage, error)
	TxidExists(ctx context.Context, txid string) (bool, error)

	// RunAtomic executes fn inside one atomic unit. Transient conflicts
	// (serialization failure, deadlock) are retried a bounded number of
	// times; any error returned by fn aborts the unit with no state change.
	RunAtomic(ctx context.Context, fn func(UnitOfWork) error) error
}
