package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	atomicAttempts = 3
	atomicBackoff  = 10 * time.Millisecond
)

var walletOrderColumns = map[string]string{
	"id":      "id",
	"label":   "label",
	"balance": "balance",
}

var transactionOrderColumns = map[string]string{
	"id":         "id",
	"txid":       "txid",
	"amount":     "amount",
	"created_at": "created_at",
}

// PostgresStore persists wallets and transactions in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateWallet inserts a wallet row with a zero balance.
func (s *PostgresStore) CreateWallet(ctx context.Context, label string) (Wallet, error) {
	row := s.db.QueryRow(ctx, `INSERT INTO wallets (label, balance) VALUES ($1, 0)
        RETURNING id, label, balance::text`, label)
	return scanWallet(row)
}

// GetWallet fetches a wallet by id.
func (s *PostgresStore) GetWallet(ctx context.Context, id int64) (Wallet, error) {
	row := s.db.QueryRow(ctx, `SELECT id, label, balance::text FROM wallets WHERE id = $1`, id)
	w, err := scanWallet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrWalletNotFound
	}
	return w, err
}

// UpdateWalletLabel rewrites the wallet label. Balance is never touched here;
// it only changes through RunAtomic.
func (s *PostgresStore) UpdateWalletLabel(ctx context.Context, id int64, label string) (Wallet, error) {
	row := s.db.QueryRow(ctx, `UPDATE wallets SET label = $2 WHERE id = $1
        RETURNING id, label, balance::text`, id, label)
	w, err := scanWallet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrWalletNotFound
	}
	return w, err
}

// DeleteWallet removes a wallet; its transactions go with it via the cascading
// foreign key.
func (s *PostgresStore) DeleteWallet(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM wallets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// ListWallets returns one page of wallets matching the query.
func (s *PostgresStore) ListWallets(ctx context.Context, q WalletQuery) (WalletPage, error) {
	var (
		where []string
		args  []any
	)
	if q.MinBalance != nil {
		args = append(args, q.MinBalance.String())
		where = append(where, fmt.Sprintf("balance >= $%d", len(args)))
	}
	if q.MaxBalance != nil {
		args = append(args, q.MaxBalance.String())
		where = append(where, fmt.Sprintf("balance <= $%d", len(args)))
	}
	if q.Label != "" {
		args = append(args, q.Label)
		where = append(where, fmt.Sprintf("label ILIKE '%%' || $%d || '%%'", len(args)))
	}

	clause := whereClause(where)

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM wallets`+clause, args...).Scan(&total); err != nil {
		return WalletPage{}, err
	}

	query := `SELECT id, label, balance::text FROM wallets` + clause +
		orderClause(walletOrderColumns, q.OrderBy, q.Desc) +
		limitClause(&args, q.Page, q.PageSize)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return WalletPage{}, err
	}
	defer rows.Close()

	page := WalletPage{Total: total}
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return WalletPage{}, err
		}
		page.Wallets = append(page.Wallets, w)
	}
	return page, rows.Err()
}

// GetTransaction fetches a transaction by id.
func (s *PostgresStore) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT id, wallet_id, txid, amount::text, created_at
        FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	return t, err
}

// ListTransactions returns one page of transactions matching the query.
func (s *PostgresStore) ListTransactions(ctx context.Context, q TransactionQuery) (TransactionPage, error) {
	var (
		where []string
		args  []any
	)
	if q.MinAmount != nil {
		args = append(args, q.MinAmount.String())
		where = append(where, fmt.Sprintf("amount >= $%d", len(args)))
	}
	if q.MaxAmount != nil {
		args = append(args, q.MaxAmount.String())
		where = append(where, fmt.Sprintf("amount <= $%d", len(args)))
	}
	if q.Txid != "" {
		args = append(args, q.Txid)
		where = append(where, fmt.Sprintf("txid ILIKE '%%' || $%d || '%%'", len(args)))
	}
	if q.WalletID != nil {
		args = append(args, *q.WalletID)
		where = append(where, fmt.Sprintf("wallet_id = $%d", len(args)))
	}
	if q.CreatedAfter != nil {
		args = append(args, q.CreatedAfter.UTC())
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if q.CreatedBefore != nil {
		args = append(args, q.CreatedBefore.UTC())
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	clause := whereClause(where)

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`+clause, args...).Scan(&total); err != nil {
		return TransactionPage{}, err
	}

	query := `SELECT id, wallet_id, txid, amount::text, created_at FROM transactions` + clause +
		orderClause(transactionOrderColumns, q.OrderBy, q.Desc) +
		limitClause(&args, q.Page, q.PageSize)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return TransactionPage{}, err
	}
	defer rows.Close()

	page := TransactionPage{Total: total}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return TransactionPage{}, err
		}
		page.Transactions = append(page.Transactions, t)
	}
	return page, rows.Err()
}

// TxidExists reports whether any transaction already uses the identifier.
func (s *PostgresStore) TxidExists(ctx context.Context, txid string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE txid = $1)`, txid).Scan(&exists)
	return exists, err
}

// RunAtomic runs fn inside a database transaction, retrying on transient
// conflicts (serialization failure, deadlock) up to a small bound.
func (s *PostgresStore) RunAtomic(ctx context.Context, fn func(UnitOfWork) error) error {
	var lastErr error
	for attempt := 0; attempt < atomicAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(atomicBackoff):
			}
		}

		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return classify(err)
		}
		lastErr = err
	}
	return fmt.Errorf("atomic unit did not settle after %d attempts: %w", atomicAttempts, lastErr)
}

func (s *PostgresStore) runOnce(ctx context.Context, fn func(UnitOfWork) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&pgUnit{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgUnit struct {
	tx pgx.Tx
}

func (u *pgUnit) WalletBalanceForUpdate(ctx context.Context, walletID int64) (decimal.Decimal, error) {
	var raw string
	err := u.tx.QueryRow(ctx, `SELECT balance::text FROM wallets WHERE id = $1 FOR UPDATE`, walletID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, ErrWalletNotFound
	}
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(raw)
}

func (u *pgUnit) SetWalletBalance(ctx context.Context, walletID int64, balance decimal.Decimal) error {
	tag, err := u.tx.Exec(ctx, `UPDATE wallets SET balance = $2 WHERE id = $1`, walletID, balance.String())
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (u *pgUnit) InsertTransaction(ctx context.Context, walletID int64, txid string, amount decimal.Decimal) (Transaction, error) {
	row := u.tx.QueryRow(ctx, `INSERT INTO transactions (wallet_id, txid, amount)
        VALUES ($1, $2, $3) RETURNING id, wallet_id, txid, amount::text, created_at`, walletID, txid, amount.String())
	t, err := scanTransaction(row)
	if err != nil {
		return Transaction{}, classify(err)
	}
	return t, nil
}

// classify maps Postgres constraint violations onto the store's sentinel
// errors so callers never see driver-level error codes.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505": // unique_violation: only txid carries a unique constraint
		return ErrDuplicateTxid
	case "23503": // foreign_key_violation
		return ErrWalletNotFound
	case "23514": // check_violation: balance >= 0 or amount <> 0
		if strings.Contains(pgErr.ConstraintName, "amount") {
			return ErrZeroAmount
		}
		return ErrInsufficientBalance
	}
	return err
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure and deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func whereClause(where []string) string {
	if len(where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(where, " AND ")
}

func orderClause(allowed map[string]string, orderBy string, desc bool) string {
	column, ok := allowed[orderBy]
	if !ok {
		column = "id"
	}
	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id ASC", column, direction)
}

func limitClause(args *[]any, page, pageSize int) string {
	if pageSize <= 0 {
		pageSize = 10
	}
	if page < 1 {
		page = 1
	}
	*args = append(*args, pageSize)
	limit := fmt.Sprintf(" LIMIT $%d", len(*args))
	*args = append(*args, (page-1)*pageSize)
	return limit + fmt.Sprintf(" OFFSET $%d", len(*args))
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w   Wallet
		raw string
	)
	if err := row.Scan(&w.ID, &w.Label, &raw); err != nil {
		return Wallet{}, err
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return Wallet{}, err
	}
	w.Balance = balance
	return w, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t         Transaction
		raw       string
		createdAt time.Time
	)
	if err := row.Scan(&t.ID, &t.WalletID, &t.Txid, &raw, &createdAt); err != nil {
		return Transaction{}, err
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return Transaction{}, err
	}
	t.Amount = amount
	t.CreatedAt = createdAt.UTC()
	return t, nil
}
