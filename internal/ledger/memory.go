package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type memoryStore struct {
	mu           sync.RWMutex
	wallets      map[int64]Wallet
	transactions map[int64]Transaction
	txids        map[string]int64
	nextWalletID int64
	nextTxID     int64
}

// NewMemory creates a concurrency-safe in-memory store. It backs unit tests
// and the dev-mode server where no database is configured.
func NewMemory() Store {
	return &memoryStore{
		wallets:      make(map[int64]Wallet),
		transactions: make(map[int64]Transaction),
		txids:        make(map[string]int64),
	}
}

func (s *memoryStore) CreateWallet(_ context.Context, label string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextWalletID++
	w := Wallet{ID: s.nextWalletID, Label: label, Balance: decimal.Zero}
	s.wallets[w.ID] = w
	return w, nil
}

func (s *memoryStore) GetWallet(_ context.Context, id int64) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (s *memoryStore) UpdateWalletLabel(_ context.Context, id int64, label string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	w.Label = label
	s.wallets[id] = w
	return w, nil
}

func (s *memoryStore) DeleteWallet(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[id]; !ok {
		return ErrWalletNotFound
	}
	delete(s.wallets, id)
	for txID, t := range s.transactions {
		if t.WalletID == id {
			delete(s.transactions, txID)
			delete(s.txids, t.Txid)
		}
	}
	return nil
}

func (s *memoryStore) ListWallets(_ context.Context, q WalletQuery) (WalletPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		if q.MinBalance != nil && w.Balance.LessThan(*q.MinBalance) {
			continue
		}
		if q.MaxBalance != nil && w.Balance.GreaterThan(*q.MaxBalance) {
			continue
		}
		if q.Label != "" && !strings.Contains(strings.ToLower(w.Label), strings.ToLower(q.Label)) {
			continue
		}
		matched = append(matched, w)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var less, equal bool
		switch q.OrderBy {
		case "label":
			less, equal = a.Label < b.Label, a.Label == b.Label
		case "balance":
			cmp := a.Balance.Cmp(b.Balance)
			less, equal = cmp < 0, cmp == 0
		default:
			less, equal = a.ID < b.ID, false
		}
		if equal {
			return a.ID < b.ID
		}
		if q.Desc {
			return !less
		}
		return less
	})

	page := WalletPage{Total: int64(len(matched))}
	page.Wallets = pageSlice(matched, q.Page, q.PageSize)
	return page, nil
}

func (s *memoryStore) GetTransaction(_ context.Context, id int64) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return t, nil
}

func (s *memoryStore) ListTransactions(_ context.Context, q TransactionQuery) (TransactionPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		if q.MinAmount != nil && t.Amount.LessThan(*q.MinAmount) {
			continue
		}
		if q.MaxAmount != nil && t.Amount.GreaterThan(*q.MaxAmount) {
			continue
		}
		if q.Txid != "" && !strings.Contains(strings.ToLower(t.Txid), strings.ToLower(q.Txid)) {
			continue
		}
		if q.WalletID != nil && t.WalletID != *q.WalletID {
			continue
		}
		if q.CreatedAfter != nil && t.CreatedAt.Before(*q.CreatedAfter) {
			continue
		}
		if q.CreatedBefore != nil && t.CreatedAt.After(*q.CreatedBefore) {
			continue
		}
		matched = append(matched, t)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var less, equal bool
		switch q.OrderBy {
		case "txid":
			less, equal = a.Txid < b.Txid, a.Txid == b.Txid
		case "amount":
			cmp := a.Amount.Cmp(b.Amount)
			less, equal = cmp < 0, cmp == 0
		case "created_at":
			less, equal = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		default:
			less, equal = a.ID < b.ID, false
		}
		if equal {
			return a.ID < b.ID
		}
		if q.Desc {
			return !less
		}
		return less
	})

	page := TransactionPage{Total: int64(len(matched))}
	page.Transactions = pageSlice(matched, q.Page, q.PageSize)
	return page, nil
}

func (s *memoryStore) TxidExists(_ context.Context, txid string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.txids[txid]
	return exists, nil
}

// RunAtomic serializes units of work behind the store mutex. Writes are
// staged on the unit and applied only after fn succeeds, so a failing unit
// leaves no trace.
func (s *memoryStore) RunAtomic(_ context.Context, fn func(UnitOfWork) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unit := &memUnit{store: s, balances: make(map[int64]decimal.Decimal)}
	if err := fn(unit); err != nil {
		return err
	}

	for id, balance := range unit.balances {
		w := s.wallets[id]
		w.Balance = balance
		s.wallets[id] = w
	}
	for _, t := range unit.inserts {
		s.transactions[t.ID] = t
		s.txids[t.Txid] = t.ID
	}
	return nil
}

type memUnit struct {
	store    *memoryStore
	balances map[int64]decimal.Decimal
	inserts  []Transaction
}

func (u *memUnit) WalletBalanceForUpdate(_ context.Context, walletID int64) (decimal.Decimal, error) {
	if balance, ok := u.balances[walletID]; ok {
		return balance, nil
	}
	w, ok := u.store.wallets[walletID]
	if !ok {
		return decimal.Decimal{}, ErrWalletNotFound
	}
	return w.Balance, nil
}

func (u *memUnit) SetWalletBalance(_ context.Context, walletID int64, balance decimal.Decimal) error {
	if _, ok := u.store.wallets[walletID]; !ok {
		return ErrWalletNotFound
	}
	u.balances[walletID] = balance
	return nil
}

func (u *memUnit) InsertTransaction(_ context.Context, walletID int64, txid string, amount decimal.Decimal) (Transaction, error) {
	if _, ok := u.store.wallets[walletID]; !ok {
		return Transaction{}, ErrWalletNotFound
	}
	if _, exists := u.store.txids[txid]; exists {
		return Transaction{}, ErrDuplicateTxid
	}
	for _, staged := range u.inserts {
		if staged.Txid == txid {
			return Transaction{}, ErrDuplicateTxid
		}
	}

	u.store.nextTxID++
	t := Transaction{
		ID:        u.store.nextTxID,
		WalletID:  walletID,
		Txid:      txid,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	u.inserts = append(u.inserts, t)
	return t, nil
}

func pageSlice[T any](items []T, page, pageSize int) []T {
	if pageSize <= 0 {
		pageSize = 10
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
