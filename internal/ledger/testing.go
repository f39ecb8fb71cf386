package ledger

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that overwrites a wallet balance when the
// store is the in-memory implementation. It bypasses the guarded update path
// on purpose so tests can arrange arbitrary starting balances.
func SeedBalance(s Store, walletID int64, balance decimal.Decimal) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if w, exists := mem.wallets[walletID]; exists {
			w.Balance = balance
			mem.wallets[walletID] = w
		}
	}
}
