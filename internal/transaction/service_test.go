package transaction

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kwanza-pay/kwanza_wallet/internal/ledger"
	"github.com/kwanza-pay/kwanza_wallet/internal/logging"
)

func newTestService(t *testing.T) (*Service, ledger.Store) {
	t.Helper()
	store := ledger.NewMemory()
	return NewService(store, logging.Discard()), store
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestCreate_AppliesSignedAmount(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	w, err := store.CreateWallet(ctx, "spending")
	require.NoError(t, err)
	ledger.SeedBalance(store, w.ID, decimal.NewFromInt(15))

	created, err := svc.Create(ctx, w.ID, "cve", mustDecimal(t, "-1.3"))
	require.NoError(t, err)
	require.Equal(t, "-1.30000000", created.Amount.StringFixed(8))
	require.NotZero(t, created.ID)
	require.False(t, created.CreatedAt.IsZero())

	got, err := store.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(mustDecimal(t, "13.7")), "balance %s", got.Balance)
}

func TestCreate_InsufficientBalanceLeavesStateUntouched(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	w, err := store.CreateWallet(ctx, "thin")
	require.NoError(t, err)
	ledger.SeedBalance(store, w.ID, decimal.NewFromInt(1))

	_, err = svc.Create(ctx, w.ID, "cve", mustDecimal(t, "-1.3"))
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	got, err := store.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(decimal.NewFromInt(1)))

	page, err := store.ListTransactions(ctx, ledger.TransactionQuery{})
	require.NoError(t, err)
	require.Zero(t, page.Total)
}

func TestCreate_ZeroAmountRejectedBeforeStorage(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	w, err := store.CreateWallet(ctx, "zero")
	require.NoError(t, err)
	ledger.SeedBalance(store, w.ID, decimal.NewFromInt(1))

	_, err = svc.Create(ctx, w.ID, "cve", mustDecimal(t, "0.00000000"))
	require.ErrorIs(t, err, ledger.ErrZeroAmount)

	got, _ := store.GetWallet(ctx, w.ID)
	require.True(t, got.Balance.Equal(decimal.NewFromInt(1)))
}

func TestCreate_UnknownWallet(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), 42, "cve", decimal.NewFromInt(1))
	require.ErrorIs(t, err, ledger.ErrWalletNotFound)
}

func TestCreate_DuplicateTxid(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	w, err := store.CreateWallet(ctx, "dup")
	require.NoError(t, err)

	_, err = svc.Create(ctx, w.ID, "cve", decimal.NewFromInt(15))
	require.NoError(t, err)

	other, err := store.CreateWallet(ctx, "other")
	require.NoError(t, err)

	// Duplicate txid fails regardless of target wallet or amount validity.
	_, err = svc.Create(ctx, other.ID, "cve", decimal.NewFromInt(33))
	require.ErrorIs(t, err, ledger.ErrDuplicateTxid)

	got, _ := store.GetWallet(ctx, w.ID)
	require.True(t, got.Balance.Equal(decimal.NewFromInt(15)))
	otherGot, _ := store.GetWallet(ctx, other.ID)
	require.True(t, otherGot.Balance.IsZero())
}

func TestCreate_ValidationBounds(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	w, err := store.CreateWallet(ctx, "bounds")
	require.NoError(t, err)

	_, err = svc.Create(ctx, w.ID, "too-precise", mustDecimal(t, "0.000000001"))
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Create(ctx, w.ID, "too-big", mustDecimal(t, "10000000000"))
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Create(ctx, w.ID, "", decimal.NewFromInt(1))
	require.ErrorIs(t, err, ErrInvalidTxid)
}

func TestCreate_ConcurrentDebitsSerialize(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	w, err := store.CreateWallet(ctx, "race")
	require.NoError(t, err)
	ledger.SeedBalance(store, w.ID, decimal.NewFromInt(100))

	debit := decimal.NewFromInt(-80)
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Create(ctx, w.ID, fmt.Sprintf("race-%d", i), debit)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var accepted, rejected int
	for err := range errs {
		if err == nil {
			accepted++
		} else {
			require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
			rejected++
		}
	}
	require.Equal(t, 1, accepted)
	require.Equal(t, 1, rejected)

	got, _ := store.GetWallet(ctx, w.ID)
	require.True(t, got.Balance.Equal(decimal.NewFromInt(20)), "final balance %s", got.Balance)
}

func TestCreate_BalanceEqualsSumOfCommittedAmounts(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	w, err := store.CreateWallet(ctx, "invariant")
	require.NoError(t, err)

	const workers = 10
	credit := mustDecimal(t, "7.25")
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Create(ctx, w.ID, fmt.Sprintf("inv-%d", i), credit); err != nil {
				t.Errorf("create %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	page, err := store.ListTransactions(ctx, ledger.TransactionQuery{PageSize: workers})
	require.NoError(t, err)
	require.EqualValues(t, workers, page.Total)

	sum := decimal.Zero
	for _, tx := range page.Transactions {
		sum = sum.Add(tx.Amount)
	}

	got, _ := store.GetWallet(ctx, w.ID)
	require.True(t, got.Balance.Equal(sum), "balance %s, sum %s", got.Balance, sum)
}

func TestGet_RepeatedReadsAreIdentical(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	w, err := store.CreateWallet(ctx, "reads")
	require.NoError(t, err)
	created, err := svc.Create(ctx, w.ID, "r-1", decimal.NewFromInt(3))
	require.NoError(t, err)

	first, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	second, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)

	_, err = svc.Get(ctx, created.ID+1000)
	require.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}
