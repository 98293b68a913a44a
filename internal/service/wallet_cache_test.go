package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/lottery-ledger/internal/cache"
	"github.com/mmeshcher/lottery-ledger/internal/model"
)

// interleavedWalletRepo выполняет during сразу после чтения кошелька из базы,
// до того как GetWallet успеет положить результат в кэш.
type interleavedWalletRepo struct {
	*memStore
	during func()
}

func (r *interleavedWalletRepo) GetWalletView(ctx context.Context, userID int64) (*model.WalletView, error) {
	v, err := r.memStore.GetWalletView(ctx, userID)
	if f := r.during; f != nil {
		r.during = nil
		f()
	}
	return v, err
}

func newCachedTestEnv(t *testing.T) (*testEnv, *interleavedWalletRepo) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := newTestEnv()
	repo := &interleavedWalletRepo{memStore: env.store}
	svc := NewService(repo, env.store, env.settings, env.notifier, cache.New(rdb), nil)
	svc.now = env.svc.now
	svc.shuffle = env.svc.shuffle
	env.svc = svc
	return env, repo
}

func TestGetWallet_CachedUntilDeposit(t *testing.T) {
	env, _ := newCachedTestEnv(t)
	ctx := context.Background()
	userID := env.store.addUser("Lagos", nil)
	env.store.setBalance(userID, 50, 50, 0)

	w, err := env.svc.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("50")))

	// прямое изменение в обход сервиса не видно, пока ключ не сброшен
	env.store.setBalance(userID, 70, 70, 0)
	w, err = env.svc.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("50")), "balance = %s", w.Balance)

	_, err = env.svc.ProcessDeposit(ctx, userID, dec("5"), "tx-1")
	require.NoError(t, err)

	w, err = env.svc.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("75")), "balance = %s", w.Balance)
}

func TestGetWallet_InvalidationDuringReadIsNotLost(t *testing.T) {
	env, repo := newCachedTestEnv(t)
	ctx := context.Background()
	userID := env.store.addUser("Lagos", nil)

	repo.during = func() {
		_, err := env.svc.ProcessDeposit(ctx, userID, dec("100"), "tx-race")
		require.NoError(t, err)
	}

	// первое чтение видит баланс до пополнения
	w, err := env.svc.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero(), "balance = %s", w.Balance)

	w, err = env.svc.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("100")), "stale wallet served from cache: %s", w.Balance)
	assert.True(t, w.MaxWithdrawal.Equal(dec("90")), "max = %s", w.MaxWithdrawal)
}
