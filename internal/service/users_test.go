package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/lottery-ledger/internal/model"
	"github.com/mmeshcher/lottery-ledger/internal/settings"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	env := newTestEnv()
	env.svc.bcryptCost = bcrypt.MinCost
	env.settings.values[settings.KeyDepositAddress] = "TRX-123"

	u, err := env.svc.RegisterUser(context.Background(), " alice ", "secret", "Lagos", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.Len(t, u.ReferralCode, 12)
	assert.Equal(t, "TRX-123", env.store.wallet(u.ID).DepositAddress)

	got, err := env.svc.AuthenticateUser(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = env.svc.AuthenticateUser(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.svc.AuthenticateUser(context.Background(), "bob", "secret")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.svc.RegisterUser(context.Background(), "alice", "other", "Abuja", "")
	require.ErrorIs(t, err, ErrUserExists)
}

func TestRegisterUser_Referral(t *testing.T) {
	env := newTestEnv()
	env.svc.bcryptCost = bcrypt.MinCost

	referrer, err := env.svc.RegisterUser(context.Background(), "alice", "secret", "Lagos", "")
	require.NoError(t, err)

	referred, err := env.svc.RegisterUser(context.Background(), "bob", "secret", "Lagos", " "+referrer.ReferralCode+" ")
	require.NoError(t, err)
	require.NotNil(t, referred.ReferredBy)
	assert.Equal(t, referrer.ID, *referred.ReferredBy)

	_, err = env.svc.RegisterUser(context.Background(), "carol", "secret", "Lagos", "NOPE")
	require.ErrorIs(t, err, ErrReferralCodeNotFound)
}

func TestRegisterUser_RequiresCredentials(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.RegisterUser(context.Background(), "  ", "secret", "Lagos", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.svc.RegisterUser(context.Background(), "alice", "", "Lagos", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateAdminUser(t *testing.T) {
	env := newTestEnv()
	env.svc.bcryptCost = bcrypt.MinCost
	env.settings.values[settings.KeyDepositAddress] = "TRX-123"

	admin, err := env.svc.CreateAdminUser(context.Background(), " root ", "s3cret", "")
	require.NoError(t, err)
	assert.Equal(t, "root", admin.Username)
	assert.Equal(t, model.RoleAdmin, admin.Role)
	assert.Equal(t, model.RoleAdmin, env.store.user(admin.ID).Role)
	assert.Equal(t, "TRX-123", env.store.wallet(admin.ID).DepositAddress)

	ok, err := env.svc.IsAdmin(context.Background(), admin.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := env.svc.AuthenticateUser(context.Background(), "root", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)

	_, err = env.svc.CreateAdminUser(context.Background(), "root", "other", "")
	require.ErrorIs(t, err, ErrUserExists)

	_, err = env.svc.CreateAdminUser(context.Background(), "ops", "", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestIsAdmin(t *testing.T) {
	env := newTestEnv()
	userID := env.store.addUser("Lagos", nil)

	ok, err := env.svc.IsAdmin(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, ok)

	env.store.mu.Lock()
	u := env.store.state.users[userID]
	u.Role = model.RoleAdmin
	env.store.state.users[userID] = u
	env.store.mu.Unlock()

	ok, err = env.svc.IsAdmin(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetWallet_MaxWithdrawal(t *testing.T) {
	env := newTestEnv()
	userID := env.store.addUser("Lagos", nil)
	env.store.setBalance(userID, 500, 100, 20)

	w, err := env.svc.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("500")))
	assert.True(t, w.MaxWithdrawal.Equal(dec("72")))

	_, err = env.svc.GetWallet(context.Background(), 404)
	require.ErrorIs(t, err, ErrWalletNotFound)
}

func TestUpdateSettings(t *testing.T) {
	env := newTestEnv()

	require.NoError(t, env.svc.UpdateSettings(context.Background(), map[string]string{
		settings.KeyWithdrawalFeePercentage: "20",
	}))

	userID := env.store.addUser("Lagos", nil)
	env.store.setBalance(userID, 500, 100, 0)
	w, err := env.svc.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, w.MaxWithdrawal.Equal(dec("80")))

	err = env.svc.UpdateSettings(context.Background(), map[string]string{"NOPE": "1"})
	require.ErrorIs(t, err, ErrUnknownSetting)

	err = env.svc.UpdateSettings(context.Background(), map[string]string{settings.KeyTicketPrice: "abc"})
	require.ErrorIs(t, err, ErrInvalidSetting)
}

func TestCreateTicketType(t *testing.T) {
	env := newTestEnv()
	env.settings.values[settings.KeyTicketPrice] = "150"

	tt, err := env.svc.CreateTicketType(context.Background(), model.TicketType{Name: " Gold ", IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "Gold", tt.Name)
	assert.True(t, tt.Price.Equal(dec("150")))
	assert.Equal(t, defaultTicketColor, tt.Color)
	assert.NotZero(t, tt.ID)

	tests := []struct {
		name string
		tt   model.TicketType
	}{
		{"no name", model.TicketType{Price: dec("10")}},
		{"negative price", model.TicketType{Name: "x", Price: dec("-1")}},
		{"rounds to zero", model.TicketType{Name: "x", Price: dec("0.001")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.CreateTicketType(context.Background(), tc.tt)
			require.ErrorIs(t, err, ErrInvalidTicketTypeDef)
		})
	}
}
